package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ProductSnapshot is the result of one extraction pass over a product page.
// It is a value object: built once per ScrapeBookmark call, handed to the
// caller, never mutated afterwards. Persistence is the repository's job.
type ProductSnapshot struct {
	Title     string   `json:"title"`
	Price     *float64 `json:"price"`
	Currency  string   `json:"currency"`
	ImagePath string   `json:"image_path,omitempty"`
	IsTracked bool     `json:"is_tracked"`
	SiteName  string   `json:"site_name"`
}

// HasPrice reports whether a usable price was extracted.
func (s *ProductSnapshot) HasPrice() bool {
	return s.Price != nil && *s.Price > 0
}

// PriceValue returns the price or 0 when absent.
func (s *ProductSnapshot) PriceValue() float64 {
	if s.Price == nil {
		return 0
	}
	return *s.Price
}

// Bookmark is a saved product URL, possibly price-tracked.
type Bookmark struct {
	ID            int             `json:"id" db:"id"`
	URL           string          `json:"url" db:"url"`
	Title         string          `json:"title" db:"title"`
	ImageURL      string          `json:"image_url" db:"image_url"`
	SiteName      string          `json:"site_name" db:"site_name"`
	IsTracked     bool            `json:"is_tracked" db:"is_tracked"`
	Currency      string          `json:"currency" db:"currency"`
	CurrentPrice  sql.NullFloat64 `json:"-" db:"current_price"`
	PreviousPrice sql.NullFloat64 `json:"-" db:"previous_price"`
	LastChecked   time.Time       `json:"last_checked" db:"last_checked"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// HasPrice returns true if the bookmark has a current price.
func (b *Bookmark) HasPrice() bool {
	return b.CurrentPrice.Valid
}

// GetCurrentPrice returns the current price as float64, or 0 if NULL.
func (b *Bookmark) GetCurrentPrice() float64 {
	if b.CurrentPrice.Valid {
		return b.CurrentPrice.Float64
	}
	return 0
}

// MarshalJSON flattens the nullable price columns to plain JSON numbers/null.
func (b *Bookmark) MarshalJSON() ([]byte, error) {
	type Alias Bookmark
	return json.Marshal(&struct {
		*Alias
		CurrentPrice  *float64 `json:"current_price"`
		PreviousPrice *float64 `json:"previous_price"`
	}{
		Alias:         (*Alias)(b),
		CurrentPrice:  nullToPtr(b.CurrentPrice),
		PreviousPrice: nullToPtr(b.PreviousPrice),
	})
}

func nullToPtr(n sql.NullFloat64) *float64 {
	if n.Valid {
		v := n.Float64
		return &v
	}
	return nil
}

// PricePoint is one recorded price of a bookmark.
type PricePoint struct {
	ID         int       `json:"id" db:"id"`
	BookmarkID int       `json:"bookmark_id" db:"bookmark_id"`
	Price      float64   `json:"price" db:"price"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// AddBookmarkRequest is the body of POST /api/bookmarks.
type AddBookmarkRequest struct {
	URL string `json:"url"`
}
