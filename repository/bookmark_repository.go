package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lootlook/database"
	"lootlook/models"
)

// ErrNotFound is returned when a bookmark id does not exist.
var ErrNotFound = errors.New("bookmark not found")

type BookmarkRepository struct{}

func NewBookmarkRepository() *BookmarkRepository {
	return &BookmarkRepository{}
}

const bookmarkColumns = `id, url, title, image_url, site_name, is_tracked, currency, current_price, previous_price, last_checked, created_at`

// Create inserts a bookmark from its first extraction snapshot.
func (r *BookmarkRepository) Create(url string, snap *models.ProductSnapshot) (*models.Bookmark, error) {
	query := `
		INSERT INTO bookmarks (url, title, image_url, site_name, is_tracked, currency, current_price, last_checked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + bookmarkColumns

	var price sql.NullFloat64
	if snap.HasPrice() {
		price = sql.NullFloat64{Float64: snap.PriceValue(), Valid: true}
	}

	var b models.Bookmark
	err := database.DB.QueryRow(query,
		url, snap.Title, snap.ImagePath, snap.SiteName, snap.IsTracked, snap.Currency, price, time.Now(),
	).Scan(scanDest(&b)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bookmark: %w", err)
	}

	if snap.HasPrice() {
		if err := r.AddPriceHistory(b.ID, snap.PriceValue()); err != nil {
			return nil, err
		}
	}

	return &b, nil
}

// List returns all bookmarks, newest first.
func (r *BookmarkRepository) List() ([]models.Bookmark, error) {
	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks ORDER BY created_at DESC`

	rows, err := database.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []models.Bookmark
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(scanDest(&b)...); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}

	return bookmarks, rows.Err()
}

// GetByID returns one bookmark or ErrNotFound.
func (r *BookmarkRepository) GetByID(id int) (*models.Bookmark, error) {
	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE id = $1`

	var b models.Bookmark
	err := database.DB.QueryRow(query, id).Scan(scanDest(&b)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}

	return &b, nil
}

// Delete removes a bookmark; price history rows cascade.
func (r *BookmarkRepository) Delete(id int) error {
	result, err := database.DB.Exec(`DELETE FROM bookmarks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTracked returns the bookmarks the scheduler re-checks.
func (r *BookmarkRepository) GetTracked() ([]models.Bookmark, error) {
	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE is_tracked = true ORDER BY last_checked ASC`

	rows, err := database.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []models.Bookmark
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(scanDest(&b)...); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}

	return bookmarks, rows.Err()
}

// UpdatePrice records a new price observation: the current price rotates into
// previous_price and the observation is appended to history.
func (r *BookmarkRepository) UpdatePrice(id int, price float64, currency string) error {
	query := `
		UPDATE bookmarks
		SET previous_price = current_price,
		    current_price = $2,
		    currency = COALESCE(NULLIF($3, ''), currency),
		    is_tracked = true,
		    last_checked = $4
		WHERE id = $1
	`

	result, err := database.DB.Exec(query, id, price, currency, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return r.AddPriceHistory(id, price)
}

// MarkChecked bumps last_checked without touching prices, for checks that
// found nothing new.
func (r *BookmarkRepository) MarkChecked(id int) error {
	_, err := database.DB.Exec(`UPDATE bookmarks SET last_checked = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark bookmark checked: %w", err)
	}
	return nil
}

// AddPriceHistory appends one observation to the history table.
func (r *BookmarkRepository) AddPriceHistory(bookmarkID int, price float64) error {
	_, err := database.DB.Exec(
		`INSERT INTO price_history (bookmark_id, price, recorded_at) VALUES ($1, $2, $3)`,
		bookmarkID, price, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record price history: %w", err)
	}
	return nil
}

// GetHistory returns a bookmark's price observations, oldest first.
func (r *BookmarkRepository) GetHistory(bookmarkID int) ([]models.PricePoint, error) {
	query := `
		SELECT id, bookmark_id, price, recorded_at
		FROM price_history
		WHERE bookmark_id = $1
		ORDER BY recorded_at ASC
	`

	rows, err := database.DB.Query(query, bookmarkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	defer rows.Close()

	history := []models.PricePoint{}
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.ID, &p.BookmarkID, &p.Price, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		history = append(history, p)
	}

	return history, rows.Err()
}

func scanDest(b *models.Bookmark) []any {
	return []any{
		&b.ID, &b.URL, &b.Title, &b.ImageURL, &b.SiteName,
		&b.IsTracked, &b.Currency, &b.CurrentPrice, &b.PreviousPrice,
		&b.LastChecked, &b.CreatedAt,
	}
}
