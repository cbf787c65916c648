package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"lootlook/config"
	"lootlook/models"
	"lootlook/repository"
	"lootlook/scraper"
)

type Handlers struct {
	repo      *repository.BookmarkRepository
	extractor *scraper.Extractor
	cfg       *config.ScraperConfig
}

func NewHandlers(repo *repository.BookmarkRepository, extractor *scraper.Extractor, cfg *config.ScraperConfig) *Handlers {
	return &Handlers{
		repo:      repo,
		extractor: extractor,
		cfg:       cfg,
	}
}

// RegisterRoutes attaches all bookmark routes to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/bookmarks", h.AddBookmark).Methods(http.MethodPost)
	api.HandleFunc("/bookmarks", h.ListBookmarks).Methods(http.MethodGet)
	api.HandleFunc("/bookmarks/{id:[0-9]+}", h.GetBookmark).Methods(http.MethodGet)
	api.HandleFunc("/bookmarks/{id:[0-9]+}", h.DeleteBookmark).Methods(http.MethodDelete)
	api.HandleFunc("/bookmarks/{id:[0-9]+}/check", h.CheckBookmark).Methods(http.MethodPost)
	api.HandleFunc("/bookmarks/{id:[0-9]+}/rescan", h.RescanBookmark).Methods(http.MethodPost)
	api.HandleFunc("/bookmarks/{id:[0-9]+}/history", h.GetHistory).Methods(http.MethodGet)
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AddBookmark saves a URL, runs the extraction pipeline once and returns the
// stored bookmark. Extraction never fails the request: a page that yields
// nothing is stored as an untracked bookmark.
func (h *Handlers) AddBookmark(w http.ResponseWriter, r *http.Request) {
	var req models.AddBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		writeError(w, http.StatusBadRequest, "a valid absolute url is required")
		return
	}

	snap := h.extractor.ScrapeBookmark(r.Context(), req.URL, h.cfg.ScreenshotDir)

	bookmark, err := h.repo.Create(req.URL, snap)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL).Msg("handlers: failed to store bookmark")
		writeError(w, http.StatusInternalServerError, "failed to store bookmark")
		return
	}

	writeJSON(w, http.StatusCreated, bookmark)
}

// ListBookmarks returns all bookmarks, newest first.
func (h *Handlers) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := h.repo.List()
	if err != nil {
		log.Error().Err(err).Msg("handlers: failed to list bookmarks")
		writeError(w, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}
	if bookmarks == nil {
		bookmarks = []models.Bookmark{}
	}
	writeJSON(w, http.StatusOK, bookmarks)
}

// GetBookmark returns one bookmark by id.
func (h *Handlers) GetBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	bookmark, err := h.repo.GetByID(id)
	if err != nil {
		respondRepoError(w, err, "failed to get bookmark")
		return
	}
	writeJSON(w, http.StatusOK, bookmark)
}

// DeleteBookmark removes a bookmark and its price history.
func (h *Handlers) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(id); err != nil {
		respondRepoError(w, err, "failed to delete bookmark")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "bookmark deleted"})
}

// CheckBookmark re-runs the full pipeline for one bookmark on demand and
// persists any price movement.
func (h *Handlers) CheckBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	bookmark, err := h.repo.GetByID(id)
	if err != nil {
		respondRepoError(w, err, "failed to get bookmark")
		return
	}

	snap := h.extractor.ScrapeBookmark(r.Context(), bookmark.URL, h.cfg.ScreenshotDir)
	if snap.HasPrice() {
		if err := h.repo.UpdatePrice(id, snap.PriceValue(), snap.Currency); err != nil {
			respondRepoError(w, err, "failed to persist price")
			return
		}
	} else if err := h.repo.MarkChecked(id); err != nil {
		respondRepoError(w, err, "failed to mark bookmark checked")
		return
	}

	updated, err := h.repo.GetByID(id)
	if err != nil {
		respondRepoError(w, err, "failed to reload bookmark")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// RescanBookmark re-runs only the OCR layer against the stored screenshot,
// skipping the browser entirely. Useful when a price was visible in the
// capture but the first pass missed it.
func (h *Handlers) RescanBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	bookmark, err := h.repo.GetByID(id)
	if err != nil {
		respondRepoError(w, err, "failed to get bookmark")
		return
	}

	if bookmark.ImageURL == "" {
		writeError(w, http.StatusConflict, "bookmark has no stored screenshot")
		return
	}

	price, found := h.extractor.ScanImageForPrice(r.Context(), bookmark.ImageURL)
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}

	if err := h.repo.UpdatePrice(id, price, ""); err != nil {
		respondRepoError(w, err, "failed to persist price")
		return
	}

	updated, err := h.repo.GetByID(id)
	if err != nil {
		respondRepoError(w, err, "failed to reload bookmark")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "bookmark": updated})
}

// GetHistory returns a bookmark's recorded prices, oldest first.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.repo.GetByID(id); err != nil {
		respondRepoError(w, err, "failed to get bookmark")
		return
	}

	history, err := h.repo.GetHistory(id)
	if err != nil {
		respondRepoError(w, err, "failed to get price history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bookmark id")
		return 0, false
	}
	return id, true
}

func respondRepoError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "bookmark not found")
		return
	}
	log.Error().Err(err).Msg("handlers: " + msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("handlers: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
