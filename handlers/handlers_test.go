package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lootlook/config"
	"lootlook/repository"
)

func newTestRouter() *mux.Router {
	h := NewHandlers(repository.NewBookmarkRepository(), nil, config.DefaultScraperConfig())
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	newTestRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAddBookmarkRejectsInvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestAddBookmarkRejectsInvalidURL(t *testing.T) {
	tests := []string{
		`{"url":""}`,
		`{"url":"not a url"}`,
		`{"url":"ftp:"}`,
		`{"url":"/relative/path"}`,
	}

	for _, body := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", strings.NewReader(body))
		rec := httptest.NewRecorder()

		newTestRouter().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestRoutesRejectNonNumericID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks/abc", nil)
	rec := httptest.NewRecorder()

	newTestRouter().ServeHTTP(rec, req)

	// The route pattern only matches numeric ids.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
