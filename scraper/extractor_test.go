package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lootlook/config"
)

type stubRenderer struct {
	result *RenderResult
	err    error
	panics bool
	calls  int
}

func (s *stubRenderer) Render(_ context.Context, _, _ string) (*RenderResult, error) {
	s.calls++
	if s.panics {
		panic("renderer blew up")
	}
	return s.result, s.err
}

type stubOCR struct {
	price float64
	found bool
	calls int
}

func (s *stubOCR) ExtractPrice(_ context.Context, _ string) (float64, bool) {
	s.calls++
	return s.price, s.found
}

func newTestExtractor(r Renderer, o OCREngine) *Extractor {
	return NewExtractorWith(config.DefaultScraperConfig(), r, o)
}

const pricedHTML = `<html><body>
	<h1>Espresso Machine</h1>
	<div class="product-price">₹15,999</div>
</body></html>`

const pricelessHTML = `<html><body><h1>Espresso Machine</h1></body></html>`

func TestScrapeBookmarkHTMLPriceSkipsOCR(t *testing.T) {
	ocr := &stubOCR{price: 9999, found: true}
	e := newTestExtractor(&stubRenderer{
		result: &RenderResult{HTML: pricedHTML, ScreenshotPath: "/tmp/shot.jpg"},
	}, ocr)

	snap := e.ScrapeBookmark(context.Background(), "https://www.shop.example/espresso", "/tmp")
	require.NotNil(t, snap)
	require.True(t, snap.HasPrice())
	assert.InDelta(t, 15999, snap.PriceValue(), 0.001)
	assert.Equal(t, "INR", snap.Currency)
	assert.Equal(t, "Espresso Machine", snap.Title)
	assert.Equal(t, "shop.example", snap.SiteName)
	assert.Equal(t, "/tmp/shot.jpg", snap.ImagePath)
	assert.True(t, snap.IsTracked)
	assert.Zero(t, ocr.calls, "ocr must not run when html produced a price")
}

func TestScrapeBookmarkFallsBackToOCR(t *testing.T) {
	ocr := &stubOCR{price: 15999, found: true}
	e := newTestExtractor(&stubRenderer{
		result: &RenderResult{HTML: pricelessHTML, ScreenshotPath: "/tmp/shot.jpg"},
	}, ocr)

	snap := e.ScrapeBookmark(context.Background(), "https://shop.example/espresso", "/tmp")
	require.True(t, snap.HasPrice())
	assert.InDelta(t, 15999, snap.PriceValue(), 0.001)
	assert.True(t, snap.IsTracked)
	assert.Equal(t, 1, ocr.calls)
}

func TestScrapeBookmarkNoScreenshotSkipsOCR(t *testing.T) {
	ocr := &stubOCR{price: 15999, found: true}
	e := newTestExtractor(&stubRenderer{
		result: &RenderResult{HTML: pricelessHTML},
	}, ocr)

	snap := e.ScrapeBookmark(context.Background(), "https://shop.example/espresso", "/tmp")
	assert.False(t, snap.HasPrice())
	assert.False(t, snap.IsTracked)
	assert.Zero(t, ocr.calls)
}

func TestScrapeBookmarkNothingFound(t *testing.T) {
	e := newTestExtractor(&stubRenderer{
		result: &RenderResult{HTML: pricelessHTML, ScreenshotPath: "/tmp/shot.jpg"},
	}, &stubOCR{})

	snap := e.ScrapeBookmark(context.Background(), "https://shop.example/espresso", "/tmp")
	require.NotNil(t, snap)
	assert.False(t, snap.IsTracked)
	assert.Nil(t, snap.Price)
	assert.Equal(t, "INR", snap.Currency)
	assert.Equal(t, "Espresso Machine", snap.Title)
}

func TestScrapeBookmarkRenderFailure(t *testing.T) {
	e := newTestExtractor(&stubRenderer{err: errors.New("no chromium")}, &stubOCR{})

	snap := e.ScrapeBookmark(context.Background(), "https://shop.example/espresso", "/tmp")
	require.NotNil(t, snap)
	assert.Equal(t, "shop.example", snap.Title)
	assert.Equal(t, "shop.example", snap.SiteName)
	assert.False(t, snap.IsTracked)
	assert.Nil(t, snap.Price)
}

func TestScrapeBookmarkNeverPanics(t *testing.T) {
	e := newTestExtractor(&stubRenderer{panics: true}, &stubOCR{})

	snap := e.ScrapeBookmark(context.Background(), "https://shop.example/espresso", "/tmp")
	require.NotNil(t, snap)
	assert.Equal(t, "shop.example", snap.SiteName)
	assert.False(t, snap.IsTracked)
}

func TestScrapeBookmarkGarbageURL(t *testing.T) {
	e := newTestExtractor(&stubRenderer{err: errors.New("bad url")}, &stubOCR{})

	snap := e.ScrapeBookmark(context.Background(), "not a url", "/tmp")
	require.NotNil(t, snap)
	assert.Equal(t, "Web", snap.SiteName)
	assert.Equal(t, "Web", snap.Title)
}

func TestSiteNameFromURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://www.amazon.in/dp/B0TEST", "amazon.in"},
		{"https://shop.example/item", "shop.example"},
		{"not a url", "Web"},
		{"", "Web"},
		{"https://", "Web"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, siteNameFromURL(tt.input), "input %q", tt.input)
	}
}
