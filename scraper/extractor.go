package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"lootlook/config"
	"lootlook/models"
)

// Renderer loads a page and captures whatever it can. Implemented by
// PageRenderer; narrowed to an interface so the pipeline is testable without
// a browser.
type Renderer interface {
	Render(ctx context.Context, url, outputDir string) (*RenderResult, error)
}

// OCREngine reads a price off a screenshot. Implemented by OCRExtractor.
type OCREngine interface {
	ExtractPrice(ctx context.Context, imagePath string) (float64, bool)
}

// Extractor orchestrates the full pipeline: render, structured HTML
// extraction, OCR fallback. It owns the fallback ordering and the final
// snapshot shape; the layers below it know nothing about each other.
type Extractor struct {
	cfg      *config.ScraperConfig
	renderer Renderer
	html     *HTMLExtractor
	ocr      OCREngine
}

// NewExtractor wires the pipeline together from config.
func NewExtractor(cfg *config.ScraperConfig) *Extractor {
	parser := NewPriceParser(config.DefaultCurrencyTable(), cfg.MinPlausiblePrice)
	return &Extractor{
		cfg:      cfg,
		renderer: NewPageRenderer(cfg, config.DefaultDeviceProfile()),
		html:     NewHTMLExtractor(parser, cfg.MinTitleLength),
		ocr:      NewOCRExtractor(cfg, parser),
	}
}

// NewExtractorWith injects renderer and OCR engine explicitly. Tests use it
// to exercise orchestration without a browser or tesseract install.
func NewExtractorWith(cfg *config.ScraperConfig, renderer Renderer, ocr OCREngine) *Extractor {
	parser := NewPriceParser(config.DefaultCurrencyTable(), cfg.MinPlausiblePrice)
	return &Extractor{
		cfg:      cfg,
		renderer: renderer,
		html:     NewHTMLExtractor(parser, cfg.MinTitleLength),
		ocr:      ocr,
	}
}

// ScrapeBookmark runs the full pipeline for one URL and always returns a
// snapshot. There is no error return: every internal failure degrades to a
// minimal snapshot so one broken page never takes a batch down with it.
func (e *Extractor) ScrapeBookmark(ctx context.Context, rawURL, outputDir string) (snapshot *models.ProductSnapshot) {
	site := siteNameFromURL(rawURL)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("url", rawURL).
				Msg("scrape: recovered from panic, returning minimal snapshot")
			snapshot = e.minimalSnapshot(site)
		}
	}()

	rendered, err := e.renderer.Render(ctx, rawURL, outputDir)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("scrape: render failed")
		return e.minimalSnapshot(site)
	}

	content := e.html.ExtractContent(rendered.HTML, site)

	snapshot = &models.ProductSnapshot{
		Title:     content.Title,
		Currency:  e.cfg.DefaultCurrency,
		ImagePath: rendered.ScreenshotPath,
		SiteName:  site,
	}

	if content.Price != nil {
		amount := content.Price.Amount
		snapshot.Price = &amount
		if content.Price.Currency != "" {
			snapshot.Currency = content.Price.Currency
		}
		log.Info().Float64("price", amount).Str("source", string(content.Price.Source)).
			Str("url", rawURL).Msg("scrape: price extracted from html")
	} else if rendered.ScreenshotPath != "" {
		// OCR only runs when the structured layers all came up empty and
		// there is a screenshot to read.
		if amount, ok := e.ocr.ExtractPrice(ctx, rendered.ScreenshotPath); ok {
			snapshot.Price = &amount
			log.Info().Float64("price", amount).Str("source", string(SourceOCR)).
				Str("url", rawURL).Msg("scrape: price extracted from screenshot")
		}
	}

	snapshot.IsTracked = snapshot.HasPrice()
	return snapshot
}

// ScanImageForPrice runs the OCR layer against an existing screenshot,
// bypassing the render. Used by the rescan endpoint.
func (e *Extractor) ScanImageForPrice(ctx context.Context, imagePath string) (float64, bool) {
	return e.ocr.ExtractPrice(ctx, imagePath)
}

// minimalSnapshot is the degenerate result when nothing could be extracted:
// titled with the site name, untracked, no price.
func (e *Extractor) minimalSnapshot(site string) *models.ProductSnapshot {
	return &models.ProductSnapshot{
		Title:    site,
		Currency: e.cfg.DefaultCurrency,
		SiteName: site,
	}
}

// siteNameFromURL derives a display name from the hostname, with "Web" as
// the fallback for unparseable input.
func siteNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "Web"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host == "" {
		return "Web"
	}
	return host
}
