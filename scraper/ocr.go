package scraper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lootlook/config"
)

// SegmentationStrategy is one tesseract page-segmentation configuration.
// Strategies are tried in order; the first one yielding a valid price wins.
type SegmentationStrategy struct {
	Name string
	PSM  int
}

// OCRExtractor reads a price off a screenshot by running the tesseract CLI
// under multiple segmentation strategies and pattern-matching the recognized
// text. It never returns an error: any failure degrades to "no price found"
// with a logged diagnostic.
type OCRExtractor struct {
	bin        string
	timeout    time.Duration
	strategies []SegmentationStrategy
	parser     *PriceParser
	yearLow    float64
	yearHigh   float64
}

// NewOCRExtractor builds an extractor around the shared price parser.
func NewOCRExtractor(cfg *config.ScraperConfig, parser *PriceParser) *OCRExtractor {
	return &OCRExtractor{
		bin:     cfg.TesseractBin,
		timeout: cfg.OCRTimeout,
		strategies: []SegmentationStrategy{
			{Name: "sparse", PSM: 11},
			{Name: "block", PSM: 6},
			{Name: "auto", PSM: 3},
		},
		parser:   parser,
		yearLow:  cfg.YearBandLow,
		yearHigh: cfg.YearBandHigh,
	}
}

var (
	// Currency-prefixed amounts: the highest-confidence pattern.
	symbolPricePattern = regexp.MustCompile(`(?i)(?:₹|\$|€|£|¥|\b(?:Rs\.?|INR|USD|EUR|GBP))\s*([0-9][0-9.,]*)`)

	// Grouped amounts without a symbol. The mandatory grouping separator
	// keeps bare integers like a year from matching on their own.
	groupedPricePattern = regexp.MustCompile(`\b[0-9]{1,3}(?:[.,][0-9]{3})+(?:[.,][0-9]{2})?\b`)

	// Runs that look numeric but may carry OCR digit confusions.
	numericLookalike = regexp.MustCompile(`[0-9OoIl|][0-9OoIl|.,]*[0-9OoIl|]`)
)

// ExtractPrice scans the image at imagePath and returns the first validated
// price, or false if every strategy and pattern comes up empty.
func (o *OCRExtractor) ExtractPrice(ctx context.Context, imagePath string) (float64, bool) {
	if _, err := os.Stat(imagePath); err != nil {
		log.Warn().Str("image", imagePath).Msg("ocr: screenshot missing, skipping")
		return 0, false
	}

	for _, strategy := range o.strategies {
		text, err := o.recognize(ctx, imagePath, strategy.PSM)
		if err != nil {
			log.Error().Err(err).Str("strategy", strategy.Name).Str("image", imagePath).
				Msg("ocr: engine invocation failed")
			continue
		}

		if price, ok := o.findPrice(text); ok {
			log.Info().Float64("price", price).Str("strategy", strategy.Name).
				Msg("ocr: price detected")
			return price, true
		}
	}

	log.Info().Str("image", imagePath).Msg("ocr: no price found in any strategy")
	return 0, false
}

// recognize runs one tesseract pass and returns recognized text from stdout.
func (o *OCRExtractor) recognize(ctx context.Context, imagePath string, psm int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, o.bin, imagePath, "stdout", "-l", "eng", "--psm", fmt.Sprintf("%d", psm))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract --psm %d: %w (%s)", psm, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// findPrice applies the two pattern passes over cleaned OCR text.
func (o *OCRExtractor) findPrice(text string) (float64, bool) {
	cleaned := cleanDigitConfusions(text)

	// Pass (a): amounts labeled with a currency signal.
	for _, m := range symbolPricePattern.FindAllStringSubmatch(cleaned, -1) {
		if candidate, ok := o.parser.Parse(m[1]); ok {
			return candidate.Amount, true
		}
	}

	// Pass (b): unlabeled grouped amounts. Without a currency label a number
	// in the calendar-year band is more likely a year than a price, so those
	// are skipped here (tunable band; a real price can coincide with a year).
	for _, m := range groupedPricePattern.FindAllString(cleaned, -1) {
		candidate, ok := o.parser.Parse(m)
		if !ok {
			continue
		}
		if candidate.Amount >= o.yearLow && candidate.Amount <= o.yearHigh {
			continue
		}
		return candidate.Amount, true
	}

	return 0, false
}

// cleanDigitConfusions normalizes common OCR misreads (O→0, l/I/|→1), but
// only inside substrings that already look numeric, so legitimate words are
// left untouched.
func cleanDigitConfusions(text string) string {
	return numericLookalike.ReplaceAllStringFunc(text, func(run string) string {
		if !strings.ContainsAny(run, "0123456789") {
			return run
		}
		r := strings.NewReplacer("O", "0", "o", "0", "I", "1", "l", "1", "|", "1")
		return r.Replace(run)
	})
}
