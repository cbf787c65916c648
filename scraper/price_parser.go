package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"lootlook/config"
)

// PriceSource records which extraction layer produced a candidate. It is used
// only for fallback ordering and diagnostics, never persisted.
type PriceSource string

const (
	SourceStructuredData PriceSource = "structured-data"
	SourceSelector       PriceSource = "selector"
	SourceMeta           PriceSource = "meta"
	SourceOCR            PriceSource = "ocr"
)

// CandidatePrice is an (amount, currency hint) pair found in noisy text.
// Currency is empty when the text carried no recognizable signal.
type CandidatePrice struct {
	Amount   float64
	Currency string
	Source   PriceSource
}

// PriceParser converts raw text into validated price candidates. It is pure:
// the currency table and plausibility threshold are fixed at construction,
// so identical input always yields identical output.
type PriceParser struct {
	tokens       []currencyMatcher
	minPlausible float64
}

type currencyMatcher struct {
	re   *regexp.Regexp
	code string
}

// NewPriceParser builds a parser around an ordered currency table. Table
// order is the priority: when two currency signals co-occur in one string,
// the earlier table entry wins.
func NewPriceParser(table []config.CurrencyToken, minPlausible float64) *PriceParser {
	tokens := make([]currencyMatcher, 0, len(table))
	for _, t := range table {
		pattern := regexp.QuoteMeta(t.Token)
		if startsWithLetter(t.Token) {
			// Word boundary keeps "Rs" from matching inside "orders".
			pattern = `(?i)\b` + pattern
		}
		tokens = append(tokens, currencyMatcher{
			re:   regexp.MustCompile(pattern),
			code: t.Code,
		})
	}
	return &PriceParser{tokens: tokens, minPlausible: minPlausible}
}

func startsWithLetter(s string) bool {
	for _, r := range s {
		return unicode.IsLetter(r)
	}
	return false
}

// Parse extracts a single validated price candidate from text. It returns
// false when the text holds no number, the number is not parseable, or the
// amount falls below the plausibility threshold (ratings, quantities and
// page artifacts are almost always small numbers).
func (p *PriceParser) Parse(text string) (CandidatePrice, bool) {
	amount, ok := p.parseAmount(text)
	if !ok {
		return CandidatePrice{}, false
	}
	return CandidatePrice{
		Amount:   amount,
		Currency: p.DetectCurrency(text),
	}, true
}

// DetectCurrency scans text against the priority table; first table entry
// present wins. Empty string means no signal.
func (p *PriceParser) DetectCurrency(text string) string {
	for _, t := range p.tokens {
		if t.re.MatchString(text) {
			return t.code
		}
	}
	return ""
}

// Valid applies the plausibility filter on its own, for callers that already
// hold a numeric amount (the OCR layer).
func (p *PriceParser) Valid(amount float64) bool {
	if math.IsNaN(amount) {
		return false
	}
	return amount >= p.minPlausible
}

func (p *PriceParser) parseAmount(text string) (float64, bool) {
	cleaned := normalizeNumeric(text)
	if cleaned == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(amount) {
		return 0, false
	}
	if !p.Valid(amount) {
		return 0, false
	}
	return amount, true
}

// normalizeNumeric strips everything but digits and dots, then resolves
// multiple dots: OCR output like "1.200.00" means 1200.00, so only the last
// dot survives as the decimal separator and earlier ones are treated as
// thousands grouping.
func normalizeNumeric(text string) string {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if strings.Count(s, ".") <= 1 {
		return strings.Trim(s, ".")
	}
	last := strings.LastIndex(s, ".")
	intPart := strings.ReplaceAll(s[:last], ".", "")
	return strings.Trim(intPart+s[last:], ".")
}
