package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lootlook/config"
)

func newTestParser() *PriceParser {
	return NewPriceParser(config.DefaultCurrencyTable(), 10)
}

func TestParseCommonPriceFormats(t *testing.T) {
	parser := newTestParser()

	tests := []struct {
		name     string
		input    string
		amount   float64
		currency string
	}{
		{"rupee with grouping", "₹1,499", 1499, "INR"},
		{"dollar decimal", "$49.99", 49.99, "USD"},
		{"euro", "€120.00", 120, "EUR"},
		{"rs abbreviation", "Rs. 2,350", 2350, "INR"},
		{"iso code", "INR 899", 899, "INR"},
		{"plain number", "1299", 1299, ""},
		{"ocr multi-dot grouping", "1.200.00", 1200, ""},
		{"whitespace noise", "  ₹ 1,499  /-", 1499, "INR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parser.Parse(tt.input)
			require.True(t, ok)
			assert.InDelta(t, tt.amount, got.Amount, 0.001)
			assert.Equal(t, tt.currency, got.Currency)
		})
	}
}

func TestParseRejectsImplausibleInput(t *testing.T) {
	parser := newTestParser()

	tests := []struct {
		name  string
		input string
	}{
		{"rating below threshold", "★ 4.5"},
		{"quantity", "Qty: 2"},
		{"no digits", "Add to cart"},
		{"empty", ""},
		{"only dots", "..."},
		{"zero", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parser.Parse(tt.input)
			assert.False(t, ok)
		})
	}
}

func TestParseIsIdempotent(t *testing.T) {
	parser := newTestParser()

	first, ok := parser.Parse("₹1,499.50")
	require.True(t, ok)
	second, ok := parser.Parse("₹1,499.50")
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestDetectCurrencyPriority(t *testing.T) {
	parser := newTestParser()

	// Two signals in one string: the earlier table entry wins.
	got, ok := parser.Parse("$49.99 (Rs. 4,000 MRP)")
	require.True(t, ok)
	assert.Equal(t, "USD", got.Currency)
}

func TestDetectCurrencyWordBoundary(t *testing.T) {
	parser := newTestParser()

	// "Rs" must not match inside words like "orders".
	assert.Equal(t, "", parser.DetectCurrency("orders over 500"))
	assert.Equal(t, "INR", parser.DetectCurrency("Rs 500"))
	assert.Equal(t, "INR", parser.DetectCurrency("rs. 500"))
}

func TestValid(t *testing.T) {
	parser := newTestParser()

	assert.True(t, parser.Valid(10))
	assert.True(t, parser.Valid(99999))
	assert.False(t, parser.Valid(9.99))
	assert.False(t, parser.Valid(0))
	assert.False(t, parser.Valid(-50))
}

func TestNormalizeNumeric(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1,499", "1499"},
		{"1.200.00", "1200.00"},
		{"₹ 2.350,00", "2.35000"},
		{"49.99", "49.99"},
		{"...", ""},
		{".50.", "50"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeNumeric(tt.input), "input %q", tt.input)
	}
}
