package config

import (
	"os"
	"strconv"
	"time"
)

// ScraperConfig holds every tunable of the extraction pipeline. The numeric
// heuristics (MinPlausiblePrice, the year band) have no principled derivation;
// they are calibration knobs, so they live here rather than as literals in the
// extraction code.
type ScraperConfig struct {
	// MinPlausiblePrice is the lower bound below which a parsed number is
	// assumed to be a rating, quantity or page artifact rather than a price.
	MinPlausiblePrice float64

	// YearBandLow/YearBandHigh bound the "looks like a calendar year" range
	// excluded from unlabeled OCR candidates. A real price can coincide with
	// a year, so the band applies only to the symbol-less fallback pattern.
	YearBandLow  float64
	YearBandHigh float64

	// MinTitleLength is the shortest h1/meta text accepted as a product title.
	MinTitleLength int

	// DefaultCurrency is used when no layer produced a currency hint.
	DefaultCurrency string

	NavigationTimeout  time.Duration
	InterstitialTimeout time.Duration
	SettleDelay        time.Duration
	ScreenshotQuality  int

	// TesseractBin is the OCR engine binary; resolved from PATH when bare.
	TesseractBin string
	OCRTimeout   time.Duration

	ChromiumBin string // optional explicit browser binary (Docker)

	ScreenshotDir string
}

// DeviceProfile describes the emulated device. The user agent must be
// consistent with the viewport: a desktop UA on a phone-sized viewport is a
// fingerprinting signal.
type DeviceProfile struct {
	Width     int
	Height    int
	Scale     float64
	Mobile    bool
	UserAgent string
	Language  string
	Timezone  string
}

// DefaultScraperConfig returns the pipeline defaults with env overrides.
func DefaultScraperConfig() *ScraperConfig {
	return &ScraperConfig{
		MinPlausiblePrice:   getEnvFloat("SCRAPER_MIN_PRICE", 10),
		YearBandLow:         getEnvFloat("SCRAPER_YEAR_BAND_LOW", 2020),
		YearBandHigh:        getEnvFloat("SCRAPER_YEAR_BAND_HIGH", 2030),
		MinTitleLength:      3,
		DefaultCurrency:     getEnv("SCRAPER_DEFAULT_CURRENCY", "INR"),
		NavigationTimeout:   getEnvDuration("SCRAPER_NAV_TIMEOUT", 45*time.Second),
		InterstitialTimeout: getEnvDuration("SCRAPER_DISMISS_TIMEOUT", 2*time.Second),
		SettleDelay:         getEnvDuration("SCRAPER_SETTLE_DELAY", 800*time.Millisecond),
		ScreenshotQuality:   int(getEnvFloat("SCRAPER_SCREENSHOT_QUALITY", 80)),
		TesseractBin:        getEnv("TESSERACT_BIN", "tesseract"),
		OCRTimeout:          getEnvDuration("SCRAPER_OCR_TIMEOUT", 30*time.Second),
		ChromiumBin:         os.Getenv("CHROMIUM_BIN"),
		ScreenshotDir:       getEnv("SCREENSHOT_DIR", "public/screenshots"),
	}
}

// DefaultDeviceProfile emulates a common desktop Chrome on Windows, the same
// profile the stealth init script advertises.
func DefaultDeviceProfile() DeviceProfile {
	return DeviceProfile{
		Width:     1600,
		Height:    1200,
		Scale:     1.0,
		Mobile:    false,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Language:  getEnv("SCRAPER_LOCALE", "en-IN"),
		Timezone:  getEnv("SCRAPER_TIMEZONE", "Asia/Kolkata"),
	}
}

// CurrencyToken maps a symbol or abbreviation found in page text to an ISO
// 4217 code. Matching is by table order: glyphs rank above abbreviations, so
// when two signals co-occur ("$49.99 (Rs. 4,000 MRP)") the earlier table
// entry wins, deterministically.
type CurrencyToken struct {
	Token string
	Code  string
}

// DefaultCurrencyTable is the fixed priority table injected into the price
// parser. It is configuration data, not mutable state.
func DefaultCurrencyTable() []CurrencyToken {
	return []CurrencyToken{
		{"₹", "INR"},
		{"$", "USD"},
		{"€", "EUR"},
		{"£", "GBP"},
		{"¥", "JPY"},
		{"Rs.", "INR"},
		{"Rs", "INR"},
		{"INR", "INR"},
		{"USD", "USD"},
		{"EUR", "EUR"},
		{"GBP", "GBP"},
		{"AED", "AED"},
		{"RM", "MYR"},
		{"RP", "IDR"},
		{"SGD", "SGD"},
	}
}

// ServerConfig holds the HTTP-facing settings.
type ServerConfig struct {
	Host           string
	Port           string
	AllowedOrigins string
	DatabaseURL    string
	RateLimitRPS   float64
}

// LoadServerConfig reads server settings from the environment.
func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
	}
}

// NtfyConfig configures the push-notification sink. Empty topic disables it.
type NtfyConfig struct {
	BaseURL string
	Topic   string
	Timeout time.Duration
}

// LoadNtfyConfig reads notification settings from the environment.
func LoadNtfyConfig() *NtfyConfig {
	return &NtfyConfig{
		BaseURL: getEnv("NTFY_URL", "https://ntfy.sh"),
		Topic:   os.Getenv("NTFY_TOPIC"),
		Timeout: getEnvDuration("NTFY_TIMEOUT", 10*time.Second),
	}
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
