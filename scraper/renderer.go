package scraper

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
	"github.com/ysmood/gson"

	"lootlook/config"
)

// RenderResult is the best-effort output of one page render.
type RenderResult struct {
	HTML           string
	ScreenshotPath string
}

// PageRenderer drives a headless browser to load a product page under a
// consistent device profile, dismiss interstitials, settle lazy content and
// capture a screenshot. Every call launches and tears down its own browser:
// concurrent extractions share nothing, and a wedged page can only poison
// its own process.
type PageRenderer struct {
	cfg    *config.ScraperConfig
	device config.DeviceProfile
}

// NewPageRenderer builds a renderer from pipeline config.
func NewPageRenderer(cfg *config.ScraperConfig, device config.DeviceProfile) *PageRenderer {
	return &PageRenderer{cfg: cfg, device: device}
}

// stealthScript suppresses the properties sites probe to spot automation.
// The advertised platform/plugins/languages must stay consistent with the
// device profile's user agent.
const stealthScript = `
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined,
	});
	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5],
	});
	Object.defineProperty(navigator, 'languages', {
		get: () => ['en-US', 'en'],
	});
	Object.defineProperty(navigator, 'platform', {
		get: () => 'Win32',
	});
	window.chrome = {
		runtime: {},
	};
	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications' ?
			Promise.resolve({ state: Notification.permission }) :
			originalQuery(parameters)
	);
`

// interstitialLabels match the visible text of common consent/age-gate
// buttons. Each is a case-insensitive anchored regex for rod's ElementR.
var interstitialLabels = []string{
	`/^accept( all)?( cookies)?$/i`,
	`/^allow( all)?$/i`,
	`/^agree$/i`,
	`/^i agree$/i`,
	`/^confirm$/i`,
	`/^continue$/i`,
	`/^got it$/i`,
	`/^ok$/i`,
	`/^close$/i`,
}

// Render loads url and returns whatever HTML and screenshot could be
// captured. The only error path is the browser process failing to start;
// navigation timeouts and partial loads degrade to a partial result.
func (r *PageRenderer) Render(ctx context.Context, url, outputDir string) (*RenderResult, error) {
	browser, cleanup, err := r.launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer cleanup()

	page, err := r.newPage(ctx, browser)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	// Best effort from here on: a failed navigation still leaves DOM state
	// worth extracting and a viewport worth photographing.
	if err := rod.Try(func() {
		page.Timeout(r.cfg.NavigationTimeout).MustNavigate(url).MustWaitLoad()
	}); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("render: navigation incomplete, proceeding with partial DOM")
	}

	r.dismissInterstitials(page)
	r.settleContent(page)

	result := &RenderResult{}

	if html, err := page.HTML(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("render: could not read DOM")
	} else {
		result.HTML = html
	}

	if path, err := r.captureScreenshot(page, outputDir); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("render: screenshot failed")
	} else {
		result.ScreenshotPath = path
	}

	return result, nil
}

// launch starts an isolated browser process. The returned cleanup closes the
// browser and reaps the process, and must run on every exit path.
func (r *PageRenderer) launch() (*rod.Browser, func(), error) {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false).
		Set("disable-blink-features", "AutomationControlled")

	if r.cfg.ChromiumBin != "" {
		l = l.Bin(r.cfg.ChromiumBin)
	} else if _, err := os.Stat("/usr/bin/chromium-browser"); err == nil {
		l = l.Bin("/usr/bin/chromium-browser")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, err
	}

	cleanup := func() {
		if err := browser.Close(); err != nil {
			log.Warn().Err(err).Msg("render: browser close failed")
		}
		l.Kill()
	}
	return browser, cleanup, nil
}

// newPage creates the page and applies the device profile and stealth
// countermeasures before any navigation happens.
func (r *PageRenderer) newPage(ctx context.Context, browser *rod.Browser) (*rod.Page, error) {
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx)

	err = rod.Try(func() {
		page.MustSetViewport(r.device.Width, r.device.Height, r.device.Scale, r.device.Mobile)
		page.MustSetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      r.device.UserAgent,
			AcceptLanguage: r.device.Language,
		})
		page.MustEvalOnNewDocument(stealthScript)
	})
	if err != nil {
		_ = page.Close()
		return nil, err
	}

	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: r.device.Timezone}).Call(page); err != nil {
		// Timezone emulation is a fingerprinting nicety, not a requirement.
		log.Debug().Err(err).Msg("render: timezone override unsupported")
	}

	return page, nil
}

// dismissInterstitials clicks through consent walls by visible button text.
// Every attempt has its own short timeout and is individually fault
// tolerant; most pages have none of these buttons.
func (r *PageRenderer) dismissInterstitials(page *rod.Page) {
	for _, label := range interstitialLabels {
		err := rod.Try(func() {
			page.Timeout(r.cfg.InterstitialTimeout).
				MustElementR(`button, [role="button"], a`, label).
				MustClick()
		})
		if err == nil {
			log.Debug().Str("label", label).Msg("render: dismissed interstitial")
			time.Sleep(r.cfg.SettleDelay)
		}
	}
}

// settleContent scrolls partway down and back up so lazy-loaded images fire
// and sticky banners finish animating before capture.
func (r *PageRenderer) settleContent(page *rod.Page) {
	_ = rod.Try(func() {
		page.MustEval(`() => window.scrollTo(0, document.body.scrollHeight / 2)`)
	})
	time.Sleep(r.cfg.SettleDelay)
	_ = rod.Try(func() {
		page.MustEval(`() => window.scrollTo(0, 0)`)
	})
	time.Sleep(r.cfg.SettleDelay)
}

// captureScreenshot writes a JPEG of the current viewport to a
// collision-resistant filename under outputDir.
func (r *PageRenderer) captureScreenshot(page *rod.Page, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(r.cfg.ScreenshotQuality),
	})
	if err != nil {
		return "", err
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d_%s.jpg", time.Now().UnixNano(), hex.EncodeToString(suffix))
	path := filepath.Join(outputDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
