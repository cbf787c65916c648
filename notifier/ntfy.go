package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"lootlook/config"
	"lootlook/models"
)

// Notifier pushes price-change alerts to an ntfy topic. An empty topic
// disables it entirely; callers do not need to check.
type Notifier struct {
	cfg    *config.NtfyConfig
	client *http.Client
}

func New(cfg *config.NtfyConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether a topic is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.Topic != ""
}

// NotifyPriceChange publishes a drop/rise alert for a bookmark whose price
// moved. Failures are logged, never propagated: a notification outage must
// not fail a price check.
func (n *Notifier) NotifyPriceChange(ctx context.Context, b *models.Bookmark, oldPrice, newPrice float64) {
	if !n.Enabled() {
		return
	}

	direction := "dropped"
	tags := "chart_with_downwards_trend,moneybag"
	if newPrice > oldPrice {
		direction = "rose"
		tags = "chart_with_upwards_trend"
	}

	title := fmt.Sprintf("Price %s: %s", direction, b.Title)
	body := fmt.Sprintf("%s %.2f -> %s %.2f on %s", b.Currency, oldPrice, b.Currency, newPrice, b.SiteName)

	if err := n.publish(ctx, title, body, b.URL, tags); err != nil {
		log.Warn().Err(err).Int("bookmark_id", b.ID).Msg("notify: publish failed")
		return
	}
	log.Info().Int("bookmark_id", b.ID).Float64("old", oldPrice).Float64("new", newPrice).
		Msg("notify: price change published")
}

// publish POSTs one message to the topic. Headers ride HTTP, so title and
// tags are sanitized to printable ASCII first.
func (n *Notifier) publish(ctx context.Context, title, body, clickURL, tags string) error {
	endpoint := strings.TrimRight(n.cfg.BaseURL, "/") + "/" + n.cfg.Topic

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Title", sanitizeHeader(title))
	req.Header.Set("Tags", sanitizeHeader(tags))
	if clickURL != "" {
		req.Header.Set("Click", clickURL)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to ntfy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

// sanitizeHeader strips everything outside printable ASCII. Product titles
// carry currency glyphs and emoji that are invalid in HTTP header values.
func sanitizeHeader(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r <= 0x7E {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
