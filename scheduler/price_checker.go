package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"lootlook/config"
	"lootlook/models"
	"lootlook/notifier"
	"lootlook/repository"
	"lootlook/scraper"
)

// PriceChecker re-extracts every tracked bookmark on a fixed schedule,
// persists price movements and pushes notifications for real changes.
type PriceChecker struct {
	cron        *cron.Cron
	repo        *repository.BookmarkRepository
	extractor   *scraper.Extractor
	notify      *notifier.Notifier
	cfg         *config.ScraperConfig
	concurrency int

	mu      sync.Mutex
	running bool
}

// NewPriceChecker wires the checker to the shared extractor and notifier.
func NewPriceChecker(extractor *scraper.Extractor, notify *notifier.Notifier, cfg *config.ScraperConfig) *PriceChecker {
	return &PriceChecker{
		cron:        cron.New(cron.WithSeconds()),
		repo:        repository.NewBookmarkRepository(),
		extractor:   extractor,
		notify:      notify,
		cfg:         cfg,
		concurrency: 3,
	}
}

// Start schedules price checks every 12 hours and kicks one off immediately.
func (pc *PriceChecker) Start() {
	_, err := pc.cron.AddFunc("0 0 */12 * * *", pc.CheckAllPrices)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: failed to schedule price checker")
		return
	}

	go pc.CheckAllPrices()

	pc.cron.Start()
	log.Info().Msg("scheduler: price checker running every 12 hours")
}

// Stop halts the schedule. In-flight checks finish on their own.
func (pc *PriceChecker) Stop() {
	if pc.cron != nil {
		pc.cron.Stop()
	}
}

// CheckAllPrices runs one sweep over the tracked bookmarks through a bounded
// worker pool. Overlapping sweeps are skipped rather than queued: each render
// spawns a browser, so piling sweeps up multiplies resource use.
func (pc *PriceChecker) CheckAllPrices() {
	pc.mu.Lock()
	if pc.running {
		pc.mu.Unlock()
		log.Warn().Msg("scheduler: previous sweep still running, skipping")
		return
	}
	pc.running = true
	pc.mu.Unlock()

	defer func() {
		pc.mu.Lock()
		pc.running = false
		pc.mu.Unlock()
	}()

	bookmarks, err := pc.repo.GetTracked()
	if err != nil {
		log.Error().Err(err).Msg("scheduler: failed to load tracked bookmarks")
		return
	}
	if len(bookmarks) == 0 {
		log.Info().Msg("scheduler: no tracked bookmarks to check")
		return
	}

	log.Info().Int("count", len(bookmarks)).Msg("scheduler: starting price sweep")
	start := time.Now()

	sem := make(chan struct{}, pc.concurrency)
	var wg sync.WaitGroup
	for _, b := range bookmarks {
		wg.Add(1)
		sem <- struct{}{}
		go func(b models.Bookmark) {
			defer wg.Done()
			defer func() { <-sem }()
			pc.checkBookmark(b)
		}(b)
	}
	wg.Wait()

	log.Info().Dur("elapsed", time.Since(start)).Int("count", len(bookmarks)).
		Msg("scheduler: price sweep finished")
}

// checkBookmark re-extracts one bookmark. Failures are isolated: extraction
// never errors, and persistence errors only log.
func (pc *PriceChecker) checkBookmark(b models.Bookmark) {
	ctx := context.Background()

	snap := pc.extractor.ScrapeBookmark(ctx, b.URL, pc.cfg.ScreenshotDir)
	if !snap.HasPrice() {
		log.Info().Int("bookmark_id", b.ID).Str("url", b.URL).
			Msg("scheduler: no price found this sweep")
		if err := pc.repo.MarkChecked(b.ID); err != nil {
			log.Error().Err(err).Int("bookmark_id", b.ID).Msg("scheduler: failed to mark checked")
		}
		return
	}

	newPrice := snap.PriceValue()
	oldPrice := b.GetCurrentPrice()

	if err := pc.repo.UpdatePrice(b.ID, newPrice, snap.Currency); err != nil {
		log.Error().Err(err).Int("bookmark_id", b.ID).Msg("scheduler: failed to persist price")
		return
	}

	if b.HasPrice() && newPrice != oldPrice {
		pc.notify.NotifyPriceChange(ctx, &b, oldPrice, newPrice)
	}
}
