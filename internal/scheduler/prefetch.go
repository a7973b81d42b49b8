package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
	"github.com/MrSnakeDoc/nekogallery/internal/gallery"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
)

// ImageSaver persists a page of fetched images and reports how many were new.
type ImageSaver interface {
	SaveImages(ctx context.Context, images []domain.GalleryImage) (int, error)
}

// PersistPage returns a page hook that catalogues every page the gallery
// appends. Failures are logged and never reach the gallery.
func PersistPage(saver ImageSaver, log logger.Logger) gallery.PageHook {
	return func(ctx context.Context, page []domain.GalleryImage) {
		saved, err := saver.SaveImages(ctx, page)
		if err != nil {
			log.Warn("failed to catalogue page", logger.Int("images", len(page)), logger.Error(err))
			return
		}
		log.Debug("catalogued page", logger.Int("images", len(page)), logger.Int("new", saved))
	}
}

// Prefetcher warms the catalogue with a page for the feed's category,
// periodically or on demand. It only reads the feed, so a user's scrolled
// list and any fetch in flight are left alone.
type Prefetcher struct {
	feed          *gallery.Gallery
	loop          *gallery.Loop
	saver         ImageSaver
	logger        logger.Logger
	interval      time.Duration
	opportunistic int
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	manualTrigger chan struct{}

	mu      sync.RWMutex
	lastRun time.Time
}

// NewPrefetcher creates a prefetcher. opportunistic is the number of images
// fetched by Opportunistic; zero disables it.
func NewPrefetcher(
	feed *gallery.Gallery,
	loop *gallery.Loop,
	saver ImageSaver,
	log logger.Logger,
	interval time.Duration,
	opportunistic int,
	manualTrigger chan struct{},
) *Prefetcher {
	return &Prefetcher{
		feed:          feed,
		loop:          loop,
		saver:         saver,
		logger:        log,
		interval:      interval,
		opportunistic: opportunistic,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start runs one refresh, then refreshes on every tick or manual trigger.
// An unreachable upstream at startup is logged, not fatal.
func (p *Prefetcher) Start(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn("initial prefetch failed", logger.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.refreshLogged(ctx)
			case <-p.manualTrigger:
				p.logger.Info("manual prefetch triggered")
				p.refreshLogged(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop ends the loop and waits for it to exit.
func (p *Prefetcher) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Prefetcher) refreshLogged(ctx context.Context) {
	if err := p.Refresh(ctx); err != nil {
		p.logger.Error("failed to prefetch images", logger.Error(err))
	}
}

// Refresh fetches one page for the feed's current category and catalogues it.
func (p *Prefetcher) Refresh(ctx context.Context) error {
	category := p.feed.Category()
	p.logger.Info("prefetching images", logger.String("category", category))

	page, err := p.loop.FetchPage(ctx, category)
	if err != nil {
		return err
	}

	saved := 0
	if p.saver != nil && len(page) > 0 {
		if saved, err = p.saver.SaveImages(ctx, page); err != nil {
			return fmt.Errorf("failed to catalogue prefetched page: %w", err)
		}
	}

	p.mu.Lock()
	p.lastRun = time.Now()
	p.mu.Unlock()

	p.logger.Info("prefetched images",
		logger.Int("fetched", len(page)),
		logger.Int("new", saved))
	return nil
}

// LastRun returns when the last successful refresh finished.
func (p *Prefetcher) LastRun() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastRun
}

// Opportunistic fetches a few images for category and catalogues them.
// Every failure is swallowed; callers go on to serve what is stored.
func (p *Prefetcher) Opportunistic(ctx context.Context, category string) {
	if p.opportunistic <= 0 || p.saver == nil {
		return
	}

	page, err := p.loop.FetchN(ctx, p.opportunistic, category)
	if err != nil {
		p.logger.Debug("opportunistic fetch failed", logger.String("category", category), logger.Error(err))
		return
	}
	if len(page) == 0 {
		return
	}

	if _, err := p.saver.SaveImages(ctx, page); err != nil {
		p.logger.Debug("opportunistic save failed", logger.Error(err))
	}
}
