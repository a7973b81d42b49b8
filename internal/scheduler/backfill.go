package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/nekogallery/internal/imageinfo"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/store/sqlite"
)

const (
	DefaultBackfillWorkers = 4
	DefaultBackfillBatch   = 50
)

// DimensionStore is the part of the catalogue the backfill needs.
type DimensionStore interface {
	ImagesMissingDimensions(ctx context.Context, limit int) ([]sqlite.Image, error)
	UpdateDimensions(ctx context.Context, id uint, width, height int) error
}

// Inspector reads an image's size.
type Inspector interface {
	Inspect(ctx context.Context, url string) (imageinfo.Info, error)
}

// DimensionBackfill fills in width and height for catalogued images, since
// most upstreams never report them.
type DimensionBackfill struct {
	store     DimensionStore
	inspector Inspector
	logger    logger.Logger
	interval  time.Duration
	workers   int
	batch     int
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewDimensionBackfill creates a backfill job.
func NewDimensionBackfill(
	store DimensionStore,
	inspector Inspector,
	log logger.Logger,
	interval time.Duration,
	workers int,
	batch int,
) *DimensionBackfill {
	if workers <= 0 {
		workers = DefaultBackfillWorkers
	}
	if batch <= 0 {
		batch = DefaultBackfillBatch
	}

	return &DimensionBackfill{
		store:     store,
		inspector: inspector,
		logger:    log,
		interval:  interval,
		workers:   workers,
		batch:     batch,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the periodic backfill. The first run happens after one interval
// so startup never waits on image downloads.
func (b *DimensionBackfill) Start(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := b.Run(ctx); err != nil {
					b.logger.Error("dimension backfill failed", logger.Error(err))
				}
			case <-b.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop ends the loop and waits for it to exit.
func (b *DimensionBackfill) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

// Run inspects one batch and returns how many images got real dimensions.
// A failed inspection stores 0x0 so the image is not retried forever.
func (b *DimensionBackfill) Run(ctx context.Context) (int, error) {
	images, err := b.store.ImagesMissingDimensions(ctx, b.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) == 0 {
		b.logger.Debug("no images to backfill")
		return 0, nil
	}

	var resolved atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for _, img := range images {
		g.Go(func() error {
			info, err := b.inspector.Inspect(gctx, img.URL)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger.Debug("inspection failed",
					logger.String("url", img.URL),
					logger.Error(err))
			}

			if err := b.store.UpdateDimensions(gctx, img.ID, info.Width, info.Height); err != nil {
				return err
			}
			if info.Width > 0 && info.Height > 0 {
				resolved.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(resolved.Load()), fmt.Errorf("backfill aborted: %w", err)
	}

	b.logger.Info("dimension backfill completed",
		logger.Int("inspected", len(images)),
		logger.Int64("resolved", resolved.Load()))
	return int(resolved.Load()), nil
}
