package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/starford/typikon/internal/models"
)

// RefreshCallback is called for every prefetched day whose events changed.
type RefreshCallback func(day string)

// Prefetcher refreshes the cache for the next few days on a cron schedule,
// so reads for upcoming Sundays rarely reach the remote calendar.
type Prefetcher struct {
	src       *Source
	daysAhead int
	loc       *time.Location
	logger    *slog.Logger
	keepDays  int
	cron      *cron.Cron
	onChange  RefreshCallback

	ctx context.Context
}

// PrefetchOption configures a Prefetcher.
type PrefetchOption func(*Prefetcher)

// WithRetention makes every scheduled run drop cached days older than
// keepDays before today. Zero keeps everything.
func WithRetention(keepDays int) PrefetchOption {
	return func(p *Prefetcher) { p.keepDays = keepDays }
}

// NewPrefetcher schedules a warm-up of daysAhead days (starting today) using
// a standard five-field cron expression evaluated in loc.
func NewPrefetcher(src *Source, schedule string, daysAhead int, loc *time.Location, logger *slog.Logger, cb RefreshCallback, opts ...PrefetchOption) (*Prefetcher, error) {
	if loc == nil {
		loc = time.Local
	}
	p := &Prefetcher{
		src:       src,
		daysAhead: daysAhead,
		loc:       loc,
		logger:    logger,
		onChange:  cb,
		cron:      cron.New(cron.WithLocation(loc)),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if _, err := p.cron.AddFunc(schedule, p.tick); err != nil {
		return nil, fmt.Errorf("cache: prefetch schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// a running job to finish.
func (p *Prefetcher) Run(ctx context.Context) error {
	p.ctx = ctx
	p.cron.Start()
	p.logger.Info("prefetch: scheduler started", slog.Int("days_ahead", p.daysAhead))

	<-ctx.Done()
	<-p.cron.Stop().Done()
	p.logger.Info("prefetch: scheduler stopped")
	return nil
}

func (p *Prefetcher) tick() {
	now := time.Now()
	if removed, err := p.Prune(now); err != nil {
		p.logger.Warn("prefetch: prune failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		p.logger.Info("prefetch: pruned old days", slog.Int64("removed", removed))
	}

	n, err := p.Warm(p.ctx, now)
	if err != nil {
		p.logger.Warn("prefetch: warm finished with errors",
			slog.Int("changed", n),
			slog.String("error", err.Error()))
		return
	}
	p.logger.Info("prefetch: warm finished", slog.Int("changed", n))
}

// Prune removes cached days more than keepDays before now's calendar day.
func (p *Prefetcher) Prune(now time.Time) (int64, error) {
	if p.keepDays <= 0 {
		return 0, nil
	}
	now = now.In(p.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.loc)
	return p.src.Purge(today.AddDate(0, 0, -p.keepDays))
}

// Warm refreshes every day from 'from' through daysAhead-1 days later. It
// keeps going past failed days and returns their errors joined.
func (p *Prefetcher) Warm(ctx context.Context, from time.Time) (int, error) {
	from = from.In(p.loc)
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, p.loc)

	var errs []error
	changed := 0
	for i := 0; i < p.daysAhead; i++ {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		day := start.AddDate(0, 0, i)
		key := day.Format(models.DateLayout)
		ok, err := p.src.Refresh(ctx, day)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if ok {
			changed++
			if p.onChange != nil {
				p.onChange(key)
			}
		}
	}
	return changed, errors.Join(errs...)
}
