package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/typikon/internal/apperr"
	"github.com/starford/typikon/internal/calendar"
	"github.com/starford/typikon/internal/models"
)

// Source serves calendar events from the cache and falls back to the
// wrapped source on a miss or an expired entry. When the wrapped source
// fails, an expired entry is served instead of the error.
type Source struct {
	db     *DB
	next   calendar.Source
	ttl    time.Duration
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithTTL sets how long an entry counts as fresh. Zero means forever.
func WithTTL(ttl time.Duration) SourceOption {
	return func(s *Source) { s.ttl = ttl }
}

// WithLocation sets the timezone used to key days.
func WithLocation(loc *time.Location) SourceOption {
	return func(s *Source) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) { s.logger = l }
}

// NewSource wraps next with the cache in db.
func NewSource(db *DB, next calendar.Source, opts ...SourceOption) *Source {
	s := &Source{
		db:     db,
		next:   next,
		loc:    time.Local,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) key(day time.Time) string {
	return day.In(s.loc).Format(models.DateLayout)
}

// Events implements calendar.Source.
func (s *Source) Events(ctx context.Context, day time.Time) ([]models.RemoteEvent, error) {
	key := s.key(day)

	entry, err := s.db.Get(key)
	switch {
	case err == nil:
		if s.ttl <= 0 || s.now().Sub(entry.FetchedAt) < s.ttl {
			s.logger.Debug("cache: hit", slog.String("date", key))
			return entry.Events, nil
		}
	case errors.Is(err, apperr.ErrNotFound):
	default:
		s.logger.Warn("cache: read failed", slog.String("date", key), slog.String("error", err.Error()))
	}

	events, ferr := s.next.Events(ctx, day)
	if ferr != nil {
		if entry != nil {
			s.logger.Warn("cache: remote failed, serving stale entry",
				slog.String("date", key),
				slog.String("error", ferr.Error()))
			return entry.Events, nil
		}
		return nil, ferr
	}

	if _, perr := s.db.Put(key, events, s.now()); perr != nil {
		s.logger.Warn("cache: write failed", slog.String("date", key), slog.String("error", perr.Error()))
	}
	return events, nil
}

// Refresh fetches day from the wrapped source and stores it, ignoring any
// cached entry. It reports whether the stored events changed.
func (s *Source) Refresh(ctx context.Context, day time.Time) (bool, error) {
	events, err := s.next.Events(ctx, day)
	if err != nil {
		return false, err
	}
	return s.db.Put(s.key(day), events, s.now())
}

// Invalidate drops the cached entry for day so the next read goes to the
// wrapped source.
func (s *Source) Invalidate(day time.Time) error {
	return s.db.Delete(s.key(day))
}

// Purge drops entries for days before the calendar day of before.
func (s *Source) Purge(before time.Time) (int64, error) {
	return s.db.Purge(s.key(before))
}
