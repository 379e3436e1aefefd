// Package readingservice composes the local dataset, the remote calendar and
// the reconciliation engine into the operations exposed by the API and MCP
// layers.
package readingservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/typikon/internal/apperr"
	"github.com/starford/typikon/internal/calendar"
	"github.com/starford/typikon/internal/dataset"
	"github.com/starford/typikon/internal/models"
	"github.com/starford/typikon/internal/parser"
	"github.com/starford/typikon/internal/reconcile"
	"github.com/starford/typikon/internal/scripture"
	"github.com/starford/typikon/internal/titles"
)

// Dataset exposes the current local readings table.
type Dataset interface {
	Table() *dataset.Table
}

// Scripture fetches passage text for a reference.
type Scripture interface {
	Passage(ctx context.Context, ref string) ([]scripture.Chunk, error)
}

// Invalidator is implemented by sources that cache remote events.
type Invalidator interface {
	Invalidate(day time.Time) error
}

// ParsedReading pairs a reading with the fields extracted from its
// description.
type ParsedReading struct {
	models.UnifiedReading
	Parsed models.ParsedDescription `json:"parsed"`
}

// Comparison is the result of comparing two titles.
type Comparison struct {
	NormalizedA string  `json:"normalized_a"`
	NormalizedB string  `json:"normalized_b"`
	Score       float64 `json:"score"`
	Duplicate   bool    `json:"duplicate"`
}

// SundayNav holds a Sunday and its neighbours one week either side.
type SundayNav struct {
	Sunday   string `json:"sunday"`
	Previous string `json:"previous"`
	Next     string `json:"next"`
}

// Service coordinates the local dataset, remote source and reconciliation.
type Service struct {
	data      Dataset
	source    calendar.Source
	engine    reconcile.Engine
	scripture Scripture
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the timezone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithScripture sets the passage client.
func WithScripture(c Scripture) Option {
	return func(s *Service) { s.scripture = c }
}

// WithClock overrides the current time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new reading service.
func NewService(data Dataset, source calendar.Source, engine reconcile.Engine, opts ...Option) *Service {
	s := &Service{
		data:   data,
		source: source,
		engine: engine,
		loc:    time.Local,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the timezone that defines calendar days.
func (s *Service) Location() *time.Location {
	return s.loc
}

// ParseDate parses a YYYY-MM-DD date in the service timezone. An empty
// string selects the upcoming Sunday.
func (s *Service) ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return UpcomingSunday(s.now().In(s.loc)), nil
	}
	d, err := time.ParseInLocation(models.DateLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", apperr.ErrInvalidDate, v)
	}
	return d, nil
}

// Readings returns the reconciled readings for day. A remote failure is only
// fatal when the dataset has nothing for day.
func (s *Service) Readings(ctx context.Context, day time.Time) ([]models.UnifiedReading, error) {
	out, _, err := s.readings(ctx, day)
	return out, err
}

func (s *Service) readings(ctx context.Context, day time.Time) ([]models.UnifiedReading, *models.LocalReading, error) {
	day = s.truncate(day)
	date := day.Format(models.DateLayout)
	local := s.data.Table().Lookup(day)

	events, err := s.source.Events(ctx, day)
	if err != nil {
		if local == nil {
			return nil, nil, fmt.Errorf("%w: %w", apperr.ErrRemoteUnavailable, err)
		}
		s.logger.Warn("readings: remote fetch failed, using local reading",
			slog.String("date", date),
			slog.String("error", err.Error()))
		events = nil
	}

	out := s.engine.Reconcile(day, local, events)
	s.logger.Debug("readings: reconciled",
		slog.String("date", date),
		slog.Int("remote", len(events)),
		slog.Int("result", len(out)),
		slog.Bool("local", local != nil))
	return out, local, nil
}

// ParsedReadings returns Readings with each description decomposed. The
// local entry takes its fields from the dataset row instead of re-reading
// its synthesized description.
func (s *Service) ParsedReadings(ctx context.Context, day time.Time) ([]ParsedReading, error) {
	readings, local, err := s.readings(ctx, day)
	if err != nil {
		return nil, err
	}
	out := make([]ParsedReading, len(readings))
	for i, r := range readings {
		p := ParsedReading{UnifiedReading: r}
		if r.Origin == models.OriginLocal && local != nil {
			p.Parsed = localFields(local)
		} else {
			p.Parsed = parser.Extract(r.Description)
		}
		out[i] = p
	}
	return out, nil
}

func localFields(r *models.LocalReading) models.ParsedDescription {
	field := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		if t == "" {
			return nil
		}
		return &t
	}
	return models.ParsedDescription{
		Tone:         field(r.Tone),
		MatinsGospel: field(r.MatinsGospel),
		Epistle:      field(r.Epistle),
		Gospel:       field(r.Gospel),
		Notes:        field(r.Notes),
	}
}

// Invalidate drops any cached remote events for day so the next read
// refetches them. It does nothing when the source keeps no cache.
func (s *Service) Invalidate(day time.Time) error {
	inv, ok := s.source.(Invalidator)
	if !ok {
		return nil
	}
	if err := inv.Invalidate(s.truncate(day)); err != nil {
		return fmt.Errorf("readings: invalidate %s: %w", day.Format(models.DateLayout), err)
	}
	return nil
}

// Local returns the dataset row for day.
func (s *Service) Local(day time.Time) (*models.LocalReading, error) {
	r := s.data.Table().Lookup(s.truncate(day))
	if r == nil {
		return nil, apperr.ErrNotFound
	}
	return r, nil
}

// HolyDays returns the holy days of obligation in year as YYYY-MM-DD.
func (s *Service) HolyDays(year int) []string {
	days := s.data.Table().HolyDays(year)
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(models.DateLayout)
	}
	return out
}

// IsHolyDay reports whether day is a holy day of obligation.
func (s *Service) IsHolyDay(day time.Time) bool {
	return s.data.Table().IsHolyDay(s.truncate(day))
}

// Parse decomposes a free-text description.
func (s *Service) Parse(description string) models.ParsedDescription {
	return parser.Extract(description)
}

// Compare normalizes and scores two titles with the configured threshold.
func (s *Service) Compare(a, b string) Comparison {
	return Compare(a, b, s.engine.Threshold)
}

// Compare normalizes and scores two titles. A non-positive threshold selects
// titles.DuplicateThreshold.
func Compare(a, b string, threshold float64) Comparison {
	na, nb := titles.Normalize(a), titles.Normalize(b)
	score := titles.Similarity(na, nb)
	if threshold <= 0 {
		threshold = titles.DuplicateThreshold
	}
	return Comparison{
		NormalizedA: na,
		NormalizedB: nb,
		Score:       score,
		Duplicate:   score >= threshold,
	}
}

// Scripture fetches the passage text for ref.
func (s *Service) Scripture(ctx context.Context, ref string) ([]scripture.Chunk, error) {
	if s.scripture == nil {
		return nil, fmt.Errorf("scripture: no client configured: %w", apperr.ErrNotFound)
	}
	return s.scripture.Passage(ctx, ref)
}

// Sundays returns the upcoming Sunday relative to from together with the
// Sundays a week before and after.
func (s *Service) Sundays(from time.Time) SundayNav {
	sun := UpcomingSunday(from.In(s.loc))
	return SundayNav{
		Sunday:   sun.Format(models.DateLayout),
		Previous: sun.AddDate(0, 0, -7).Format(models.DateLayout),
		Next:     sun.AddDate(0, 0, 7).Format(models.DateLayout),
	}
}

// Now returns the current time in the service timezone.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) truncate(day time.Time) time.Time {
	d := day.In(s.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
}

// UpcomingSunday returns midnight of t's day when t is a Sunday, otherwise
// midnight of the following Sunday, in t's location.
func UpcomingSunday(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (7 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, offset)
}
