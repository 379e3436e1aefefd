// Package calendar fetches the remote events for a single day from a
// calendar provider.
package calendar

import (
	"context"
	"time"

	"github.com/starford/typikon/internal/models"
)

// Source returns the events that overlap one calendar day.
type Source interface {
	Events(ctx context.Context, day time.Time) ([]models.RemoteEvent, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, day time.Time) ([]models.RemoteEvent, error)

// Events calls f.
func (f SourceFunc) Events(ctx context.Context, day time.Time) ([]models.RemoteEvent, error) {
	return f(ctx, day)
}

// DayBounds returns local midnight of day and the last millisecond of the
// same day, both in loc.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = day.Location()
	}
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return start, end
}
