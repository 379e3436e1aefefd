// Package testutil provides shared test helpers for datasets and calendar sources.
package testutil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/typikon/internal/dataset"
	"github.com/starford/typikon/internal/models"
)

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDataset writes rows to a temporary JSON file and opens a Store on it.
func TestDataset(t *testing.T, rows ...models.LocalReading) *dataset.Store {
	t.Helper()
	if rows == nil {
		rows = []models.LocalReading{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "readings.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := dataset.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// Nicholas returns the dataset row for St. Nicholas on 2025-12-06.
func Nicholas() models.LocalReading {
	return models.LocalReading{
		Date:    "120625",
		Year:    "2025",
		Title:   "St. Nicholas the Wonderworker",
		Tone:    Str("4"),
		Epistle: Str("Heb. 13:17-21"),
		Gospel:  Str("Luke 6:17-23"),
	}
}

// Nativity returns the dataset row for the Nativity on 2025-12-25.
func Nativity() models.LocalReading {
	return models.LocalReading{
		Date:                "122525",
		Year:                "2025",
		Title:               "Nativity of Our Lord",
		Epistle:             Str("Gal. 4:4-7"),
		Gospel:              Str("Matt. 2:1-12"),
		CanadaHoliday:       Str("Christmas Day"),
		HolyDayOfObligation: true,
	}
}

// FakeSource is an in-memory calendar source keyed by YYYY-MM-DD.
type FakeSource struct {
	mu    sync.Mutex
	Days  map[string][]models.RemoteEvent
	Err   error
	Calls int

	Invalidated []string
}

// NewFakeSource returns an empty FakeSource.
func NewFakeSource() *FakeSource {
	return &FakeSource{Days: make(map[string][]models.RemoteEvent)}
}

// Set stores events for date.
func (f *FakeSource) Set(date string, events ...models.RemoteEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Days[date] = events
}

// Fail makes every call return err (nil clears it).
func (f *FakeSource) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// Events implements calendar.Source.
func (f *FakeSource) Events(_ context.Context, day time.Time) ([]models.RemoteEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Days[day.Format(models.DateLayout)], nil
}

// Invalidate records that the cached events for day were dropped.
func (f *FakeSource) Invalidate(day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Invalidated = append(f.Invalidated, day.Format(models.DateLayout))
	return nil
}
