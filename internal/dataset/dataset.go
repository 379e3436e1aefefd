// Package dataset loads the curated local readings file into an immutable
// lookup table keyed by calendar day.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/starford/typikon/internal/checksum"
	"github.com/starford/typikon/internal/models"
)

// KeyLayout formats a day as the dataset key (MMDDYY).
const KeyLayout = "010206"

// Key returns the dataset key for day in day's own location.
func Key(day time.Time) string {
	return day.Format(KeyLayout)
}

// Table is a read-only view of one version of the dataset. It is safe for
// concurrent use and is never mutated after Parse returns it.
type Table struct {
	rows     []models.LocalReading
	byDate   map[string]int
	checksum string
}

// Load reads and parses the dataset file at path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of readings. When two rows share a date the
// later one wins, like a map built in file order.
func Parse(data []byte) (*Table, error) {
	var rows []models.LocalReading
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("dataset: decode: %w", err)
	}

	t := &Table{
		rows:     rows,
		byDate:   make(map[string]int, len(rows)),
		checksum: checksum.Sum(data),
	}
	for i, r := range rows {
		if r.Date == "" {
			continue
		}
		t.byDate[r.Date] = i
	}
	return t, nil
}

// Lookup returns the reading for day, or nil. day is truncated to its
// calendar date in its own location.
func (t *Table) Lookup(day time.Time) *models.LocalReading {
	if t == nil {
		return nil
	}
	i, ok := t.byDate[Key(day)]
	if !ok {
		return nil
	}
	r := t.rows[i]
	return &r
}

// IsHolyDay reports whether day is flagged as a holy day of obligation.
func (t *Table) IsHolyDay(day time.Time) bool {
	r := t.Lookup(day)
	return r != nil && r.HolyDayOfObligation
}

// HolyDays returns the holy days of obligation for year in date order.
func (t *Table) HolyDays(year int) []time.Time {
	if t == nil {
		return nil
	}
	want := fmt.Sprintf("%d", year)
	var out []time.Time
	for _, r := range t.rows {
		if r.Year != want || !r.HolyDayOfObligation {
			continue
		}
		d, err := time.Parse(KeyLayout, r.Date)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, time.Time.Equal)
}

// Len returns the number of distinct dates.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byDate)
}

// Checksum returns the SHA-256 of the bytes the table was parsed from.
func (t *Table) Checksum() string {
	if t == nil {
		return ""
	}
	return t.checksum
}
