// Package reconcile merges the local reading for a date with the remote
// calendar events for the same date into one ordered, duplicate-free list.
package reconcile

import (
	"slices"
	"strings"
	"time"

	"github.com/starford/typikon/internal/models"
	"github.com/starford/typikon/internal/parser"
	"github.com/starford/typikon/internal/titles"
)

// Engine holds the duplicate threshold. The zero value uses
// titles.DuplicateThreshold.
type Engine struct {
	Threshold float64
}

// New returns an Engine with the given threshold; a non-positive value
// selects the default.
func New(threshold float64) Engine {
	return Engine{Threshold: threshold}
}

func (e Engine) threshold() float64 {
	if e.Threshold <= 0 {
		return titles.DuplicateThreshold
	}
	return e.Threshold
}

// Reconcile orders remote events with liturgical content first (stable) and,
// when local is non-nil, puts the synthesized local record first and drops
// every remote event that duplicates it.
func (e Engine) Reconcile(day time.Time, local *models.LocalReading, events []models.RemoteEvent) []models.UnifiedReading {
	sorted := SortByContent(events)

	if local == nil {
		out := make([]models.UnifiedReading, 0, len(sorted))
		for _, ev := range sorted {
			out = append(out, fromRemote(ev))
		}
		return out
	}

	synth := Synthesize(day, local)
	localTitle := titles.Normalize(local.Title)
	threshold := e.threshold()

	out := make([]models.UnifiedReading, 0, len(sorted)+1)
	out = append(out, synth)
	for _, ev := range sorted {
		if titles.Similarity(localTitle, titles.Normalize(ev.Summary)) >= threshold {
			continue
		}
		if ev.Summary == synth.Summary && ev.Description == synth.Description {
			continue
		}
		out = append(out, fromRemote(ev))
	}
	return out
}

// SortByContent returns a copy of events with those whose description
// mentions Epistle or Gospel first; relative order is otherwise preserved.
func SortByContent(events []models.RemoteEvent) []models.RemoteEvent {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b models.RemoteEvent) int {
		ac := parser.HasLiturgicalContent(a.Description)
		bc := parser.HasLiturgicalContent(b.Description)
		switch {
		case ac && !bc:
			return -1
		case !ac && bc:
			return 1
		default:
			return 0
		}
	})
	return sorted
}

// Synthesize builds the UnifiedReading for a local reading shown on day. The
// record spans day as an all-day event with an exclusive end date.
func Synthesize(day time.Time, local *models.LocalReading) models.UnifiedReading {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	return models.UnifiedReading{
		RemoteEvent: models.RemoteEvent{
			ID:          "local-" + local.Date,
			Summary:     local.Title,
			Description: Describe(local),
			Start:       models.EventTime{Date: start.Format(models.DateLayout)},
			End:         models.EventTime{Date: end.Format(models.DateLayout)},
		},
		Origin: models.OriginLocal,
		Local: &models.LocalMeta{
			Fasting:             local.Fasting,
			CanadaHoliday:       local.CanadaHoliday,
			USAHoliday:          local.USAHoliday,
			HolyDayOfObligation: local.HolyDayOfObligation,
		},
	}
}

// Describe joins the present reading fields of local, one per line, in the
// order Epistle, Gospel, Tone, Matins Gospel, Notes.
func Describe(local *models.LocalReading) string {
	var lines []string
	add := func(prefix string, v *string) {
		if v == nil || strings.TrimSpace(*v) == "" {
			return
		}
		lines = append(lines, prefix+*v)
	}
	add("Epistle: ", local.Epistle)
	add("Gospel: ", local.Gospel)
	add("Tone ", local.Tone)
	add("Matins Gospel: ", local.MatinsGospel)
	add("", local.Notes)
	return strings.Join(lines, "\n")
}

func fromRemote(ev models.RemoteEvent) models.UnifiedReading {
	return models.UnifiedReading{RemoteEvent: ev, Origin: models.OriginRemote}
}
