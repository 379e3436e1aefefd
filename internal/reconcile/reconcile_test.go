package reconcile

import (
	"testing"
	"time"

	"github.com/starford/typikon/internal/models"
	"github.com/starford/typikon/internal/titles"
)

func strp(s string) *string { return &s }

var day = time.Date(2025, time.December, 6, 0, 0, 0, 0, time.UTC)

func nicholas(title string) *models.LocalReading {
	return &models.LocalReading{
		Date:                "120625",
		Year:                "2025",
		Title:               title,
		Tone:                strp("4"),
		Epistle:             strp("Heb. 13:17-21"),
		Gospel:              strp("Luke 6:17-23"),
		Fasting:             strp("Common Abstinence"),
		HolyDayOfObligation: false,
	}
}

func ids(list []models.UnifiedReading) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

func equalIDs(t *testing.T, got []models.UnifiedReading, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

func TestReconcile_NoLocalSortsStable(t *testing.T) {
	events := []models.RemoteEvent{
		{ID: "a", Summary: "Parish picnic", Description: "Bring a dish"},
		{ID: "b", Summary: "Sunday readings", Description: "Epistle: Rom. 5:1-10"},
		{ID: "c", Summary: "Choir practice"},
		{ID: "d", Summary: "Feast", Description: "Gospel: John 1:1-17"},
	}
	got := Engine{}.Reconcile(day, nil, events)
	equalIDs(t, got, "b", "d", "a", "c")
	for _, r := range got {
		if r.Origin != models.OriginRemote || r.Local != nil {
			t.Errorf("remote entry %q has origin %q", r.ID, r.Origin)
		}
	}
	if events[0].ID != "a" {
		t.Error("input slice must not be reordered")
	}
}

func TestReconcile_LocalFirstAndKeptWhenTitlesDiffer(t *testing.T) {
	events := []models.RemoteEvent{
		{ID: "r1", Summary: "Saint Nicholas the Wonderworker", Description: "Epistle: Heb. 13:17-21"},
	}
	got := Engine{}.Reconcile(day, nicholas("St. Nicholas"), events)
	equalIDs(t, got, "local-120625", "r1")

	first := got[0]
	if first.Origin != models.OriginLocal {
		t.Errorf("origin = %q, want local", first.Origin)
	}
	if first.Start.Date != "2025-12-06" || first.End.Date != "2025-12-07" {
		t.Errorf("span = %s..%s, want 2025-12-06..2025-12-07", first.Start.Date, first.End.Date)
	}
	if first.Local == nil || first.Local.Fasting == nil || *first.Local.Fasting != "Common Abstinence" {
		t.Errorf("local metadata missing: %+v", first.Local)
	}
}

func TestReconcile_SuppressesSimilarTitle(t *testing.T) {
	events := []models.RemoteEvent{
		{ID: "dup", Summary: "Saint Nicholas, Wonderworker", Description: "Gospel: Luke 6:17-23"},
		{ID: "other", Summary: "Parish council"},
	}
	got := Engine{}.Reconcile(day, nicholas("St. Nicholas the Wonderworker"), events)
	equalIDs(t, got, "local-120625", "other")
}

func TestReconcile_ExactDuplicateFallback(t *testing.T) {
	local := nicholas("St. Job")
	desc := Describe(local)
	events := []models.RemoteEvent{
		{ID: "copy", Summary: "St. Job", Description: desc},
		{ID: "near", Summary: "St. Job", Description: desc + " "},
	}
	got := Engine{}.Reconcile(day, local, events)
	equalIDs(t, got, "local-120625", "near")
}

func TestReconcile_NoSurvivorAboveThreshold(t *testing.T) {
	local := nicholas("Nativity of Our Lord Jesus Christ")
	events := []models.RemoteEvent{
		{ID: "1", Summary: "The Nativity of Our Lord Jesus Christ"},
		{ID: "2", Summary: "Nativity of our Lord, Jesus Christ!"},
		{ID: "3", Summary: "Synaxis of the Theotokos"},
		{ID: "4", Summary: "Vigil of the Nativity"},
	}
	got := Engine{}.Reconcile(day, local, events)
	if got[0].Origin != models.OriginLocal {
		t.Fatal("local reading must be first")
	}
	norm := titles.Normalize(local.Title)
	for _, r := range got[1:] {
		if s := titles.Similarity(norm, titles.Normalize(r.Summary)); s >= titles.DuplicateThreshold {
			t.Errorf("survivor %q scores %v against local title", r.Summary, s)
		}
	}
}

func TestReconcile_CustomThreshold(t *testing.T) {
	events := []models.RemoteEvent{{ID: "r1", Summary: "Saint Nicholas the Wonderworker"}}
	got := New(0.5).Reconcile(day, nicholas("St. Nicholas"), events)
	equalIDs(t, got, "local-120625")
}

func TestReconcile_LocalWithNoRemote(t *testing.T) {
	got := Engine{}.Reconcile(day, nicholas("St. Nicholas"), nil)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestDescribe_FieldOrder(t *testing.T) {
	local := &models.LocalReading{
		Title:        "Sunday of the Prodigal Son",
		Notes:        strp("Following week readings posted"),
		MatinsGospel: strp("3"),
		Tone:         strp("2"),
		Gospel:       strp("Luke 15:11-32"),
		Epistle:      strp("1 Cor. 6:12-20"),
	}
	want := "Epistle: 1 Cor. 6:12-20\nGospel: Luke 15:11-32\nTone 2\nMatins Gospel: 3\nFollowing week readings posted"
	if got := Describe(local); got != want {
		t.Errorf("Describe = %q, want %q", got, want)
	}
	if got := Describe(&models.LocalReading{Title: "x"}); got != "" {
		t.Errorf("Describe with no fields = %q, want empty", got)
	}
}
