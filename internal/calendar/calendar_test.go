package calendar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	start, end := DayBounds(time.Date(2025, time.December, 7, 3, 0, 0, 0, time.UTC), loc)
	if got := start.Format(googleTimeLayout); got != "2025-12-06T00:00:00.000-05:00" {
		t.Errorf("start = %s", got)
	}
	if got := end.Format(googleTimeLayout); got != "2025-12-06T23:59:59.999-05:00" {
		t.Errorf("end = %s", got)
	}
}

func TestGoogle_Events(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[
			{"id":"e1","summary":"St. Nicholas","description":"Epistle: Heb. 13:17-21","start":{"date":"2025-12-06"},"end":{"date":"2025-12-07"}},
			{"id":"e2","summary":"Vespers","start":{"dateTime":"2025-12-06T17:00:00-05:00"},"end":{"dateTime":"2025-12-06T18:00:00-05:00"}}
		]}`)
	}))
	defer srv.Close()

	loc := time.FixedZone("EST", -5*3600)
	g, err := NewGoogle("abc@group.calendar.google.com", "secret", loc, WithGoogleBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	events, err := g.Events(context.Background(), time.Date(2025, time.December, 6, 12, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	if gotPath != "/abc%40group.calendar.google.com/events" {
		t.Errorf("path = %q", gotPath)
	}
	want := map[string]string{
		"key":          "secret",
		"timeMin":      "2025-12-06T00:00:00.000-05:00",
		"timeMax":      "2025-12-06T23:59:59.999-05:00",
		"singleEvents": "true",
		"orderBy":      "startTime",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if !events[0].Start.AllDay() || events[0].Start.Date != "2025-12-06" || events[0].End.Date != "2025-12-07" {
		t.Errorf("all-day event decoded as %+v", events[0])
	}
	if events[1].Start.DateTime == nil || events[1].Start.AllDay() {
		t.Errorf("timed event decoded as %+v", events[1])
	}
}

func TestGoogle_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"API key not valid"}}`)
	}))
	defer srv.Close()

	g, err := NewGoogle("cal", "bad", time.UTC, WithGoogleBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = g.Events(context.Background(), time.Now())
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("err = %v, want status message", err)
	}
}

func TestGoogle_EmptyItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	g, _ := NewGoogle("cal", "k", time.UTC, WithGoogleBaseURL(srv.URL))
	events, err := g.Events(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("events = %#v, want empty non-nil slice", events)
	}
}

func TestNewGoogle_MissingKey(t *testing.T) {
	if _, err := NewGoogle("cal", "", time.UTC); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Parish//Readings//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:nicholas\r\n" +
	"DTSTART;VALUE=DATE:20251206\r\n" +
	"DTEND;VALUE=DATE:20251207\r\n" +
	"SUMMARY:St. Nicholas\r\n" +
	"DESCRIPTION:Epistle: Heb. 13:17-21\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:vespers\r\n" +
	"DTSTART:20251206T170000Z\r\n" +
	"DTEND:20251206T180000Z\r\n" +
	"SUMMARY:Vespers\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:sunday\r\n" +
	"DTSTART;VALUE=DATE:20251130\r\n" +
	"DTEND;VALUE=DATE:20251201\r\n" +
	"RRULE:FREQ=WEEKLY;BYDAY=SU\r\n" +
	"EXDATE;VALUE=DATE:20251214\r\n" +
	"SUMMARY:Sunday Liturgy\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:sunday\r\n" +
	"RECURRENCE-ID;VALUE=DATE:20251221\r\n" +
	"DTSTART;VALUE=DATE:20251221\r\n" +
	"DTEND;VALUE=DATE:20251222\r\n" +
	"SUMMARY:Sunday before Nativity\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:nodate\r\n" +
	"SUMMARY:Broken\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func parseFeed(t *testing.T) []VEvent {
	t.Helper()
	events, err := ParseICS([]byte(feed), time.UTC, quietLogger())
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	return events
}

func TestParseICS(t *testing.T) {
	events := parseFeed(t)
	if len(events) != 4 {
		t.Fatalf("events = %d, want 4 (broken event skipped)", len(events))
	}
	if !events[0].AllDay || events[0].Summary != "St. Nicholas" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].AllDay {
		t.Error("timed event parsed as all-day")
	}
	if events[2].RRule == "" || len(events[2].ExDates) != 1 {
		t.Errorf("recurring event = %+v", events[2])
	}
	if events[3].RecurrenceID == nil {
		t.Error("override should carry its recurrence id")
	}
}

func TestOccurrences_SingleDay(t *testing.T) {
	got := Occurrences(parseFeed(t), time.Date(2025, time.December, 6, 0, 0, 0, 0, time.UTC), time.UTC)
	if len(got) != 2 {
		t.Fatalf("occurrences = %+v, want 2", got)
	}
	if got[0].ID != "nicholas" || got[0].Start.Date != "2025-12-06" || got[0].End.Date != "2025-12-07" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].ID != "vespers" || got[1].Start.DateTime == nil {
		t.Errorf("second = %+v", got[1])
	}
}

func TestOccurrences_Recurring(t *testing.T) {
	events := parseFeed(t)

	got := Occurrences(events, time.Date(2025, time.December, 7, 0, 0, 0, 0, time.UTC), time.UTC)
	if len(got) != 1 || got[0].ID != "sunday_20251207" || got[0].Start.Date != "2025-12-07" || got[0].End.Date != "2025-12-08" {
		t.Errorf("Dec 7 = %+v", got)
	}

	if got := Occurrences(events, time.Date(2025, time.December, 14, 0, 0, 0, 0, time.UTC), time.UTC); len(got) != 0 {
		t.Errorf("excluded date produced %+v", got)
	}

	got = Occurrences(events, time.Date(2025, time.December, 21, 0, 0, 0, 0, time.UTC), time.UTC)
	if len(got) != 1 || got[0].Summary != "Sunday before Nativity" || got[0].ID != "sunday_20251221" {
		t.Errorf("override day = %+v", got)
	}

	if got := Occurrences(events, time.Date(2025, time.December, 8, 0, 0, 0, 0, time.UTC), time.UTC); len(got) != 0 {
		t.Errorf("weekday produced %+v", got)
	}
}

func TestICS_Events(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, feed)
	}))
	defer srv.Close()

	src, err := NewICS(srv.URL, time.UTC, srv.Client(), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	events, err := src.Events(context.Background(), time.Date(2025, time.December, 6, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Description != "Epistle: Heb. 13:17-21" {
		t.Errorf("events = %+v", events)
	}
}

func TestICS_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src, _ := NewICS(srv.URL, time.UTC, nil, quietLogger())
	if _, err := src.Events(context.Background(), time.Now()); err == nil {
		t.Error("expected error for 404 feed")
	}
}

func TestNewICS_Webcal(t *testing.T) {
	src, err := NewICS("webcal://example.org/feed.ics", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if src.url != "https://example.org/feed.ics" {
		t.Errorf("url = %q", src.url)
	}
}
