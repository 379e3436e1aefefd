package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/starford/typikon/internal/models"
)

const maxOccurrencesPerEvent = 500

// ICS reads events from an iCalendar feed, expanding recurrences.
type ICS struct {
	url    string
	loc    *time.Location
	client *http.Client
	logger *slog.Logger
}

// NewICS creates an ICS source for feedURL. webcal:// URLs are fetched over
// https.
func NewICS(feedURL string, loc *time.Location, client *http.Client, logger *slog.Logger) (*ICS, error) {
	if feedURL == "" {
		return nil, errors.New("calendar: ics url is empty")
	}
	if strings.HasPrefix(feedURL, "webcal://") {
		feedURL = "https://" + strings.TrimPrefix(feedURL, "webcal://")
	}
	if loc == nil {
		loc = time.Local
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ICS{url: feedURL, loc: loc, client: client, logger: logger}, nil
}

// Events fetches the feed and returns the occurrences overlapping day.
func (s *ICS) Events(ctx context.Context, day time.Time) ([]models.RemoteEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("calendar: ics: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar: ics: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar: ics: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("calendar: ics: read body: %w", err)
	}

	events, err := ParseICS(body, s.loc, s.logger)
	if err != nil {
		return nil, err
	}
	return Occurrences(events, day, s.loc), nil
}

// VEvent is the subset of an iCalendar VEVENT needed to place it on a day.
type VEvent struct {
	UID          string
	Summary      string
	Description  string
	Start        time.Time
	End          time.Time
	AllDay       bool
	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// ParseICS decodes an iCalendar payload. Floating times and dates are read
// in loc. Events that cannot be placed in time are skipped.
func ParseICS(body []byte, loc *time.Location, logger *slog.Logger) ([]VEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("calendar: ics: empty body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("calendar: ics: parse: %w", err)
	}

	var out []VEvent
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve, loc)
		if perr != nil {
			logger.Warn("calendar: ics: skipping event", slog.String("error", perr.Error()))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (VEvent, error) {
	var ev VEvent
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = unescapeText(p.Value)
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return ev, fmt.Errorf("event %q has no DTSTART", ev.UID)
	}
	start, allDay, err := propTime(startProp.Value, startProp.ICalParameters, loc)
	if err != nil {
		return ev, fmt.Errorf("event %q: DTSTART: %w", ev.UID, err)
	}
	ev.Start, ev.AllDay = start, allDay

	switch endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case endProp != nil:
		end, _, err := propTime(endProp.Value, endProp.ICalParameters, loc)
		if err != nil {
			return ev, fmt.Errorf("event %q: DTEND: %w", ev.UID, err)
		}
		ev.End = end
	case allDay:
		ev.End = start.AddDate(0, 0, 1)
	default:
		ev.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := propTime(part, p.ICalParameters, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, _, err := propTime(p.Value, p.ICalParameters, loc); err == nil {
			ev.RecurrenceID = &t
		}
	}
	return ev, nil
}

// propTime parses a DATE or DATE-TIME value. A value is all-day when it is
// declared VALUE=DATE or carries no time part.
func propTime(value string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, errors.New("empty value")
	}
	if tzs := params["TZID"]; len(tzs) > 0 {
		if tz, err := time.LoadLocation(tzs[0]); err == nil {
			loc = tz
		}
	}
	isDate := !strings.Contains(value, "T")
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}

	switch {
	case isDate:
		t, err := time.ParseInLocation("20060102", value, loc)
		return t, true, err
	case strings.HasSuffix(value, "Z"):
		t, err := time.Parse("20060102T150405Z", value)
		return t, false, err
	default:
		t, err := time.ParseInLocation("20060102T150405", value, loc)
		return t, false, err
	}
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}

// Occurrences returns the events and recurrence instances overlapping day
// (midnight to midnight in loc), ordered by start time.
func Occurrences(events []VEvent, day time.Time, loc *time.Location) []models.RemoteEvent {
	dayStart, _ := DayBounds(day, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	// Instances replaced by a RECURRENCE-ID override, keyed by UID.
	overridden := make(map[string]map[int64]bool)
	for _, ev := range events {
		if ev.RecurrenceID == nil {
			continue
		}
		if overridden[ev.UID] == nil {
			overridden[ev.UID] = make(map[int64]bool)
		}
		overridden[ev.UID][ev.RecurrenceID.Unix()] = true
	}

	type occurrence struct {
		start time.Time
		ev    models.RemoteEvent
	}
	var found []occurrence

	for _, ev := range events {
		if ev.RRule == "" || ev.RecurrenceID != nil {
			if overlaps(ev.Start, ev.End, dayStart, dayEnd) {
				id := ev.UID
				if ev.RecurrenceID != nil {
					id += "_" + instanceSuffix(*ev.RecurrenceID, ev.AllDay)
				}
				found = append(found, occurrence{ev.Start, toRemote(ev, id, ev.Start, ev.End)})
			}
			continue
		}

		r, err := rrule.StrToRRule(ev.RRule)
		if err != nil {
			continue
		}
		r.DTStart(ev.Start)
		var set rrule.Set
		set.RRule(r)
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(ev.Start.Location()))
		}

		span := ev.End.Sub(ev.Start)
		times := set.Between(dayStart.Add(-span), dayEnd, true)
		if len(times) > maxOccurrencesPerEvent {
			times = times[:maxOccurrencesPerEvent]
		}
		for _, st := range times {
			if overridden[ev.UID][st.Unix()] {
				continue
			}
			end := st.Add(span)
			if ev.AllDay {
				days := int(span.Hours()/24 + 0.5)
				if days < 1 {
					days = 1
				}
				end = st.AddDate(0, 0, days)
			}
			if !overlaps(st, end, dayStart, dayEnd) {
				continue
			}
			id := ev.UID + "_" + instanceSuffix(st, ev.AllDay)
			found = append(found, occurrence{st, toRemote(ev, id, st, end)})
		}
	}

	slices.SortStableFunc(found, func(a, b occurrence) int { return a.start.Compare(b.start) })

	out := make([]models.RemoteEvent, 0, len(found))
	for _, o := range found {
		out = append(out, o.ev)
	}
	return out
}

func overlaps(start, end, from, to time.Time) bool {
	if !start.Before(to) {
		return false
	}
	if end.Equal(start) {
		return !start.Before(from)
	}
	return end.After(from)
}

func instanceSuffix(t time.Time, allDay bool) string {
	if allDay {
		return t.Format("20060102")
	}
	return t.UTC().Format("20060102T150405Z")
}

func toRemote(ev VEvent, id string, start, end time.Time) models.RemoteEvent {
	out := models.RemoteEvent{
		ID:          id,
		Summary:     ev.Summary,
		Description: ev.Description,
	}
	if ev.AllDay {
		out.Start = models.EventTime{Date: start.Format(models.DateLayout)}
		out.End = models.EventTime{Date: end.Format(models.DateLayout)}
		return out
	}
	s, e := start, end
	out.Start = models.EventTime{DateTime: &s}
	out.End = models.EventTime{DateTime: &e}
	return out
}
