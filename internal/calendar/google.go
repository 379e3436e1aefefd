package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/typikon/internal/models"
)

// DefaultGoogleBaseURL is the Calendar v3 calendars endpoint.
const DefaultGoogleBaseURL = "https://www.googleapis.com/calendar/v3/calendars"

const googleTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrMissingAPIKey is returned when the Google source has no API key.
var ErrMissingAPIKey = errors.New("calendar: google api key is missing")

// Google reads a public Google Calendar through the v3 REST API.
type Google struct {
	baseURL    string
	calendarID string
	apiKey     string
	loc        *time.Location
	client     *http.Client
}

// GoogleOption configures a Google source.
type GoogleOption func(*Google)

// WithGoogleBaseURL overrides the API endpoint.
func WithGoogleBaseURL(u string) GoogleOption {
	return func(g *Google) {
		if u != "" {
			g.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) GoogleOption {
	return func(g *Google) { g.client = c }
}

// NewGoogle creates a Google source. Day boundaries are computed in loc.
func NewGoogle(calendarID, apiKey string, loc *time.Location, opts ...GoogleOption) (*Google, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if calendarID == "" {
		return nil, errors.New("calendar: google calendar id is empty")
	}
	if loc == nil {
		loc = time.Local
	}
	g := &Google{
		baseURL:    DefaultGoogleBaseURL,
		calendarID: calendarID,
		apiKey:     apiKey,
		loc:        loc,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type googleEventsResponse struct {
	Items []models.RemoteEvent `json:"items"`
}

type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Events lists the single (expanded) events between local midnight and the
// end of day, ordered by start time.
func (g *Google) Events(ctx context.Context, day time.Time) ([]models.RemoteEvent, error) {
	timeMin, timeMax := DayBounds(day, g.loc)

	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("timeMin", timeMin.Format(googleTimeLayout))
	q.Set("timeMax", timeMax.Format(googleTimeLayout))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	endpoint := fmt.Sprintf("%s/%s/events?%s", g.baseURL, url.PathEscape(g.calendarID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("calendar: google: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar: google: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("calendar: google: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr googleErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("calendar: google: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("calendar: google: status %d", resp.StatusCode)
	}

	var out googleEventsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("calendar: google: decode: %w", err)
	}
	if out.Items == nil {
		out.Items = []models.RemoteEvent{}
	}
	return out.Items, nil
}
