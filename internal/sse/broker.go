// Package sse implements a Server-Sent Events broker that pushes load,
// dataset and calendar changes to connected clients.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is one message on the stream. Date scopes it to a single day; an
// empty Date reaches every client.
type Event struct {
	Type string `json:"type"`
	Date string `json:"date,omitempty"`
	Data any    `json:"data"`
}

// Event types emitted by the broker itself, plus the dataset reload event
// published by the server.
const (
	TypeCalendarRefreshed = "calendar.refreshed"
	TypeCalendarUpdated   = "calendar.updated"
	TypeDatasetReloaded   = "dataset.reloaded"
)

const (
	defaultThrottle  = 2 * time.Second
	defaultKeepAlive = 30 * time.Second
	clientBuffer     = 64
	retryMillis      = 3000
)

// Option configures a Broker.
type Option func(*Broker)

// WithThrottle sets the minimum gap between two calendar.updated events.
func WithThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.throttle = d
		}
	}
}

// WithKeepAlive sets how often ServeHTTP writes a comment line to idle
// streams. Zero disables it.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) {
		b.keepAlive = d
	}
}

// Client is one subscription. Messages arrive on C until the client is
// unsubscribed or the broker closes.
type Client struct {
	C    chan []byte
	date string
}

func (c *Client) wants(e Event) bool {
	return c.date == "" || e.Date == "" || c.date == e.Date
}

// Broker fans events out to subscribed clients. A single loop goroutine owns
// the client set and the throttle clock.
type Broker struct {
	throttle  time.Duration
	keepAlive time.Duration

	joinCh   chan *Client
	leaveCh  chan *Client
	eventCh  chan Event
	refresh  chan string
	countCh  chan chan int
	quit     chan struct{}
	finished chan struct{}
	closed   atomic.Bool
}

// NewBroker starts a broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		throttle:  defaultThrottle,
		keepAlive: defaultKeepAlive,
		joinCh:    make(chan *Client),
		leaveCh:   make(chan *Client),
		eventCh:   make(chan Event, 256),
		refresh:   make(chan string, 256),
		countCh:   make(chan chan int),
		quit:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

// encode renders e in the text/event-stream wire format with a fresh id.
func encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(uuid.NewString())
	buf.WriteString("\nevent: ")
	buf.WriteString(e.Type)
	buf.WriteString("\ndata: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

func (b *Broker) loop() {
	defer close(b.finished)

	clients := make(map[*Client]struct{})
	var lastSummary time.Time

	send := func(e Event) {
		msg, err := encode(e)
		if err != nil {
			return
		}
		for c := range clients {
			if !c.wants(e) {
				continue
			}
			select {
			case c.C <- msg:
			default:
				// slow client, drop
			}
		}
	}

	for {
		select {
		case <-b.quit:
			for c := range clients {
				close(c.C)
			}
			return
		case c := <-b.joinCh:
			clients[c] = struct{}{}
		case c := <-b.leaveCh:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.C)
			}
		case e := <-b.eventCh:
			send(e)
		case date := <-b.refresh:
			send(Event{Type: TypeCalendarRefreshed, Date: date, Data: map[string]string{"date": date}})
			if now := time.Now(); now.Sub(lastSummary) >= b.throttle {
				lastSummary = now
				send(Event{Type: TypeCalendarUpdated, Data: map[string]string{}})
			}
		case resp := <-b.countCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.finished
}

// Subscribe registers a client. A non-empty date limits it to events for
// that day plus unscoped events.
func (b *Broker) Subscribe(date string) *Client {
	c := &Client{C: make(chan []byte, clientBuffer), date: date}
	if b.closed.Load() {
		close(c.C)
		return c
	}
	select {
	case b.joinCh <- c:
	case <-b.finished:
		close(c.C)
	}
	return c
}

// Unsubscribe removes c and closes its channel.
func (b *Broker) Unsubscribe(c *Client) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leaveCh <- c:
	case <-b.finished:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.finished:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.finished:
		return 0
	}
}

// Publish queues e for delivery. It is a no-op after Close.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- e:
	case <-b.finished:
	}
}

// PublishDayRefresh announces that the cached events for date changed. A
// calendar.updated summary follows at most once per throttle window.
func (b *Broker) PublishDayRefresh(date string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.refresh <- date:
	case <-b.finished:
	}
}

// ServeHTTP streams events to one client (GET /api/events?date=YYYY-MM-DD).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: " + strconv.Itoa(retryMillis) + "\n\n"))
	flusher.Flush()

	c := b.Subscribe(r.URL.Query().Get("date"))
	defer b.Unsubscribe(c)

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		ticker := time.NewTicker(b.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case msg, ok := <-c.C:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
