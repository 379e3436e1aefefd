// Package scripture resolves reading references such as "Heb. 11:9-10; 17-23"
// into passage text from a bible-api.com compatible service.
package scripture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/typikon/internal/apperr"
)

// DefaultBaseURL and DefaultTranslation match the public bible-api.com
// service with the Douay-Rheims text.
const (
	DefaultBaseURL     = "https://bible-api.com"
	DefaultTranslation = "dra"
)

const maxParallelChunks = 4

var (
	labelPrefixRe = regexp.MustCompile(`(?i)^(?:Epistle|Gospel)\s*`)
	colonRe       = regexp.MustCompile(`\s*:\s*`)
	hyphenRe      = regexp.MustCompile(`\s*-\s*`)
	trailingRe    = regexp.MustCompile(`[.;]+$`)
	lettersRe     = regexp.MustCompile(`[a-zA-Z]`)
	bookRe        = regexp.MustCompile(`^((?:\d\s*)?[a-zA-Z.]+)\s*(\d+)?`)
	chapterRe     = regexp.MustCompile(`^(\d+):`)
)

// CleanReference strips a leading Epistle/Gospel label, normalizes dashes
// and the spacing around ':' and '-', and drops trailing '.' or ';'.
func CleanReference(ref string) string {
	s := labelPrefixRe.ReplaceAllString(ref, "")
	s = strings.ReplaceAll(s, "–", "-")
	s = colonRe.ReplaceAllString(s, ":")
	s = hyphenRe.ReplaceAllString(s, "-")
	s = strings.TrimSpace(s)
	return trailingRe.ReplaceAllString(s, "")
}

// SplitReference turns a cleaned, semicolon-separated reference into
// self-contained queries. Parts without a book name continue the previous
// book, and parts without a chapter continue the previous chapter:
//
//	"Heb. 11:9-10; 17-23; 12:1-2" -> "Heb. 11:9-10", "Heb. 11:17-23", "Heb. 12:1-2"
func SplitReference(ref string) []string {
	var out []string
	var lastBook, lastChapter string

	for _, part := range strings.Split(CleanReference(ref), ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lettersRe.MatchString(part) {
			if m := bookRe.FindStringSubmatch(part); m != nil {
				lastBook = m[1]
				if m[2] != "" {
					lastChapter = m[2]
				}
			}
			out = append(out, part)
			continue
		}

		if strings.Contains(part, ":") {
			if m := chapterRe.FindStringSubmatch(part); m != nil {
				lastChapter = m[1]
			}
			out = append(out, lastBook+" "+part)
			continue
		}
		out = append(out, lastBook+" "+lastChapter+":"+part)
	}
	return out
}

// Verse is one verse of a passage.
type Verse struct {
	BookName string `json:"book_name"`
	Chapter  int    `json:"chapter"`
	Verse    int    `json:"verse"`
	Text     string `json:"text"`
}

// Chunk is the text for one query produced by SplitReference.
type Chunk struct {
	Reference string  `json:"reference"`
	Verses    []Verse `json:"verses"`
}

// Client fetches passages.
type Client struct {
	baseURL     string
	translation string
	http        *http.Client
	logger      *slog.Logger
}

// NewClient creates a Client. Empty values fall back to the defaults.
func NewClient(baseURL, translation string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if translation == "" {
		translation = DefaultTranslation
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		translation: translation,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Passage fetches every part of ref. Parts that fail are logged and left
// out; if none succeed the result is apperr.ErrNotFound.
func (c *Client) Passage(ctx context.Context, ref string) ([]Chunk, error) {
	queries := SplitReference(ref)
	if len(queries) == 0 {
		return nil, fmt.Errorf("scripture: empty reference: %w", apperr.ErrNotFound)
	}

	results := make([]*Chunk, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChunks)
	for i, q := range queries {
		g.Go(func() error {
			chunk, err := c.fetch(gctx, q)
			if err != nil {
				c.logger.Warn("scripture: chunk failed",
					slog.String("reference", q),
					slog.String("error", err.Error()))
				return nil
			}
			results[i] = chunk
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Chunk, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("scripture: %q: %w", ref, apperr.ErrNotFound)
	}
	return out, nil
}

type passageResponse struct {
	Verses []Verse `json:"verses"`
}

func (c *Client) fetch(ctx context.Context, query string) (*Chunk, error) {
	endpoint := fmt.Sprintf("%s/%s?translation=%s", c.baseURL, url.PathEscape(query), url.QueryEscape(c.translation))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var body passageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(body.Verses) == 0 {
		return nil, fmt.Errorf("no verses")
	}
	for i := range body.Verses {
		body.Verses[i].Text = strings.TrimSpace(body.Verses[i].Text)
	}
	return &Chunk{Reference: query, Verses: body.Verses}, nil
}
