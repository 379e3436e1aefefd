package scripture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/typikon/internal/apperr"
)

func TestCleanReference(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Epistle Heb. 11 : 9 – 10.", "Heb. 11:9-10"},
		{"gospel Luke 2:20 - 21;", "Luke 2:20-21"},
		{"  1 Cor. 1:3-9  ", "1 Cor. 1:3-9"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanReference(tt.in); got != tt.want {
			t.Errorf("CleanReference(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitReference(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Heb. 11:9-10; 17-23; 12:1-2", []string{"Heb. 11:9-10", "Heb. 11:17-23", "Heb. 12:1-2"}},
		{"1 Cor. 1:3-9", []string{"1 Cor. 1:3-9"}},
		{"Matt. 4:18-23; Mark 1:1-8", []string{"Matt. 4:18-23", "Mark 1:1-8"}},
		{"Gal. 2:16-20;;", []string{"Gal. 2:16-20"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := SplitReference(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("SplitReference(%q) = %q, want %q", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitReference(%q) = %q, want %q", tt.in, got, tt.want)
				break
			}
		}
	}
}

func bibleServer(t *testing.T, fail string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimPrefix(r.URL.Path, "/")
		if r.URL.Query().Get("translation") != "dra" {
			http.Error(w, "bad translation", http.StatusBadRequest)
			return
		}
		if ref == fail {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"reference":%q,"verses":[{"book_name":"Hebrews","chapter":11,"verse":9,"text":" By faith he abode.\n"}]}`, ref)
	}))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_PassageKeepsOrder(t *testing.T) {
	srv := bibleServer(t, "")
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, quietLogger())
	chunks, err := c.Passage(context.Background(), "Heb. 11:9-10; 17-23; 12:1-2")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Heb. 11:9-10", "Heb. 11:17-23", "Heb. 12:1-2"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %d, want %d", len(chunks), len(want))
	}
	for i, c := range chunks {
		if c.Reference != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Reference, want[i])
		}
	}
	if chunks[0].Verses[0].Text != "By faith he abode." {
		t.Errorf("verse text = %q", chunks[0].Verses[0].Text)
	}
}

func TestClient_PassageSkipsFailedChunk(t *testing.T) {
	srv := bibleServer(t, "Heb. 11:17-23")
	defer srv.Close()

	c := NewClient(srv.URL, "dra", 0, quietLogger())
	chunks, err := c.Passage(context.Background(), "Heb. 11:9-10; 17-23")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Reference != "Heb. 11:9-10" {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestClient_PassageAllFail(t *testing.T) {
	srv := bibleServer(t, "Heb. 11:9-10")
	defer srv.Close()

	c := NewClient(srv.URL, "dra", 0, quietLogger())
	if _, err := c.Passage(context.Background(), "Heb. 11:9-10"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.Passage(context.Background(), "  "); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty ref err = %v, want ErrNotFound", err)
	}
}
