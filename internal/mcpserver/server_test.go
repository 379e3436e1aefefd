package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/typikon/internal/models"
	"github.com/starford/typikon/internal/readingservice"
	"github.com/starford/typikon/internal/reconcile"
	"github.com/starford/typikon/internal/testutil"
)

var est = time.FixedZone("EST", -5*3600)

func testServer(t *testing.T) (*Server, *testutil.FakeSource) {
	t.Helper()
	src := testutil.NewFakeSource()
	data := testutil.TestDataset(t, testutil.Nicholas(), testutil.Nativity())
	now := time.Date(2025, time.December, 3, 9, 0, 0, 0, est)
	svc := readingservice.NewService(data, src, reconcile.New(0),
		readingservice.WithLocation(est),
		readingservice.WithLogger(testutil.Logger()),
		readingservice.WithClock(func() time.Time { return now }),
	)
	return New(svc, "test"), src
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the
	// handler functions.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_readings":
		result, err = srv.getReadings(ctx, req)
	case "get_local_reading":
		result, err = srv.getLocalReading(ctx, req)
	case "parse_description":
		result, err = srv.parseDescription(ctx, req)
	case "compare_titles":
		result, err = srv.compareTitles(ctx, req)
	case "get_holy_days":
		result, err = srv.getHolyDays(ctx, req)
	case "get_description_format":
		result, err = srv.getDescriptionFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetReadings(t *testing.T) {
	srv, src := testServer(t)
	src.Set("2025-12-06", models.RemoteEvent{ID: "v", Summary: "Vespers"})

	r := callTool(t, srv, "get_readings", map[string]any{"date": "2025-12-06"})
	if r.IsError {
		t.Fatalf("error result: %s", resultText(r))
	}
	var out struct {
		Date     string                         `json:"date"`
		Readings []readingservice.ParsedReading `json:"readings"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Date != "2025-12-06" || len(out.Readings) != 2 {
		t.Fatalf("out = %+v", out)
	}
	if g := out.Readings[0].Parsed.Gospel; g == nil || *g != "Luke 6:17-23" {
		t.Errorf("local gospel = %v", g)
	}
}

func TestGetReadings_DefaultDate(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_readings", map[string]any{})
	if !strings.Contains(resultText(r), `"date": "2025-12-07"`) {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestGetReadings_BadDate(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_readings", map[string]any{"date": "tomorrow"})
	if !r.IsError {
		t.Error("expected error for invalid date")
	}
}

func TestGetLocalReading(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_local_reading", map[string]any{"date": "2025-12-25"})
	if !strings.Contains(resultText(r), "Nativity of Our Lord") {
		t.Errorf("result = %s", resultText(r))
	}

	r = callTool(t, srv, "get_local_reading", map[string]any{"date": "2025-12-24"})
	if r.IsError || resultText(r) != "no local reading for 2025-12-24" {
		t.Errorf("missing = %q", resultText(r))
	}

	r = callTool(t, srv, "get_local_reading", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing date")
	}
}

func TestParseDescription(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "parse_description", map[string]any{
		"description": "Tone 5. Epistle: Gal. 2:16-20; Gospel: Luke 8:41-56.",
	})
	var p models.ParsedDescription
	if err := json.Unmarshal([]byte(resultText(r)), &p); err != nil {
		t.Fatal(err)
	}
	if p.Tone == nil || *p.Tone != "5" || p.Epistle == nil || *p.Epistle != "Gal. 2:16-20" {
		t.Errorf("parsed = %+v", p)
	}
}

func TestCompareTitles(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "compare_titles", map[string]any{
		"a": "St. Nicholas the Wonderworker",
		"b": "Saint Nicholas, Wonderworker",
	})
	var c readingservice.Comparison
	if err := json.Unmarshal([]byte(resultText(r)), &c); err != nil {
		t.Fatal(err)
	}
	if !c.Duplicate {
		t.Errorf("comparison = %+v, want duplicate", c)
	}

	r = callTool(t, srv, "compare_titles", map[string]any{"a": "x"})
	if !r.IsError {
		t.Error("expected error for missing b")
	}
}

func TestGetHolyDays(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_holy_days", map[string]any{})
	if resultText(r) != "2025-12-25" {
		t.Errorf("default year = %q", resultText(r))
	}
	r = callTool(t, srv, "get_holy_days", map[string]any{"year": float64(2024)})
	if resultText(r) != "no holy days recorded" {
		t.Errorf("2024 = %q", resultText(r))
	}
}

func TestDescriptionFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_description_format", nil)
	if resultText(r) != DescriptionFormat {
		t.Error("tool should return the format document")
	}

	contents, err := srv.readDescriptionFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != DescriptionFormatURI {
		t.Errorf("resource = %+v", contents[0])
	}
}

func TestDescriptionFormat_ExampleMatchesParser(t *testing.T) {
	_, rest, ok := strings.Cut(DescriptionFormat, "## Example\n\n")
	if !ok {
		t.Fatal("format document has no example")
	}
	input, rest, ok := strings.Cut(rest, "\n\nparses to\n\n")
	if !ok {
		t.Fatal("example has no expected output")
	}
	output, _, _ := strings.Cut(rest, "\n\n")

	var want models.ParsedDescription
	if err := json.Unmarshal([]byte(output), &want); err != nil {
		t.Fatalf("example output is not JSON: %v", err)
	}

	srv, _ := testServer(t)
	r := callTool(t, srv, "parse_description", map[string]any{"description": strings.TrimSpace(input)})
	var got models.ParsedDescription
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("tool output: %v", err)
	}

	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(want)
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("parsed example = %s, document says %s", gotJSON, wantJSON)
	}
}
