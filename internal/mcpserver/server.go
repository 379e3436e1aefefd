// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes typikon reading tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/typikon/internal/apperr"
	"github.com/starford/typikon/internal/models"
	"github.com/starford/typikon/internal/readingservice"
)

// Server wraps the MCP server with typikon tools.
type Server struct {
	mcp *server.MCPServer
	svc *readingservice.Service
}

type holyDaysArgs struct {
	Year int `json:"year,omitempty"`
}

// New creates a new MCP server with all typikon tools registered.
func New(svc *readingservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Typikon",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_readings",
		mcp.WithDescription("Reconciled liturgical readings for a date: the local dataset entry first, "+
			"then remote calendar events that do not duplicate it."),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD; defaults to the upcoming Sunday")),
	), s.getReadings)

	s.mcp.AddTool(mcp.NewTool("get_local_reading",
		mcp.WithDescription("The curated dataset entry for a date, if any."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date as YYYY-MM-DD")),
	), s.getLocalReading)

	s.mcp.AddTool(mcp.NewTool("parse_description",
		mcp.WithDescription("Extract tone, epistle, gospel, matins gospel and notes from a free-text "+
			"event description. See the typikon://description-format resource for the conventions."),
		mcp.WithString("description", mcp.Required(), mcp.Description("Event description, HTML allowed")),
	), s.parseDescription)

	s.mcp.AddTool(mcp.NewTool("compare_titles",
		mcp.WithDescription("Normalize two commemoration titles and report their similarity and "+
			"whether they would be treated as duplicates."),
		mcp.WithString("a", mcp.Required(), mcp.Description("First title")),
		mcp.WithString("b", mcp.Required(), mcp.Description("Second title")),
	), s.compareTitles)

	s.mcp.AddTool(mcp.NewTool("get_holy_days",
		mcp.WithDescription("Holy days of obligation in a year, as YYYY-MM-DD dates."),
		mcp.WithNumber("year", mcp.Description("Year; defaults to the current year"), mcp.Min(1)),
	), s.getHolyDays)

	s.mcp.AddTool(mcp.NewTool("get_description_format",
		mcp.WithDescription("Returns the description format understood by parse_description."),
	), s.getDescriptionFormat)

	s.mcp.AddResource(
		mcp.NewResource(DescriptionFormatURI, "Reading Description Format",
			mcp.WithResourceDescription("Conventions for liturgical readings inside event descriptions."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDescriptionFormatResource,
	)

	return s
}

// Listen serves MCP requests read from in and writes responses to out until
// ctx is cancelled or in is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultErrorFromErr("encode result", err)
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) getReadings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day, err := s.svc.ParseDate(req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	readings, err := s.svc.ParsedReadings(ctx, day)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"date":     day.Format(models.DateLayout),
		"holy_day": s.svc.IsHolyDay(day),
		"readings": readings,
	}), nil
}

func (s *Server) getLocalReading(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := s.svc.ParseDate(date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.svc.Local(day)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultText("no local reading for " + day.Format(models.DateLayout)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(r), nil
}

func (s *Server) parseDescription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Parse(desc)), nil
}

func (s *Server) compareTitles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := req.RequireString("a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := req.RequireString("b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Compare(a, b)), nil
}

func (s *Server) getHolyDays(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args holyDaysArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	if args.Year == 0 {
		args.Year = s.svc.Now().Year()
	}
	if args.Year < 0 {
		return mcp.NewToolResultError("year must be positive"), nil
	}
	days := s.svc.HolyDays(args.Year)
	if len(days) == 0 {
		return mcp.NewToolResultText("no holy days recorded"), nil
	}
	return mcp.NewToolResultText(strings.Join(days, "\n")), nil
}

func (s *Server) getDescriptionFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DescriptionFormat), nil
}

func (s *Server) readDescriptionFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DescriptionFormatURI,
			MIMEType: "text/markdown",
			Text:     DescriptionFormat,
		},
	}, nil
}
