package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/typikon/internal"
	"github.com/starford/typikon/internal/parser"
	"github.com/starford/typikon/internal/readingservice"
	"github.com/starford/typikon/internal/titles"
	pkgconfig "github.com/starford/typikon/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogOutput(os.Stderr),
	}

	if err := internal.RunMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func extract(_ context.Context, cmd *cli.Command) error {
	text := cmd.String("text")
	if text == "" {
		data, err := io.ReadAll(cmd.Root().Reader)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	return printJSON(cmd.Root().Writer, parser.Extract(text))
}

func compare(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("compare: expected exactly two titles")
	}
	threshold := cmd.Float("threshold")
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("compare: threshold must be in (0, 1], got %v", threshold)
	}
	return printJSON(cmd.Root().Writer, readingservice.Compare(cmd.Args().Get(0), cmd.Args().Get(1), threshold))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "typikon",
		Usage:   "Liturgical readings service reconciling a curated dataset with a parish calendar",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE stream, dataset watcher and prefetch scheduler",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "extract",
				Usage:     "Parse an event description and print the extracted fields as JSON",
				ArgsUsage: "[--text DESCRIPTION] (reads stdin when --text is empty)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Description to parse"},
				},
				Action: extract,
			},
			{
				Name:      "compare",
				Usage:     "Normalize two titles and print their similarity",
				ArgsUsage: "TITLE_A TITLE_B",
				Flags: []cli.Flag{
					&cli.FloatFlag{
						Name:  "threshold",
						Usage: "Duplicate threshold",
						Value: titles.DuplicateThreshold,
					},
				},
				Action: compare,
			},
		},
	}
}

func main() {
	cmd := newCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
