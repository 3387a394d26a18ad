package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/articleservice"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/lint"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/storage"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runLint(_ context.Context, cmd *cli.Command) error {
	// Lint can run against a bare directory with no config file; the
	// defaults stand in for anything the file would have set.
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfPresent(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if corpus := cmd.String("corpus"); corpus != "" {
		cfg.Corpus.Path = corpus
	}

	store, err := storage.NewFS(cfg.Corpus.Path)
	if err != nil {
		return err
	}

	report, err := lint.Run(store, cfg.Corpus.Separator)
	if err != nil {
		return err
	}
	report.Write(os.Stdout)

	if !report.Clean() {
		return cli.Exit("", 1)
	}
	return nil
}

func runMCP(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.NewFS(cfg.Corpus.Path)
	if err != nil {
		return err
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := articleservice.NewService(store, db, cfg.Corpus.Separator)
	return mcpserver.New(store, svc).ServeStdio()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "ansuz",
		Usage:  "Article corpus server with frontmatter linting, full-text search, and taxonomy browsing",
		Action: runServe,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "lint",
				Usage:  "Validate frontmatter of every article in the corpus and report all problems",
				Action: runLint,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "corpus",
						Usage: "Corpus directory to lint (overrides config)",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio for LLM integration",
				Action: runMCP,
				Flags:  []cli.Flag{configFlag},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
