package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/focusguard/internal"
	pkgconfig "github.com/starford/focusguard/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func edit(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithDate(cmd.String("date")),
	}
	if url := cmd.String("url"); url != "" {
		cfg.Editor.ServiceURL = url
	}
	return internal.RunEditor(ctx, opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func main() {
	cmd := &cli.Command{
		Name:    "focusguard",
		Usage:   "Daily progress notes with a block editor, streaks and task carryover",
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
				Usage:  "Run the HTTP service for the editor and browser extension",
				Action: serve,
			},
			{
				Name:   "edit",
				Usage:  "Open today's note in the terminal editor",
				Action: edit,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "Open the note for `YYYY-MM-DD` read-only",
					},
					&cli.StringFlag{
						Name:    "url",
						Usage:   "Service base URL",
						Sources: cli.EnvVars("FOCUSGUARD_URL"),
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve notes to MCP clients over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
