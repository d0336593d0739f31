package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/prodsearch/internal/domain/search/request"
	"github.com/kailas-cloud/prodsearch/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	s := &session{}
	return &cli.App{
		Name:    "prodsearch-cli",
		Usage:   "Search the product catalog by vector similarity, LLM ranking or both",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Configuration environment (config/<env>.yaml)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit configuration file, overrides --env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: s.setup,
		After:  s.teardown,
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Build the vector index and print the report",
				Action: s.indexCommand,
			},
			{
				Name:      "search",
				Usage:     "Run a single search",
				ArgsUsage: "QUERY",
				Action:    s.searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Search mode (vector, semantic, hybrid)",
						Value:   "hybrid",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results",
						Value:   request.DefaultTopK,
					},
					&cli.StringFlag{
						Name:    "brand",
						Aliases: []string{"b"},
						Usage:   "Only products of this brand (vector and semantic modes)",
					},
				},
			},
			{
				Name:   "shell",
				Usage:  "Interactive search loop",
				Action: s.shellCommand,
			},
		},
	}
}
