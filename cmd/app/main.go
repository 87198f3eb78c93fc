package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/betterportal/gateway/cmd/app/commands"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "gateway",
		Usage:   "Permission gated request gateway",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, c *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
