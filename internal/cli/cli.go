// Package cli provides the syncctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/c0deZ3R0/go-sync-engine/config"
	"github.com/c0deZ3R0/go-sync-engine/logging"
)

// Version is the current version of the application.
var Version = "dev"

// env carries state prepared by the root Before hook.
type env struct {
	app    *config.App
	logger *logging.Logger
	out    io.Writer
}

// Run executes the CLI with the given arguments, writing to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}
	e := &env{out: out}

	app := &cli.Command{
		Name:      "syncctl",
		Usage:     "Compare, validate and synchronize record collections",
		Version:   Version,
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML, JSON or TOML config file",
				Sources: cli.EnvVars("SYNCENGINE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("no-color") {
				color.NoColor = true
			}
			return ctx, e.setup(cmd)
		},
		Commands: []*cli.Command{
			diffCommand(e),
			validateCommand(e),
			syncCommand(e),
			conflictsCommand(e),
			tuneCommand(e),
			watchCommand(e),
		},
	}
	for _, c := range app.Commands {
		c.Action = logged(c.Name, c.Action)
	}
	return app.Run(ctx, args)
}

// logged runs action as a logged operation named after its command.
func logged(name string, action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return logging.WithComponent(logging.ComponentCLI).
			LogOperation(ctx, logging.Operation(name), func() error { return action(ctx, cmd) })
	}
}

func (e *env) setup(cmd *cli.Command) error {
	app, err := config.LoadApp(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		app.Logging.Level = lvl
	}
	if app.Logging.Output == nil {
		app.Logging.Output = os.Stderr
	}

	logging.Init(app.Logging)
	e.app = app
	e.logger = logging.Default()
	return nil
}
