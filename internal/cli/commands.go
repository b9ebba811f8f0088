package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/diff"
	"github.com/c0deZ3R0/go-sync-engine/orchestrator"
)

func sourceFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "source",
		Aliases:  []string{"s"},
		Usage:    "JSON or YAML file holding the source records",
		Required: required,
	}
}

func targetFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "target",
		Aliases: []string{"t"},
		Usage:   "JSON or YAML file holding the target records",
	}
}

func sourceIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "source-id",
		Usage: "Identifier of the source (defaults to the source file name)",
	}
}

func formatFlag(name, usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    name,
		Aliases: []string{"o"},
		Usage:   usage,
	}
}

// sourceID is --source-id, falling back to the base name of --source.
func sourceID(cmd *cli.Command) string {
	if id := cmd.String("source-id"); id != "" {
		return id
	}
	if p := cmd.String("source"); p != "" {
		return filepath.Base(p)
	}
	return ""
}

func encode(w io.Writer, v any, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// diffOutput is what diff prints in json or yaml.
type diffOutput struct {
	Differences diff.Result     `json:"differences" yaml:"differences"`
	Conflicts   conflict.Result `json:"conflicts" yaml:"conflicts"`
}

func diffCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Show differences and conflicts between two record collections",
		Flags: []cli.Flag{
			sourceFlag(true),
			targetFlag(),
			formatFlag("format", "Output format: text, json or yaml"),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			source, err := loadRecords(cmd.String("source"))
			if err != nil {
				return err
			}
			target, err := loadRecords(cmd.String("target"))
			if err != nil {
				return err
			}

			engine := diff.NewEngine(diff.WithConfig(e.app.Comparison), diff.WithLogger(e.logger))
			differences := engine.CalculateDifferences(source, target)

			conflicts := conflict.NoConflicts()
			if e.app.EnableConflictDetection {
				detector := conflict.NewDetector(conflict.WithConfig(e.app.Conflict), conflict.WithLogger(e.logger))
				conflicts = detector.DetectConflicts(source, target, differences.Modified)
			}

			if f := cmd.String("format"); f != "" && f != "text" {
				return encode(e.out, diffOutput{Differences: differences, Conflicts: conflicts}, f)
			}
			printDiff(e.out, differences, conflicts)
			return nil
		},
	}
}

func printDiff(w io.Writer, d diff.Result, c conflict.Result) {
	s := d.Summary
	fmt.Fprintf(w, "%s %d  %s %d  %s %d  %s %d\n",
		bold("added"), s.AddedCount,
		bold("modified"), s.ModifiedCount,
		bold("deleted"), s.DeletedCount,
		bold("unchanged"), s.UnchangedCount)

	for _, r := range d.Added {
		id, _ := r.ID()
		fmt.Fprintf(w, "  %s %s\n", success("+"), id)
	}
	for _, m := range d.Modified {
		fmt.Fprintf(w, "  %s %s %s\n", info("~"), m.ID, dim(strings.Join(m.ChangedFields(), ", ")))
	}
	for _, r := range d.Deleted {
		id, _ := r.ID()
		fmt.Fprintf(w, "  %s %s\n", failure("-"), id)
	}

	if !c.HasConflicts {
		fmt.Fprintln(w, statusOK("no conflicts"))
		return
	}
	fmt.Fprintln(w, statusWarn(fmt.Sprintf("%d conflicts, severity %s", c.Count(), c.Severity)))
	for _, it := range c.Items {
		fmt.Fprintf(w, "  %s %s.%s: %v -> %v [%s]\n", warning("!"), it.ID, it.Field, it.TargetValue, it.SourceValue, it.Severity)
	}
}

func validateCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check that two collections can be synchronized",
		Flags: []cli.Flag{
			sourceFlag(false),
			targetFlag(),
			sourceIDFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			source, err := readCollection(cmd.String("source"))
			if err != nil {
				return err
			}
			target, err := readCollection(cmd.String("target"))
			if err != nil {
				return err
			}

			o, err := orchestrator.New(
				orchestrator.WithCoordinator(orchestrator.NoopCoordinator{}),
				orchestrator.WithConfig(e.app.Config),
				orchestrator.WithLogger(e.logger),
			)
			if err != nil {
				return err
			}

			res := o.ValidateSyncPrerequisites(orchestrator.Request{
				SourceData: source,
				TargetData: target,
				Options:    &orchestrator.Options{Source: sourceID(cmd)},
			})
			for _, msg := range res.Errors {
				fmt.Fprintln(e.out, statusError(msg))
			}
			for _, msg := range res.Warnings {
				fmt.Fprintln(e.out, statusWarn(msg))
			}
			if !res.IsValid {
				return fmt.Errorf("validation failed with %d errors", len(res.Errors))
			}
			fmt.Fprintln(e.out, statusOK("ready to sync"))
			return nil
		},
	}
}

func tuneCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "tune",
		Usage: "Propose a configuration for the given load",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "avg-time",
				Usage: "Average processing time per sync",
				Value: 500 * time.Millisecond,
			},
			&cli.FloatFlag{
				Name:  "conflict-rate",
				Usage: "Conflicts per synchronized record, between 0 and 1",
			},
			formatFlag("format", "Output format: text, json or yaml"),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rate := cmd.Float("conflict-rate")
			if rate < 0 || rate > 1 {
				return fmt.Errorf("conflict-rate must be between 0 and 1, got %v", rate)
			}

			o, err := orchestrator.New(
				orchestrator.WithCoordinator(orchestrator.NoopCoordinator{}),
				orchestrator.WithConfig(e.app.Config),
				orchestrator.WithLogger(e.logger),
			)
			if err != nil {
				return err
			}

			opt := o.OptimizeSyncPerformance(orchestrator.PerformanceStats{
				AverageProcessingTime: cmd.Duration("avg-time"),
				ConflictRate:          rate,
			})

			if f := cmd.String("format"); f != "" && f != "text" {
				return encode(e.out, opt, f)
			}

			before := e.app.Config
			fmt.Fprintf(e.out, "%s %d -> %d\n", bold("batch size"), before.BatchSize, opt.Config.BatchSize)
			fmt.Fprintf(e.out, "%s %v -> %v\n", bold("parallel"), before.EnableParallelProcessing, opt.Config.EnableParallelProcessing)
			fmt.Fprintf(e.out, "%s %s -> %s\n", bold("conflict level"), before.Conflict.Level, opt.Config.Conflict.Level)
			for _, r := range opt.Recommendations {
				fmt.Fprintf(e.out, "  %s [%s] %s\n", info(string(r.Type)), r.Priority, r.Message)
			}
			return nil
		},
	}
}
