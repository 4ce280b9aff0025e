// Command gridplan validates and executes plan files: declarative
// descriptions of dataflow networks plus the execution-step tree that runs
// them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgrevis/gridplan/internal/engine"
	"github.com/mgrevis/gridplan/internal/expressions"
	"github.com/mgrevis/gridplan/internal/logging"
	"github.com/mgrevis/gridplan/internal/network"
	"github.com/mgrevis/gridplan/internal/scheduler"
	"github.com/mgrevis/gridplan/internal/validation"
	"github.com/mgrevis/gridplan/internal/workspace"
	"github.com/mgrevis/gridplan/pkg/schema"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := loadConfig()
	logger := newLogger(cfg)

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(cfg, logger, os.Args[2:])
	case "validate":
		err = cmdValidate(os.Args[2:])
	case "serve":
		err = cmdServe(cfg, logger, os.Args[2:])
	case "version":
		fmt.Println("gridplan", version)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: gridplan <command> [flags]

commands:
  run       execute a plan file
  validate  check a plan file without running it
  serve     run plans on cron schedules from a schedule file
  version   print the version`)
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if cfg.LogFormat == "json" {
		inner = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(logging.NewCorrelationHandler(inner))
}

func loadPlan(path string) (*schema.PlanDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan schema.PlanDefinition
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}

	v, err := validation.NewValidator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidatePlan(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func newRunner(logger *slog.Logger) *engine.Runner {
	ws := workspace.New(logger)
	builders := network.NewBuilders()
	registerBuiltins(builders, logger)
	reg := network.NewRegistry(ws, builders, logger)
	return engine.NewRunner(ws, reg, logger)
}

func cmdRun(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	planPath := fs.String("plan", "", "path to the plan JSON file")
	contExpr := fs.String("continue", "", `external continuation expression, e.g. "iter < 100 && elapsed_s < 30"`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *planPath == "" {
		return fmt.Errorf("run: -plan is required")
	}

	plan, err := loadPlan(*planPath)
	if err != nil {
		return err
	}

	external := engine.Continuation(nil)
	if *contExpr != "" {
		cont, err := expressions.NewContinuation(*contExpr)
		if err != nil {
			return err
		}
		external = cont
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return newRunner(logger).Run(ctx, plan, external)
}

func cmdValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	planPath := fs.String("plan", "", "path to the plan JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *planPath == "" {
		return fmt.Errorf("validate: -plan is required")
	}

	if _, err := loadPlan(*planPath); err != nil {
		return err
	}
	fmt.Println("plan is valid")
	return nil
}

// scheduledRunner adapts the engine runner to the scheduler's interface.
type scheduledRunner struct {
	runner *engine.Runner
}

func (r *scheduledRunner) RunPlan(ctx context.Context, plan *schema.PlanDefinition) error {
	return r.runner.Run(ctx, plan, nil)
}

func cmdServe(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	schedulePath := fs.String("schedule", "", "path to the schedule YAML file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *schedulePath == "" {
		return fmt.Errorf("serve: -schedule is required")
	}

	jobs, err := scheduler.LoadScheduleFile(*schedulePath)
	if err != nil {
		return err
	}

	v, err := validation.NewValidator()
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if err := v.ValidatePlan(j.Plan); err != nil {
			return fmt.Errorf("job %q: %w", j.Name, err)
		}
	}

	sched := scheduler.New(&scheduledRunner{runner: newRunner(logger)}, logger, cfg.PollInterval)
	for _, j := range jobs {
		if err := sched.Add(j.Name, j.Cron, j.Plan); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	logger.Info("serving scheduled plans", slog.Int("jobs", len(jobs)))
	<-ctx.Done()
	return sched.Stop()
}
