// Command automatosx is a thin cobra entrypoint demonstrating end-to-end
// wiring of the orchestration core: it loads project config, constructs
// every singleton in the order SPEC_FULL.md §4.6.2 mandates, and exposes a
// minimal `run <agent> <task>` command. It does not reproduce the full CLI
// surface of SPEC_FULL.md §6 — that is left to a fuller external driver.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"automatosx/internal/config"
	"automatosx/internal/contextmgr"
	"automatosx/internal/executor"
	"automatosx/internal/stage"
	"automatosx/pkg/logger"
)

var (
	projectRoot string
	configPath  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "automatosx",
		Short: "Multi-agent orchestration core",
	}
	root.PersistentFlags().StringVar(&projectRoot, "project", "", "project root (defaults to the working directory)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (defaults to <project>/automatosx.config.json)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newStagesCmd())
	return root
}

func loadApp() (*app, error) {
	layout, err := config.NewLayout(projectRoot)
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		configPath = layout.ConfigFilePath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	format := "json"
	if cfg.Logging.Console {
		format = "console"
	}
	if err := logger.Init(logger.LogConfig{
		Level:  cfg.Logging.Level,
		Format: format,
		File:   cfg.Logging.Path,
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("ensure project layout: %w", err)
	}

	return newApp(layout.Root, cfg)
}

// newRunCmd executes a single agent against a task, end to end, through a
// per-client rate limiter guarding the core's execute entrypoint.
func newRunCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "run <agent> <task>",
		Short: "Run an agent against a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.limiter.Allow("cli") {
				return fmt.Errorf("rate limit exceeded, try again shortly")
			}

			agentName, task := args[0], args[1]
			ctx := context.Background()

			ec, err := a.contexts.CreateContext(ctx, agentName, task, contextmgr.Options{SessionID: sessionID})
			if err != nil {
				a.limiter.RecordFailure("cli")
				return err
			}

			resp, err := a.exec.Execute(ctx, ec, executorOptionsFromConfig(a.cfg))
			if err != nil {
				a.limiter.RecordFailure("cli")
				return err
			}
			a.limiter.RecordSuccess("cli")

			fmt.Println(resp.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "join an existing delegation session")
	return cmd
}

// newStagesCmd runs (or resumes) an agent's staged workflow via the Stage
// Execution Controller.
func newStagesCmd() *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "stages <agent> <runId> <task>",
		Short: "Run or resume a staged agent workflow",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			agentName, runID, task := args[0], args[1], args[2]
			ctx := context.Background()

			ap, err := a.profiles.Load(agentName)
			if err != nil {
				return err
			}

			if resume {
				result, err := a.stages.Resume(ctx, runID, ap, task)
				if err != nil {
					return err
				}
				return printCheckpoint(result)
			}
			result, err := a.stages.Run(ctx, runID, ap, task)
			if err != nil {
				return err
			}
			return printCheckpoint(result)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the last checkpointed stage")
	return cmd
}

func printCheckpoint(cp *stage.CheckpointData) error {
	for _, s := range cp.Stages {
		fmt.Printf("[%s] %s\n", s.Status, s.Name)
		if s.Output != "" {
			fmt.Println(s.Output)
		}
	}
	return nil
}

// executorOptionsFromConfig builds the Executor.Execute options a single
// `run` invocation uses, applying the project's configured default retry
// policy and timeout.
func executorOptionsFromConfig(cfg *config.Config) executor.Options {
	maxAttempts, initialDelay, maxDelay, backoff := cfg.Execution.DefaultRetry.RetryPolicy()
	timeout := time.Duration(cfg.Execution.DefaultTimeoutMs) * time.Millisecond
	return executor.Options{
		Timeout: timeout,
		Retry: &executor.RetryConfig{
			MaxAttempts:     maxAttempts,
			InitialDelay:    initialDelay,
			MaxDelay:        maxDelay,
			BackoffFactor:   backoff,
			RetryableErrors: cfg.Execution.DefaultRetry.RetryableErrors,
		},
	}
}
