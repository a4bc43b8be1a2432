// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/agent"
	"github.com/xkilldash9x/periscope-cli/internal/browser"
	"github.com/xkilldash9x/periscope-cli/internal/config"
	"github.com/xkilldash9x/periscope-cli/internal/llmclient"
	"github.com/xkilldash9x/periscope-cli/internal/observability"
	"github.com/xkilldash9x/periscope-cli/internal/reporting"
)

const browserShutdownTimeout = 15 * time.Second

// runFlagBindings maps run command flags onto their config keys so flag
// values override the config file and environment with the right precedence.
var runFlagBindings = map[string]string{
	"url":              "agent.start_url",
	"max-steps":        "agent.max_steps",
	"context-window":   "agent.context_window",
	"model":            "model.model",
	"save-screenshots": "report.save_screenshots",
	"highlight-cursor": "browser.highlight_cursor",
	"headless":         "browser.headless",
	"output":           "report.output",
}

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run \"<task>\"",
		Short: "Run a browser task described in natural language",
		Example: `  periscope run "Find the cheapest direct flight from Oslo to Berlin next Friday"
  periscope run --url https://news.ycombinator.com "Open the top story and summarize it"`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for flag, key := range runFlagBindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.TrimSpace(args[0])
			if task == "" {
				return fmt.Errorf("%w: the task must not be empty", schemas.ErrConfiguration)
			}
			return runTask(cmd, task)
		},
	}

	runCmd.Flags().StringP("url", "u", "", "starting URL loaded before the first model call")
	runCmd.Flags().Int("max-steps", 0, "hard limit on executed actions")
	runCmd.Flags().Int("context-window", 0, "number of recent turns kept in the model's context")
	runCmd.Flags().StringP("model", "m", "", "model identifier sent to the inference endpoint")
	runCmd.Flags().Bool("save-screenshots", false, "persist each step's screenshot under the screenshot directory")
	runCmd.Flags().Bool("highlight-cursor", false, "draw a marker at the pointer position in screenshots")
	runCmd.Flags().Bool("headless", false, "run the browser without a visible window")
	runCmd.Flags().StringP("output", "o", "", "write the JSON run report to this file instead of stdout")

	return runCmd
}

// runTask assembles the session components and drives one agent run to
// completion. The browser is torn down on every exit path.
func runTask(cmd *cobra.Command, task string) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return err
	}

	manager := browser.NewManager(cfg, logger)
	defer func() {
		// Shutdown gets its own deadline; the run context may already be
		// canceled by the time cleanup runs.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), browserShutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}()

	session, err := manager.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}

	client, err := llmclient.NewClient(ctx, cfg.Model, logger)
	if err != nil {
		return err
	}

	executor := browser.NewExecutor(session, cfg.Browser, logger)

	var sink schemas.ObservationSink
	if cfg.Report.SaveScreenshots {
		screenshotSink, err := reporting.NewScreenshotSink(cfg.Report.ScreenshotDir, session.ID(), logger)
		if err != nil {
			return err
		}
		logger.Info("Saving screenshots.", zap.String("dir", screenshotSink.Dir()))
		sink = screenshotSink
	}

	ag, err := agent.New(session.ID(), task, cfg.Agent, client, executor, sink, logger)
	if err != nil {
		return err
	}

	result, runErr := ag.Run(ctx)

	// The report is written on every exit path, including fatal ones; a
	// partial run is still worth inspecting.
	if err := writeReport(cfg.Report.Output, result, logger); err != nil {
		logger.Warn("Could not write the run report.", zap.Error(err))
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("session aborted by user signal")
		}
		return runErr
	}

	if result.Answer != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nAnswer: %s\n", result.Answer)
	}
	if result.Status != schemas.StatusSucceeded {
		return fmt.Errorf("task not completed: session ended with status %s", result.Status)
	}
	return nil
}

func writeReport(outputPath string, result schemas.RunResult, logger *zap.Logger) error {
	reporter, err := reporting.New(outputPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Warn("Failed to close report writer.", zap.Error(err))
		}
	}()
	return reporter.Write(result)
}
