// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flightcheck/internal/browser"
	"github.com/xkilldash9x/flightcheck/internal/config"
	"github.com/xkilldash9x/flightcheck/internal/observability"
	"github.com/xkilldash9x/flightcheck/internal/reporting"
	"github.com/xkilldash9x/flightcheck/internal/scenario"
)

// Exit codes for the run command. Scenario failures and broken
// environments are distinct so CI can tell them apart.
const (
	ExitOK          = 0
	ExitScenarioErr = 1
	ExitEnvErr      = 2
)

// ExitError carries the process exit code for main to apply.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [scenario files or directories...]",
		Short: "Runs browser scenarios and reports pass/fail per scenario",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override config file and env values.
			bindings := map[string]string{
				"runner.base_url":        "base-url",
				"runner.concurrency":     "concurrency",
				"runner.artifacts_dir":   "artifacts-dir",
				"runner.default_timeout": "timeout",
				"browser.headless":       "headless",
				"report.output":          "output",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return &ExitError{Code: ExitEnvErr, Err: fmt.Errorf("failed to unmarshal config: %w", err)}
			}
			if err := cfg.Validate(); err != nil {
				return &ExitError{Code: ExitEnvErr, Err: err}
			}

			scenarios, err := scenario.LoadAll(args)
			if err != nil {
				return &ExitError{Code: ExitEnvErr, Err: err}
			}
			logger.Info("Scenarios loaded", zap.Int("count", len(scenarios)))

			return runScenarios(ctx, &cfg, scenarios, logger)
		},
	}

	runCmd.Flags().String("base-url", "", "base URL resolved against relative navigation targets")
	runCmd.Flags().Int("concurrency", 1, "number of scenarios to run in parallel")
	runCmd.Flags().String("artifacts-dir", "artifacts", "directory for failure screenshots and DOM dumps")
	runCmd.Flags().Duration("timeout", 5*time.Second, "default per-action timeout")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	runCmd.Flags().StringP("output", "o", "", "write the JSON run report to this path ('-' for stdout)")

	return runCmd
}

func runScenarios(ctx context.Context, cfg *config.Config, scenarios []scenario.Scenario, logger *zap.Logger) error {
	startedAt := time.Now()

	manager, err := browser.NewManager(ctx, cfg, logger)
	if err != nil {
		return &ExitError{Code: ExitEnvErr, Err: fmt.Errorf("browser environment unavailable: %w", err)}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser manager shutdown was not clean", zap.Error(err))
		}
	}()

	factory := func(ctx context.Context) (scenario.Driver, error) {
		session, err := manager.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		return browser.NewDriver(session, cfg.Runner, logger), nil
	}

	runner := scenario.NewRunner(cfg.Runner, logger, factory)
	batch := scenario.NewBatch(runner, logger, cfg.Runner.Concurrency, cfg.Runner.SessionLaunchRate)
	results := batch.Run(ctx, scenarios)

	report := reporting.NewRunReport(Version, startedAt, results)
	reporting.WriteSummary(os.Stdout, report)
	if cfg.Report.Output != "" {
		if err := reporting.WriteJSON(report, cfg.Report.Output, cfg.Report.Pretty); err != nil {
			return &ExitError{Code: ExitEnvErr, Err: err}
		}
		logger.Info("Run report written", zap.String("path", cfg.Report.Output))
	}

	if ctx.Err() != nil {
		return &ExitError{Code: ExitEnvErr, Err: errors.New("run aborted by signal")}
	}
	if broken := firstEnvironmentFailure(results); broken != nil {
		return &ExitError{
			Code: ExitEnvErr,
			Err:  fmt.Errorf("scenario %q failed on the environment: %s", broken.Scenario, broken.Reason),
		}
	}
	if report.Summary.Failed > 0 {
		return &ExitError{
			Code: ExitScenarioErr,
			Err:  fmt.Errorf("%d of %d scenarios failed", report.Summary.Failed, report.Summary.Total),
		}
	}
	return nil
}

// firstEnvironmentFailure returns the first result that failed on the
// harness side, such as a session that never opened, or nil when every
// failure belongs to the application under test.
func firstEnvironmentFailure(results []scenario.Result) *scenario.Result {
	for i := range results {
		if results[i].Environment {
			return &results[i]
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
