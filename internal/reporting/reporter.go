// File: internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/flightcheck/internal/scenario"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RunReport is the machine-readable record of one batch run.
type RunReport struct {
	RunID     string            `json:"run_id"`
	Version   string            `json:"version"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Summary   scenario.Summary  `json:"summary"`
	Results   []scenario.Result `json:"results"`
}

// NewRunReport assembles a report from batch results.
func NewRunReport(version string, startedAt time.Time, results []scenario.Result) RunReport {
	duration := time.Since(startedAt)
	return RunReport{
		RunID:     uuid.NewString(),
		Version:   version,
		StartedAt: startedAt,
		Duration:  duration,
		Summary:   scenario.Summarize(results, duration),
		Results:   results,
	}
}

// WriteJSON writes the report as JSON, indented when pretty is set. A path
// of "-" writes to stdout.
func WriteJSON(report RunReport, path string, pretty bool) error {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}

// WriteSummary prints the human-readable outcome table. This is the only
// thing the CLI puts on stdout, so scripts can parse it or ignore it.
func WriteSummary(w io.Writer, report RunReport) {
	fmt.Fprintf(w, "\nRun %s (%s)\n", report.RunID, report.Duration.Round(time.Millisecond))
	for _, r := range report.Results {
		mark := "PASS"
		if !r.Passed() {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "  [%s] %-40s %s\n", mark, r.Scenario, r.Duration.Round(time.Millisecond))
		if !r.Passed() && r.Reason != "" {
			fmt.Fprintf(w, "         %s\n", r.Reason)
		}
		for _, a := range r.Artifacts {
			fmt.Fprintf(w, "         artifact: %s\n", a)
		}
	}
	fmt.Fprintf(w, "\n%d scenarios, %d passed, %d failed\n",
		report.Summary.Total, report.Summary.Passed, report.Summary.Failed)
}
