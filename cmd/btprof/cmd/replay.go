package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/buildtime-profiler/internal/eventlog"
	"github.com/psantana5/buildtime-profiler/internal/profiler"
	"github.com/psantana5/buildtime-profiler/internal/publish"
	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/pkg/logging"
	"github.com/psantana5/buildtime-profiler/pkg/metrics"
)

var (
	replayFormat     string
	replayProjectDir string
	replayLogReport  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <events-file>",
	Short: "Profile a recorded build event log",
	Long: `Feeds a recorded event log (JSON lines, or a YAML list when the file ends in
.yaml/.yml; "-" reads JSON lines from stdin) through the profiler, then emits
the report and publishes telemetry, metrics and traces as configured.

Formats:
  text   the plain text report (default when output is stdout)
  table  a module by phase matrix
  json   report.json in the output directory
  yaml   report.yaml in the output directory`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", "", "text, table, json or yaml (default from config output)")
	replayCmd.Flags().StringP("directory", "d", "", "directory for json/yaml documents (default from config)")
	replayCmd.Flags().StringVar(&replayProjectDir, "project-dir", ".", "project directory inspected for source control metadata")
	replayCmd.Flags().BoolVar(&replayLogReport, "log-report", false, "emit the text report through the logger at INFO")

	_ = v.BindPFlag("directory", replayCmd.Flags().Lookup("directory"))
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	events, err := eventlog.ReadFile(args[0])
	var malformed *eventlog.MalformedError
	switch {
	case errors.As(err, &malformed) && len(events) > 0:
		logger.Warn("Skipping malformed events", map[string]interface{}{
			"file":    args[0],
			"skipped": len(malformed.Lines),
			"error":   malformed.Error(),
		})
	case err != nil:
		return err
	}
	logger.Info("Replaying event log", map[string]interface{}{"file": args[0], "events": len(events)})

	rec := metrics.NewPrometheusRecorder(nil)
	prof := profiler.New(profiler.Options{Logger: logger, Recorder: rec})
	if malformed != nil {
		for _, line := range malformed.Lines {
			prof.OnMalformed(fmt.Sprintf("line %d", line.Line), line.Err)
		}
	}
	for _, e := range events {
		prof.OnEvent(e)
	}
	prof.Finish()

	if err := emit(cmd.OutOrStdout(), prof); err != nil {
		return err
	}

	pub := publish.New(ctx, cfg, logger, publish.WithProjectDir(replayProjectDir), publish.WithVersion(Version))
	_ = pub.Publish(ctx, prof, rec.Registry())

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pub.Close(closeCtx); err != nil {
		logger.Warn("Publisher close failed", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func emit(out io.Writer, prof *profiler.Profiler) error {
	format := replayFormat
	if format == "" {
		format = cfg.Output
	}

	switch format {
	case "text", "stdout":
		w := out
		if replayLogReport {
			w = logger.Writer(logging.INFO)
		}
		if err := prof.WriteReport(w); err != nil {
			logger.Warn("Report incomplete", map[string]interface{}{"error": err.Error()})
		}
		return nil

	case "table":
		return renderTable(out, prof)

	case "json", "yaml":
		docFormat, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		doc, err := prof.Document()
		if err != nil {
			logger.Warn("Document incomplete", map[string]interface{}{"error": err.Error()})
		}
		path, err := report.WriteFile(cfg.Directory, docFormat, doc)
		if err != nil {
			return err
		}
		logger.Info("Report written", map[string]interface{}{"path": path})
		return nil

	default:
		return fmt.Errorf("unknown format %q (use text, table, json or yaml)", format)
	}
}

// renderTable prints modules in reactor order against the ordered phases
func renderTable(out io.Writer, prof *profiler.Profiler) error {
	phases := prof.Phases()
	timer := prof.PhaseTimer()

	header := append([]string{"Module"}, phases...)
	header = append(header, "Total")

	table := tablewriter.NewWriter(out)
	table.Header(header)

	for _, mod := range prof.Reactor() {
		row := []string{mod.DisplayName()}
		var total time.Duration
		for _, phase := range phases {
			if !timer.HasTimeForModuleAndPhase(mod.Key(), phase) {
				row = append(row, "-")
				continue
			}
			d := timer.TimeForModuleAndPhase(mod.Key(), phase)
			total += d
			row = append(row, millis(d))
		}
		row = append(row, millis(total))
		if err := table.Append(row); err != nil {
			return err
		}
	}

	footer := []string{"Total"}
	var grand time.Duration
	for _, phase := range phases {
		d := timer.TimeForPhase(phase)
		grand += d
		footer = append(footer, millis(d))
	}
	footer = append(footer, millis(grand))
	table.Footer(footer)

	return table.Render()
}

func millis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + " ms"
}
