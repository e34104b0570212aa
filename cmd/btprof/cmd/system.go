package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/pkg/sysinfo"
)

var systemOutput string

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Show the host inventory attached to telemetry",
	Args:  cobra.NoArgs,
	RunE:  runSystem,
}

func init() {
	rootCmd.AddCommand(systemCmd)
	systemCmd.Flags().StringVarP(&systemOutput, "output", "o", "text", "Output format: text, json, yaml")
}

func runSystem(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := sysinfo.Collect(ctx)
	if err != nil {
		logger.Warn("Partial host inventory", map[string]interface{}{"error": err.Error()})
	}

	out := cmd.OutOrStdout()
	switch systemOutput {
	case "text":
		return printSystem(out, info)
	case "json", "yaml":
		format, _ := report.ParseFormat(systemOutput)
		return report.Encode(out, format, info)
	default:
		return fmt.Errorf("unknown output %q (use text, json or yaml)", systemOutput)
	}
}

func printSystem(out io.Writer, info *sysinfo.Info) error {
	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	rows := [][]string{
		{"OS", fmt.Sprintf("%s %s (%s)", info.OS.Name, info.OS.Version, info.OS.Arch)},
		{"Kernel", info.OS.Build},
		{"CPU", info.Processor.Name},
		{"CPU ID", info.Processor.ID},
		{"CPU Threads", fmt.Sprintf("%d logical / %d physical", info.Processor.Logical, info.Processor.Physical)},
		{"CPU Frequency", fmt.Sprintf("%.2f GHz", float64(info.Processor.Frequency)/1e9)},
		{"Memory", fmt.Sprintf("%s total, %s available", gib(info.Memory.Total), gib(info.Memory.Available))},
		{"Runtime", info.Runtime.Version},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func gib(b uint64) string {
	return fmt.Sprintf("%.1f GiB", float64(b)/(1<<30))
}
