package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"

	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var (
		req    pipeline.ReportRequest
		output string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the funnel report for a trailing window",
		Long: `Fetch every configured source, build the conversion funnel and
evaluate the operational alerts. Sources that fail or are not configured
are listed in the report instead of aborting it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, exports, err := a.Report(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch output {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			case "table":
				printReport(out, report, exports)
				return nil
			default:
				return fmt.Errorf("unknown output %q (json, table)", output)
			}
		},
	}

	cmd.Flags().IntVarP(&req.WindowDays, "window", "w", 0, "trailing window in days (0 uses the configured default)")
	cmd.Flags().StringVar(&req.Filter.City, "city", "", "only records in this city")
	cmd.Flags().StringVar(&req.Filter.State, "state", "", "only records in this state")
	cmd.Flags().BoolVar(&req.SkipCache, "refresh", false, "bypass the response cache")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (json, table)")
	return cmd
}

func printReport(out io.Writer, report model.Report, exports []model.ExportResult) {
	fmt.Fprintf(out, "Funnel report %s (last %d days)\n", report.RunID, report.WindowDays)
	if report.Filter.City != "" || report.Filter.State != "" {
		fmt.Fprintf(out, "Filter: city=%q state=%q\n", report.Filter.City, report.Filter.State)
	}
	fmt.Fprintln(out, strings.Repeat("=", 60))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tCOUNT\tAVG DWELL (h)\tCONVERSION\tDROP-OFF")
	for _, s := range report.Stages {
		if !s.Available {
			fmt.Fprintf(tw, "%s\tunavailable (%s)\t\t\t\n", s.Label, s.MissingReason)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%s\t%s\n", s.Label, s.Count, s.AverageDwellHours, pct(s.ConversionFromPrevious), intOrDash(s.DropOffCount))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "\nOverall conversion: %s\n", pct(report.OverallConversionRate))

	if len(report.NegativeBreakdown) > 0 {
		fmt.Fprintln(out, "\nNegative outcomes:")
		for _, n := range report.NegativeBreakdown {
			fmt.Fprintf(out, "  %-12s %5d  %s\n", n.Category, n.Count, pct(n.PercentageOfTotal))
		}
	}

	if len(report.Bottlenecks) > 0 {
		fmt.Fprintln(out, "\nBottlenecks:")
		for _, b := range report.Bottlenecks {
			fmt.Fprintf(out, "  %s: %d records, %.1fh average dwell\n", b.Label, b.Count, b.AverageDwellHours)
		}
	}

	fmt.Fprintln(out, "\nAlerts:")
	if len(report.Alerts) == 0 {
		fmt.Fprintln(out, "  none")
	}
	for _, al := range report.Alerts {
		fmt.Fprintf(out, "  [%s] %s - %s (%s)\n", strings.ToUpper(string(al.Severity)), al.Title, al.Description, al.RoutingHint)
	}

	fmt.Fprintln(out, "\nSources:")
	for _, s := range report.Sources {
		status := "ok"
		if !s.Available {
			status = s.MissingReason
		}
		fmt.Fprintf(out, "  %-10s %-16s records=%d attempts=%d\n", s.Source, status, s.Records, s.Attempts)
	}

	for _, e := range exports {
		if e.Success {
			fmt.Fprintf(out, "\nExported %s: %s", e.Type, e.Path)
		} else {
			fmt.Fprintf(out, "\nExport %s failed: %s", e.Type, e.Error)
		}
	}
	if len(exports) > 0 {
		fmt.Fprintln(out)
	}
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
