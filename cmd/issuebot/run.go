package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cexll/issuebot/internal/orchestrator"
)

func newRunCmd(a *app) *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every open issue once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			p, err := buildPipeline(ctx, a.cfg)
			if err != nil {
				return err
			}
			report, err := p.dispatcher.RunSync(ctx, "cli")
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), report)
			if reportPath != "" {
				return writeReportFile(reportPath, cmd.OutOrStdout(), report)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "write the run report as YAML to this path (- for stdout)")
	return cmd
}

func printSummary(w io.Writer, report *orchestrator.Report) {
	s := report.Summary()
	fmt.Fprintf(w, "run %s: %d issues, %d published, %d pushed, %d no-op, %d failed\n",
		report.ID, s.Total, s.Published, s.Pushed, s.NoOp, s.Failed)
	if report.FetchError != "" {
		fmt.Fprintf(w, "  backlog unavailable: %s\n", report.FetchError)
	}
	for _, o := range report.Outcomes {
		line := fmt.Sprintf("  #%d %s", o.Issue, o.Status)
		switch {
		case o.URL != "":
			line += " " + o.URL
		case o.Error != "":
			line += fmt.Sprintf(" (%s: %s)", o.Kind, o.Error)
		}
		fmt.Fprintln(w, line)
	}
}

// writeReport encodes report as YAML.
func writeReport(w io.Writer, report *orchestrator.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

func writeReportFile(path string, stdout io.Writer, report *orchestrator.Report) error {
	if path == "-" {
		return writeReport(stdout, report)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := writeReport(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return notifyContext(parent)
}
