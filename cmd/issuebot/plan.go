package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would write, without touching git or GitHub",
		Long: `Generate the change for every open issue and print a diff of each file.

Diffs are taken against the files in the currently checked-out tree, not
against the issue's work branch. When a work branch already holds earlier
changes, check it out first to preview what the next run would append.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			p, err := buildPipeline(ctx, a.cfg)
			if err != nil {
				return err
			}
			entries, err := p.orch.Plan(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No open issues found")
				return nil
			}
			for _, e := range entries {
				fmt.Fprint(out, e.String())
			}
			return nil
		},
	}
}
