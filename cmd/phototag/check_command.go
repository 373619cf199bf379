package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"phototag/internal/daemonrun"
	"phototag/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, the queue store, the detector and notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
				results := rt.Preflight(cmd.Context())
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := "ok"
					if !r.Passed {
						status = "FAIL"
					}
					rows = append(rows, []string{r.Name, status, r.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Check", "Status", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				if failed := preflight.Failed(results); len(failed) > 0 {
					return fmt.Errorf("%d check(s) failed", len(failed))
				}
				return nil
			})
		},
	}
}
