package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"phototag/internal/daemonrun"
	"phototag/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, tagging workers and reconciliation sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{})
		},
	}
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var once bool
	var drain bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run tagging workers without the HTTP API",
		Long: `Run tagging workers without the HTTP API.

By default the configured pool runs until interrupted. --once processes at
most one queued photo and --drain processes photos until the queue is empty;
both run a single worker in the foreground.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if once && drain {
				return errors.New("--once and --drain are mutually exclusive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !once && !drain {
				return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{WorkersOnly: true})
			}

			return ctx.withRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
				workerID := workflow.NewWorkerID()
				out := cmd.OutOrStdout()
				if once {
					claimed, err := rt.Manager.RunOnce(cmd.Context(), workerID)
					if !claimed {
						fmt.Fprintln(out, "Queue is empty")
						return err
					}
					if err != nil {
						return fmt.Errorf("process photo: %w", err)
					}
					fmt.Fprintln(out, "Processed 1 photo")
					return nil
				}
				handled, err := rt.Manager.Drain(cmd.Context(), workerID)
				fmt.Fprintf(out, "Processed %d photo(s)\n", handled)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process at most one queued photo and exit")
	cmd.Flags().BoolVar(&drain, "drain", false, "Process queued photos until none remain, then exit")
	return cmd
}
