package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"phototag/internal/api"
	"phototag/internal/daemon"
	"phototag/internal/daemonrun"
	"phototag/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the tagging queue",
	}
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueReconcileCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	return queueCmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show photo counts per state and queue occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := api.NewPhotoService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				rows := make([][]string, 0, len(queue.AllStates())+4)
				for _, state := range queue.AllStates() {
					rows = append(rows, []string{string(state), strconv.Itoa(stats.Counts[string(state)])})
				}
				rows = append(rows,
					[]string{"queued", strconv.Itoa(stats.QueueDepth)},
					[]string{"leased", strconv.Itoa(stats.Leased)},
					[]string{"expired leases", strconv.Itoa(stats.ExpiredLeases)},
					[]string{"backing off", strconv.Itoa(stats.BackingOff)},
				)
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				if stats.OldestEntry != "" {
					fmt.Fprintf(out, "Oldest entry queued at %s\n", stats.OldestEntry)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				entries, err := api.NewPhotoService(store).Entries(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					owner := e.LeaseOwner
					if owner == "" {
						owner = "-"
					}
					rows = append(rows, []string{
						strconv.FormatInt(e.PhotoID, 10),
						e.Filename,
						paintState(out, e.State),
						strconv.Itoa(e.Attempts),
						strconv.Itoa(e.ClaimCount),
						owner,
						e.EnqueuedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Photo", "File", "State", "Attempts", "Claims", "Lease owner", "Enqueued"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries (0 for no limit)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [photo-id...]",
		Short: "Re-enqueue failed photos, or the listed tagged or failed photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid photo id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(store *queue.Store) error {
				var (
					count int64
					err   error
				)
				if len(ids) == 0 {
					count, err = store.RetryFailed(cmd.Context())
				} else {
					count, err = store.Requeue(cmd.Context(), ids...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-enqueued %d photo(s)\n", count)
				return nil
			})
		},
	}
}

func newQueueReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Re-enqueue orphaned photos and clear lapsed leases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
				d, err := daemon.New(rt.Config, rt.Store, rt.Pipeline, rt.Manager, rt.Notifier, rt.Logger)
				if err != nil {
					return err
				}
				result, err := d.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-enqueued %d orphaned photo(s), cleared %d expired lease(s)\n",
					result.Requeued, result.LeasesReset)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				checkCtx, cancel := contextWithTimeout(cmd, 10*time.Second)
				defer cancel()
				health, err := store.Health(checkCtx)
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Driver", health.Driver},
					{"Location", health.Location},
					{"Schema version", strconv.Itoa(health.SchemaVersion)},
					{"Photos", strconv.Itoa(health.Photos)},
					{"Queue depth", strconv.Itoa(health.QueueDepth)},
					{"Expired leases", strconv.Itoa(health.ExpiredLeases)},
					{"Orphaned photos", strconv.Itoa(health.Orphans)},
					{"Stray entries", strconv.Itoa(health.StrayEntries)},
					{"Healthy", yesNo(health.Healthy())},
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Check", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
				if !health.Healthy() {
					return errors.New("queue is inconsistent; run `phototag queue reconcile`")
				}
				return nil
			})
		},
	}
}
