package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"phototag/internal/config"
	"phototag/internal/daemonrun"
	"phototag/internal/ingest"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var captureDate string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Store local images in the library and queue them for tagging",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if captureDate != "" {
				if _, err := ingest.ParseCaptureDate(captureDate); err != nil {
					return err
				}
			}
			return ctx.withRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
				rows := make([][]string, 0, len(args))
				var failures int
				for _, arg := range args {
					path, err := config.ExpandPath(arg)
					if err != nil {
						return err
					}
					photo, err := rt.Pipeline.IngestFile(cmd.Context(), path, captureDate)
					if err != nil {
						failures++
						rows = append(rows, []string{"-", arg, "-", err.Error()})
						continue
					}
					rows = append(rows, []string{strconv.FormatInt(photo.ID, 10), photo.Filename, photo.CaptureDate, "queued"})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "File", "Date", "Result"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				if failures > 0 {
					return fmt.Errorf("%d of %d file(s) failed", failures, len(args))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&captureDate, "date", "", "Capture date (YYYY-MM-DD) overriding EXIF metadata")
	return cmd
}
