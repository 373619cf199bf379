package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"phototag/internal/config"
	"phototag/internal/export"
	"phototag/internal/ingest"
	"phototag/internal/queue"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var date string
	var tags []string

	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write a catalog snapshot as parquet or YAML",
		Long: `Write a catalog snapshot as parquet or YAML.

The format is taken from --format, or inferred from the file extension
(.parquet, .yaml, .yml).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			var format export.Format
			if strings.TrimSpace(formatFlag) != "" {
				format, err = export.ParseFormat(formatFlag)
			} else {
				format, err = export.FormatForPath(path)
			}
			if err != nil {
				return err
			}

			filter := queue.Filter{Tags: tags}
			if date != "" {
				if filter.CaptureDate, err = ingest.ParseCaptureDate(date); err != nil {
					return err
				}
			}

			return ctx.withStore(func(store *queue.Store) error {
				photos, err := store.FindPhotos(cmd.Context(), filter)
				if err != nil {
					return err
				}
				count, err := export.WriteFile(path, format, photos)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d photo(s) to %s (%s)\n", count, path, format)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format: parquet or yaml")
	cmd.Flags().StringVar(&date, "date", "", "Only export photos captured on this date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Only export photos carrying any of these tags")
	return cmd
}
