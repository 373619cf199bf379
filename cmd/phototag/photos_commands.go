package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"phototag/internal/api"
	"phototag/internal/ingest"
	"phototag/internal/queue"
)

func newPhotosCommand(ctx *commandContext) *cobra.Command {
	photosCmd := &cobra.Command{
		Use:   "photos",
		Short: "Query the photo catalog",
	}
	photosCmd.AddCommand(newPhotosListCommand(ctx))
	photosCmd.AddCommand(newPhotosShowCommand(ctx))
	return photosCmd
}

func newPhotosListCommand(ctx *commandContext) *cobra.Command {
	var date string
	var tags []string
	var states []string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List photos by capture date, tag or state",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.Filter{Tags: tags, Limit: limit}
			if date != "" {
				parsed, err := ingest.ParseCaptureDate(date)
				if err != nil {
					return err
				}
				filter.CaptureDate = parsed
			}
			for _, value := range states {
				state, err := queue.ParseState(value)
				if err != nil {
					return err
				}
				filter.States = append(filter.States, state)
			}

			return ctx.withStore(func(store *queue.Store) error {
				photos, err := api.NewPhotoService(store).Find(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, photos)
				}
				out := cmd.OutOrStdout()
				if len(photos) == 0 {
					fmt.Fprintln(out, "No photos found")
					return nil
				}
				rows := make([][]string, 0, len(photos))
				for _, p := range photos {
					rows = append(rows, []string{
						strconv.FormatInt(p.ID, 10),
						p.CaptureDate,
						p.Filename,
						paintState(out, p.State),
						strings.Join(p.Tags, ", "),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Date", "File", "State", "Tags"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Capture date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag to match; repeat to match any of several")
	cmd.Flags().StringSliceVar(&states, "state", nil, "Lifecycle state (pending, processing, tagged, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of photos (0 for no limit)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newPhotosShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid photo id %q", args[0])
			}
			return ctx.withStore(func(store *queue.Store) error {
				photo, err := api.NewPhotoService(store).Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, photo)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Photo %d\n", photo.ID)
				fmt.Fprintf(out, "  File:      %s\n", photo.Filename)
				fmt.Fprintf(out, "  Path:      %s\n", photo.StoragePath)
				fmt.Fprintf(out, "  Date:      %s\n", photo.CaptureDate)
				fmt.Fprintf(out, "  State:     %s\n", paintState(out, photo.State))
				fmt.Fprintf(out, "  Attempts:  %d\n", photo.Attempts)
				if len(photo.Tags) > 0 {
					fmt.Fprintf(out, "  Tags:      %s\n", strings.Join(photo.Tags, ", "))
				}
				if photo.TaggedAt != "" {
					fmt.Fprintf(out, "  Tagged at: %s\n", photo.TaggedAt)
				}
				if photo.LastError != "" {
					fmt.Fprintf(out, "  Error:     %s\n", photo.LastError)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
