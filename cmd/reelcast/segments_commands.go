package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelcast/internal/apiclient"
	"reelcast/internal/store"
)

func newSegmentsCommand(ctx *commandContext) *cobra.Command {
	segmentsCmd := &cobra.Command{
		Use:   "segments ID",
		Short: "List a project's segments and their caption state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				segments, err := client.Segments(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if segments == nil {
						segments = []*store.Segment{}
					}
					return writeJSON(cmd, segments)
				}
				out := cmd.OutOrStdout()
				if len(segments) == 0 {
					fmt.Fprintln(out, "No segments; run `reelcast start split` first")
					return nil
				}
				fmt.Fprintln(out, renderSegments(segments, shouldColorize(out)))
				return nil
			})
		},
	}

	segmentsCmd.AddCommand(&cobra.Command{
		Use:   "clear ID",
		Short: "Delete a project's segments and caption artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.ClearSegments(cmd.Context(), args[0]); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]bool{"deleted": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared segments of %s\n", args[0])
				return nil
			})
		},
	})

	return segmentsCmd
}

func renderSegments(segments []*store.Segment, colorize bool) string {
	rows := make([][]string, 0, len(segments))
	for _, seg := range segments {
		detail := seg.OutputFile
		if seg.Status == store.SegmentFailed {
			detail = colorText(seg.ErrorMessage, statusError, colorize)
		}
		rows = append(rows, []string{
			strconv.Itoa(seg.ID),
			formatSeconds(seg.Start),
			formatSeconds(seg.Duration),
			colorText(string(seg.Status), segmentStatusKind(seg.Status), colorize),
			fmt.Sprintf("%d%%", seg.Progress),
			valueOrDash(detail),
		})
	}
	return renderTable(
		[]string{"#", "Start", "Length", "Status", "Progress", "Output / Error"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight, alignLeft},
	)
}
