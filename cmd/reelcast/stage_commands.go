package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelcast/internal/apiclient"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a project stage",
	}
	for _, stage := range []struct{ name, short string }{
		{"download", "Download the video and audio sources"},
		{"merge", "Merge the downloaded video and audio"},
		{"split", "Split the merged media into fixed-length segments"},
	} {
		startCmd.AddCommand(newStageCommand(ctx, stage.name, stage.short))
	}
	return startCmd
}

func newStageCommand(ctx *commandContext, stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   stage + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				processID, err := client.StartStage(cmd.Context(), args[0], stage)
				if err != nil {
					return err
				}
				return printAccepted(cmd, ctx, stage, processID)
			})
		},
	}
}

func newCaptionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "caption ID [SEGMENT...]",
		Short: "Caption segments",
		Long: "Caption one segment, a list of segments, or every segment not yet completed.\n" +
			"A single segment runs on its own without changing the project status; several\n" +
			"segments, or none, run as a batch through the caption worker pool.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseSegmentIDs(args[1:])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				if len(ids) == 1 {
					processID, err := client.Caption(cmd.Context(), args[0], ids[0])
					if err != nil {
						return err
					}
					return printAccepted(cmd, ctx, fmt.Sprintf("caption of segment %d", ids[0]), processID)
				}
				batch, err := client.CaptionBatch(cmd.Context(), args[0], ids)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, batch)
				}
				parts := make([]string, len(batch.Segments))
				for i, id := range batch.Segments {
					parts[i] = strconv.Itoa(id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Caption batch started (process %s) for segments %s\n",
					batch.ProcessID, strings.Join(parts, ", "))
				return nil
			})
		},
	}
}

func parseSegmentIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, raw := range args {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid segment %q: expected a positive integer", raw)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a project's running stage and caption runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				n, err := client.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"canceled": n})
				}
				if n == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing running")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Canceled %d task(s)\n", n)
				return nil
			})
		},
	}
}

func printAccepted(cmd *cobra.Command, ctx *commandContext, what, processID string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]string{"processId": processID})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started %s (process %s)\n", what, processID)
	return nil
}
