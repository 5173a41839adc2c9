package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelcast/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check that the external binaries are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			missing := deps.Missing(statuses)
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(statuses))
				for _, s := range statuses {
					state := colorText("ok", statusOK, colorize)
					location := s.Path
					if !s.Available {
						state = colorText("missing", statusError, colorize)
						location = s.Detail
					}
					rows = append(rows, []string{s.Name, s.Command, state, location})
				}
				fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "State", "Location"}, rows, nil))
			}
			if len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			return nil
		},
	}
}
