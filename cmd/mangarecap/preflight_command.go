package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mangarecap/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check external tools, directories and provider endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)

			out := cmd.OutOrStdout()
			color := shouldColorize(out)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, checkLabel(r, color), r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Result", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required preflight checks failed", len(failed))
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}
}

func checkLabel(r preflight.Result, color bool) string {
	switch {
	case r.Passed:
		return colorize("ok", color, text.Colors{text.FgGreen})
	case r.Optional:
		return colorize("warn", color, text.Colors{text.FgYellow})
	default:
		return colorize("fail", color, text.Colors{text.FgRed, text.Bold})
	}
}
