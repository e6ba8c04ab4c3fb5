package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mangarecap/internal/preflight"
	"mangarecap/internal/providers"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List provider chains in fallback order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			registry, err := providers.Build(cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color := shouldColorize(out)
			statuses := preflight.ProviderHealth(registry)
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				ready := colorize("yes", color, text.Colors{text.FgGreen})
				if !s.Available {
					ready = colorize("no", color, text.Colors{text.FgRed})
				}
				rows = append(rows, []string{
					string(s.Kind),
					strconv.Itoa(s.Position),
					s.Descriptor.ProviderID,
					strconv.Itoa(s.Descriptor.Rank),
					string(s.Descriptor.Cost),
					yesNo(s.Descriptor.RequiresNetwork),
					ready,
					s.Detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Kind", "#", "Provider", "Rank", "Cost", "Network", "Ready", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			if err := preflight.ChainsUsable(statuses); err != nil {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
			return nil
		},
	}
}
