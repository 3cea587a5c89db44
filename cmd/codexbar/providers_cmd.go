package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/providers"
)

type specProvider interface {
	Spec() core.ProviderSpec
}

func newProvidersCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported providers",
		Long:  "List every provider id accepted by --provider, where its credentials are read from, and whether --all includes it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			enabled := lo.Map(providers.All(cfg), func(p core.UsageProvider, _ int) string { return p.ID() })

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tAUTH\tCREDENTIALS\tALL")
			for _, id := range providers.IDs() {
				p, ok := providers.ByID(cfg, id)
				if !ok {
					continue
				}
				auth := core.ProviderAuthSpec{}
				if sp, ok := p.(specProvider); ok {
					auth = sp.Spec().Auth
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					id,
					p.Describe().Name,
					authLabel(auth),
					lo.CoalesceOrEmpty(auth.Store, "-"),
					lo.Ternary(lo.Contains(enabled, id), "yes", "no"),
				)
			}
			return w.Flush()
		},
	}
}

func authLabel(a core.ProviderAuthSpec) string {
	if a.Type == core.ProviderAuthTypeUnknown {
		return "-"
	}
	if a.Refreshing {
		return string(a.Type) + " (refresh)"
	}
	return string(a.Type)
}
