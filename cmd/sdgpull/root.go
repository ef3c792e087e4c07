package main

import (
	"github.com/couchcryptid/sdg-data-pull-service/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sdgpull [command]",
		Short: "Pull and flatten UN SDG indicator metadata and series data",
		Long: `Fetches the SDG indicator list, flattens its series into a table, keeps the
tier-1 rows, then fetches and flattens the observations of the first series code.
Settings come from environment variables; flags override them.`,
		SilenceUsage: true,
	}
	root.AddCommand(newPullCmd(), newServeCmd(), newFlattenCmd())
	return root
}

// pullFlags are the config overrides shared by pull and serve.
type pullFlags struct {
	sinks               string
	tier                string
	codesFromTierFilter bool
	strict              bool
}

func (f *pullFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sinks, "sinks", "", "Comma-separated sinks: console, kafka, postgres (or SDG_SINKS env)")
	cmd.Flags().StringVar(&f.tier, "tier", "", "Tier value kept by the filter (or SDG_TIER_FILTER env)")
	cmd.Flags().BoolVar(&f.codesFromTierFilter, "codes-from-tier-filter", false, "Take series codes from the tier-filtered table (or SDG_CODES_FROM_TIER_FILTER env)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Fail on records missing the record path or meta fields (SDG_TOLERATE_MISSING_PATH=false)")
}

// apply overrides cfg with every flag set on the command line and
// revalidates the result.
func (f *pullFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	if fs.Changed("sinks") {
		cfg.Sinks = config.ParseList(f.sinks)
	}
	if fs.Changed("tier") {
		cfg.TierFilter = f.tier
	}
	if fs.Changed("codes-from-tier-filter") {
		cfg.CodesFromTierFilter = f.codesFromTierFilter
	}
	if fs.Changed("strict") {
		cfg.TolerateMissingPath = !f.strict
	}
	return cfg.Validate()
}

func loadConfig(cmd *cobra.Command, flags *pullFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := flags.apply(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
