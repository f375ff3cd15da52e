package commands

import (
	"fmt"

	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/taxonomy"
	"github.com/spf13/cobra"
)

func newTaxonomyCmd(verbose *bool) *cobra.Command {
	var asHint bool
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Show known activities and metric types",
		Long:  "Rebuild the taxonomy from stored insights and print it. --hint prints the text block sent to the oracle instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, *verbose)
			if err != nil {
				return err
			}
			defer e.close(cmd)

			t, err := taxonomy.NewCache(database.NewEntryRepository(e.db), e.cfg.TaxonomyTTL, e.logger).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("build taxonomy: %w", err)
			}
			if asHint {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), taxonomy.FormatContext(t))
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().BoolVar(&asHint, "hint", false, "Print the oracle context block instead of JSON")
	return cmd
}
