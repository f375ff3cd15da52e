package commands

import (
	"errors"
	"strings"

	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/query"
	"github.com/spf13/cobra"
)

func newQueryCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a metrics question",
		Long:  `Resolve the date range in a free-text question ("how far did I run last week") and print the aggregated metrics as JSON.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, *verbose)
			if err != nil {
				return err
			}
			defer e.close(cmd)

			engine := query.NewEngine(database.NewEntryRepository(e.db), e.logger)
			result := engine.ProcessQuery(cmd.Context(), strings.Join(args, " "))
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if result.Error != "" {
				return errors.New(result.Error)
			}
			return nil
		},
	}
}
