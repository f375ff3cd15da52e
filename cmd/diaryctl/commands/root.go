package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/benvon/smart-diary/internal/config"
	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd builds the diaryctl command tree
func NewRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "diaryctl",
		Short:         "Operator tool for the Smart Diary API",
		Long:          "Query metrics, inspect the taxonomy, add or seed entries and manage rate limits directly against the diary database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(newQueryCmd(&verbose))
	root.AddCommand(newTaxonomyCmd(&verbose))
	root.AddCommand(newEntriesCmd(&verbose))
	root.AddCommand(newSeedCmd())
	root.AddCommand(NewRatelimitCmd())
	return root
}

// env is what every database-backed command needs
type env struct {
	cfg    *config.Config
	db     *database.DB
	logger *zap.Logger
}

func openEnv(cmd *cobra.Command, verbose bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	zapLogger := zap.NewNop()
	if verbose {
		if zapLogger, err = logger.NewDevelopmentLogger(true); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(cmd.Context()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &env{cfg: cfg, db: db, logger: zapLogger}, nil
}

func (e *env) close(cmd *cobra.Command) {
	_ = e.logger.Sync()
	if err := e.db.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close database: %v\n", err)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

