package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/queue"
	"github.com/benvon/smart-diary/internal/services/ai"
	"github.com/benvon/smart-diary/internal/taxonomy"
	"github.com/benvon/smart-diary/internal/validation"
	"github.com/benvon/smart-diary/internal/workers"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const maxEntryTextLength = 1000

func newEntriesCmd(verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Add and inspect diary entries",
	}
	cmd.AddCommand(newEntriesAddCmd(verbose))
	cmd.AddCommand(newEntriesListCmd(verbose))
	cmd.AddCommand(newEntriesGetCmd(verbose))
	return cmd
}

func newEntriesAddCmd(verbose *bool) *cobra.Command {
	var noAnalyze bool
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Store a new entry and extract its insight",
		Long:  "Store a new entry. With RABBITMQ_URL set the extraction job is queued for the worker; otherwise the insight is extracted inline.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := validation.SanitizeText(strings.Join(args, " "))
			if n := len([]rune(text)); n == 0 || n > maxEntryTextLength {
				return fmt.Errorf("entry text must be 1 to %d characters", maxEntryTextLength)
			}

			e, err := openEnv(cmd, *verbose)
			if err != nil {
				return err
			}
			defer e.close(cmd)

			ctx := cmd.Context()
			repo := database.NewEntryRepository(e.db)
			entry := &models.DiaryEntry{Text: text}
			if err := repo.Create(ctx, entry); err != nil {
				return err
			}

			switch {
			case noAnalyze:
			case e.cfg.UseQueue():
				q, err := queue.NewRabbitMQQueue(e.cfg.RabbitMQURL, e.logger)
				if err != nil {
					return fmt.Errorf("entry %s stored but not queued: %w", entry.ID, err)
				}
				defer func() { _ = q.Close() }()
				if err := q.Enqueue(ctx, queue.NewExtractionJob(entry.ID)); err != nil {
					return fmt.Errorf("entry %s stored but not queued: %w", entry.ID, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Queued extraction for %s\n", entry.ID)
			default:
				provider, err := ai.NewProviderRegistry().Create(e.cfg.AIProvider, ai.ProviderConfig{
					APIKey:     e.cfg.OpenAIKey,
					BaseURL:    e.cfg.AIBaseURL,
					Model:      e.cfg.AIModel,
					MaxRetries: e.cfg.AIMaxRetries,
					Logger:     e.logger,
					DebugMode:  *verbose,
				})
				if err != nil {
					return err
				}
				analyzer := workers.NewEntryAnalyzer(
					repo,
					ai.NewInsightExtractor(provider, e.logger),
					taxonomy.NewCache(repo, e.cfg.TaxonomyTTL, e.logger),
					nil,
					nil,
					e.logger,
				)
				insight, err := analyzer.AnalyzeEntry(ctx, entry.ID)
				if err != nil {
					return fmt.Errorf("entry %s stored but not analyzed: %w", entry.ID, err)
				}
				entry.Insight = insight
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
	cmd.Flags().BoolVar(&noAnalyze, "no-analyze", false, "Store the entry without extracting or queueing")
	return cmd
}

func newEntriesListCmd(verbose *bool) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 || offset < 0 {
				return fmt.Errorf("--limit must be positive and --offset non-negative")
			}
			e, err := openEnv(cmd, *verbose)
			if err != nil {
				return err
			}
			defer e.close(cmd)

			entries, err := database.NewEntryRepository(e.db).ListEntries(cmd.Context(), database.EntryFilter{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	return cmd
}

func newEntriesGetCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entry ID: %w", err)
			}
			e, err := openEnv(cmd, *verbose)
			if err != nil {
				return err
			}
			defer e.close(cmd)

			entry, err := database.NewEntryRepository(e.db).GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
}
