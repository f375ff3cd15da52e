package commands

import (
	"fmt"
	"time"

	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/spf13/cobra"
)

type seedEntry struct {
	text    string
	age     time.Duration
	insight models.Insight
}

func unitPtr(s string) *string { return &s }

func sampleEntries() []seedEntry {
	return []seedEntry{
		{
			text: "Ran 5k in 30 minutes this morning. Felt great!",
			age:  50 * time.Hour,
			insight: models.Insight{
				Summary:    "Morning 5k run",
				Activity:   "run",
				Confidence: 0.95,
				Tags:       []string{"exercise", "cardio"},
				Metrics: []models.Metric{
					{Type: "distance", Value: models.NumberValue(5), Unit: unitPtr("km"), Confidence: 0.95},
					{Type: "duration", Value: models.NumberValue(30), Unit: unitPtr("minutes"), Confidence: 0.95},
					{Type: "pace", Value: models.NumberValue(6), Unit: unitPtr("min/km"), Confidence: 0.8},
				},
			},
		},
		{
			text: "Did 3 sets of 10 pushups after lunch",
			age:  26 * time.Hour,
			insight: models.Insight{
				Summary:    "Pushups after lunch",
				Activity:   "strength_training",
				Confidence: 0.9,
				Tags:       []string{"exercise", "strength"},
				Metrics: []models.Metric{
					{Type: "sets", Value: models.NumberValue(3), Unit: unitPtr("sets"), Confidence: 0.9},
					{Type: "reps", Value: models.NumberValue(10), Unit: unitPtr("reps"), Confidence: 0.9},
					{Type: "exercise", Value: models.StringValue("pushups"), Confidence: 0.9},
				},
			},
		},
		{
			text: "Meditated for 15 minutes before bed",
			age:  14 * time.Hour,
			insight: models.Insight{
				Summary:    "Evening meditation",
				Activity:   "meditation",
				Confidence: 0.9,
				Tags:       []string{"mindfulness"},
				Metrics: []models.Metric{
					{Type: "duration", Value: models.NumberValue(15), Unit: unitPtr("minutes"), Confidence: 0.9},
				},
			},
		},
		{
			text: "Ran 7 km along the river, legs a bit tired",
			age:  2 * time.Hour,
			insight: models.Insight{
				Summary:    "River run",
				Activity:   "run",
				Confidence: 0.9,
				Tags:       []string{"exercise", "cardio"},
				Metrics: []models.Metric{
					{Type: "distance", Value: models.NumberValue(7), Unit: unitPtr("km"), Confidence: 0.9},
					{Type: "mood", Value: models.StringValue("tired"), Confidence: 0.6},
				},
			},
		},
	}
}

func newSeedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample entries with insights",
		Long:  "Insert a handful of analyzed sample entries from the last few days. Refuses to touch a non-empty database unless --force is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.close(cmd)

			ctx := cmd.Context()
			repo := database.NewEntryRepository(e.db)
			n, err := repo.Count(ctx)
			if err != nil {
				return err
			}
			if n > 0 && !force {
				return fmt.Errorf("database already holds %d entries; use --force to seed anyway", n)
			}

			now := time.Now().UTC()
			samples := sampleEntries()
			for _, s := range samples {
				insight := s.insight
				entry := &models.DiaryEntry{Text: s.text, Insight: &insight, CreatedAt: now.Add(-s.age)}
				if err := repo.Create(ctx, entry); err != nil {
					return fmt.Errorf("seed entry: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d sample entries\n", len(samples))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Seed even if entries already exist")
	return cmd
}
