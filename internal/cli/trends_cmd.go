package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samijaber1/sitepulse/internal/storage"
)

func newTrendsCmd() *cobra.Command {
	var dbPath string
	var refreshes int

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Print the recorded trend series",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db flag is required")
			}
			return runTrends(cmd, dbPath, refreshes)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file holding the trend history")
	cmd.Flags().IntVar(&refreshes, "refreshes", 0, "Also list the N most recent refresh attempts")
	return cmd
}

type trendsReport struct {
	Points    []storage.TrendPoint    `json:"points"`
	Refreshes []storage.RefreshRecord `json:"refreshes,omitempty"`
}

func runTrends(cmd *cobra.Command, dbPath string, refreshes int) error {
	store, err := openStorage(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var report trendsReport
	if report.Points, err = store.TrendPoints(); err != nil {
		return fmt.Errorf("failed to read trend points: %w", err)
	}
	if refreshes > 0 {
		if report.Refreshes, err = store.QueryRefreshes(storage.RefreshFilter{Limit: refreshes}); err != nil {
			return fmt.Errorf("failed to read refreshes: %w", err)
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
