package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/samijaber1/sitepulse/internal/progress"
	"github.com/samijaber1/sitepulse/internal/query"
	"github.com/samijaber1/sitepulse/internal/rollup"
	"github.com/samijaber1/sitepulse/internal/scheduler"
	"github.com/samijaber1/sitepulse/internal/settings"
	"github.com/samijaber1/sitepulse/internal/storage"
	"github.com/samijaber1/sitepulse/internal/storage/memory"
	"github.com/samijaber1/sitepulse/internal/storage/sqlite"
)

// RefreshReport is the JSON output of the refresh command
type RefreshReport struct {
	Result   *scheduler.RefreshResult `json:"result"`
	Summary  rollup.Summary           `json:"summary"`
	Packages []rollup.PackageSummary  `json:"packages"`
	RedList  []progress.SiteRecord    `json:"red_list,omitempty"`
	Delays   []rollup.BucketCount     `json:"delay_distribution"`
	Risk     []rollup.BracketCount    `json:"risk_distribution"`
}

func newRefreshCmd() *cobra.Command {
	var configPath, dbPath string
	var redList int

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh and print a JSON report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config flag is required")
			}
			return runRefresh(cmd, configPath, dbPath, redList)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Settings YAML file")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file to record the trend point and refresh in")
	cmd.Flags().IntVar(&redList, "red-list", 0, "Include the N riskiest sites")
	return cmd
}

func runRefresh(cmd *cobra.Command, configPath, dbPath string, redList int) error {
	validator, err := settings.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to initialize validator: %w", err)
	}
	if errs := validator.ValidateFile(configPath); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(cmd.ErrOrStderr(), e)
		}
		return fmt.Errorf("invalid settings file %s", configPath)
	}

	dashboard, err := settings.Load(configPath)
	if err != nil {
		return err
	}

	store, err := openStorage(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sched, err := dashboard.NewScheduler(filepath.Dir(configPath), store)
	if err != nil {
		return err
	}
	sched.SetAuditStorage(store)

	result, err := sched.Refresh(context.Background())
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	view := query.NewService(sched, store).View()
	report := RefreshReport{
		Result:   result,
		Summary:  view.KPIs(""),
		Packages: view.PackageSummaries(),
		Delays:   view.DelayHistogram(""),
		Risk:     view.RiskDistribution(query.Filter{}),
	}
	if redList > 0 {
		report.RedList = view.RedList("", redList)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func openStorage(dbPath string) (storage.Storage, error) {
	if dbPath == "" {
		return memory.NewStore(), nil
	}
	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}
