package fixture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samijaber1/sitepulse/internal/ingest"
)

// Adapter is a loader that reads CSV files from disk or rows set in
// memory. It serves local runs and tests.
type Adapter struct {
	mu    sync.RWMutex
	files map[string]string
	rows  map[string][]ingest.RawRow
	order []string
}

// NewAdapter creates an empty fixture adapter
func NewAdapter() *Adapter {
	return &Adapter{
		files: make(map[string]string),
		rows:  make(map[string][]ingest.RawRow),
	}
}

// AddFile registers a CSV file as a named source. The file is read on
// every Load, so edits are picked up by the next refresh.
func (a *Adapter) AddFile(name, path string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	a.register(name)
	a.files[name] = path
}

// SetRows directly sets the rows of a source (useful for testing)
func (a *Adapter) SetRows(name string, rows []ingest.RawRow) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.register(name)
	a.rows[name] = rows
}

func (a *Adapter) register(name string) {
	if _, ok := a.files[name]; ok {
		return
	}
	if _, ok := a.rows[name]; ok {
		return
	}
	a.order = append(a.order, name)
}

// Load implements the ingest.Loader interface
func (a *Adapter) Load(ctx context.Context) (*ingest.Batch, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.order) == 0 {
		return nil, fmt.Errorf("no fixture sources registered")
	}

	batch := &ingest.Batch{}
	var failures []string
	for _, name := range a.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := a.loadSource(name)
		if err != nil {
			batch.Failed = append(batch.Failed, name)
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		batch.Succeeded = append(batch.Succeeded, name)
		batch.Rows = append(batch.Rows, rows...)
	}

	batch.Warnings = append(batch.Warnings,
		fmt.Sprintf("Loaded %d/%d sources successfully", len(batch.Succeeded), len(a.order)))
	if len(batch.Failed) > 0 {
		batch.Warnings = append(batch.Warnings, "Failed to load: "+strings.Join(batch.Failed, ", "))
		batch.Warnings = append(batch.Warnings, failures...)
	}

	if len(batch.Succeeded) == 0 {
		return nil, fmt.Errorf("all %d fixture sources failed: %s", len(a.order), strings.Join(failures, "; "))
	}
	return batch, nil
}

func (a *Adapter) loadSource(name string) ([]ingest.RawRow, error) {
	if rows, ok := a.rows[name]; ok {
		return rows, nil
	}

	f, err := os.Open(a.files[name])
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	return ingest.DecodeCSV(name, f)
}
