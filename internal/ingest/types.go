package ingest

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoRows is returned when a load yields no usable rows
var ErrNoRows = errors.New("no usable rows")

// Loader defines the interface for fetching raw task rows from the
// external data source. Implementations must honour ctx cancellation.
type Loader interface {
	Load(ctx context.Context) (*Batch, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context) (*Batch, error)

// Load calls f(ctx)
func (f LoaderFunc) Load(ctx context.Context) (*Batch, error) {
	return f(ctx)
}

// RawRow is a single source row keyed by canonical column name
type RawRow struct {
	Source string
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value of a column, or "" when absent
func (r RawRow) Get(column string) string {
	return trim(r.Fields[column])
}

// Batch is the result of one load across all configured sources
type Batch struct {
	Rows      []RawRow
	Succeeded []string
	Failed    []string
	Warnings  []string
}

// Warning records a row that was skipped or looked suspicious during cleaning
type Warning struct {
	Source  string
	Line    int
	Message string
}

func (w Warning) String() string {
	if w.Source == "" {
		return w.Message
	}
	return fmt.Sprintf("%s:%d: %s", w.Source, w.Line, w.Message)
}
