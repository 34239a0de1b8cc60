package sheets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/samijaber1/sitepulse/internal/ingest"
)

// Source is one published spreadsheet CSV export
type Source struct {
	Name string
	URL  string
}

// Config holds spreadsheet adapter configuration
type Config struct {
	Sources        []Source
	Timeout        time.Duration
	MaxConcurrency int64
	RetryCount     int
	RetryDelay     time.Duration
	// MaxBodyBytes caps a single export; zero means 32 MiB
	MaxBodyBytes int64
}

// DefaultConfig returns default configuration
func DefaultConfig(sources []Source) Config {
	return Config{
		Sources:        sources,
		Timeout:        30 * time.Second,
		MaxConcurrency: 4,
		RetryCount:     1,
		RetryDelay:     500 * time.Millisecond,
		MaxBodyBytes:   32 << 20,
	}
}

// Adapter downloads every configured CSV export and decodes it into raw rows
type Adapter struct {
	config Config
	client *http.Client
	sem    *semaphore.Weighted
}

// NewAdapter creates a new spreadsheet adapter
func NewAdapter(config Config) *Adapter {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 32 << 20
	}
	return &Adapter{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		sem: semaphore.NewWeighted(config.MaxConcurrency),
	}
}

type sourceResult struct {
	rows []ingest.RawRow
	err  error
}

// Load implements the ingest.Loader interface. A source that cannot be
// fetched or decoded becomes a warning; Load fails only when every
// source fails or ctx ends.
func (a *Adapter) Load(ctx context.Context) (*ingest.Batch, error) {
	if len(a.config.Sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	results := make([]sourceResult, len(a.config.Sources))

	var g errgroup.Group
	for i, src := range a.config.Sources {
		i, src := i, src
		g.Go(func() error {
			rows, err := a.fetchSource(ctx, src)
			results[i] = sourceResult{rows: rows, err: err}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &ingest.Batch{}
	var failures []string
	for i, src := range a.config.Sources {
		res := results[i]
		if res.err != nil {
			log.Printf("Warning: failed to load source %s: %v", src.Name, res.err)
			batch.Failed = append(batch.Failed, src.Name)
			failures = append(failures, fmt.Sprintf("%s: %v", src.Name, res.err))
			continue
		}
		batch.Succeeded = append(batch.Succeeded, src.Name)
		batch.Rows = append(batch.Rows, res.rows...)
	}

	batch.Warnings = append(batch.Warnings,
		fmt.Sprintf("Loaded %d/%d sources successfully", len(batch.Succeeded), len(a.config.Sources)))
	if len(batch.Failed) > 0 {
		batch.Warnings = append(batch.Warnings, "Failed to load: "+strings.Join(batch.Failed, ", "))
		batch.Warnings = append(batch.Warnings, failures...)
	}

	if len(batch.Succeeded) == 0 {
		return nil, fmt.Errorf("all %d sources failed: %s", len(a.config.Sources), strings.Join(failures, "; "))
	}

	return batch, nil
}

// fetchSource downloads and decodes one source with retry
func (a *Adapter) fetchSource(ctx context.Context, src Source) ([]ingest.RawRow, error) {
	// Acquire semaphore to limit concurrency
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("semaphore acquire: %w", err)
	}
	defer a.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= a.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.config.RetryDelay):
			}
		}

		body, err := a.download(ctx, src.URL)
		if err == nil {
			return ingest.DecodeCSV(src.Name, bytes.NewReader(body))
		}

		lastErr = err
	}

	return nil, fmt.Errorf("download failed after %d attempts: %w", a.config.RetryCount+1, lastErr)
}

// download performs a single GET of a CSV export
func (a *Adapter) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if int64(len(body)) > a.config.MaxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", a.config.MaxBodyBytes)
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
