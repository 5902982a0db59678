package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	BatchSize  = 100
	BatchDelay = 60 * time.Second

	schemesFile = "schemes.json"
	detailsDir  = "scheme-details"
)

type Scraper struct {
	client  *Client
	dataDir string
	logger  *zap.Logger

	BatchSize  int
	BatchDelay time.Duration
}

func New(client *Client, dataDir string, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		client:     client,
		dataDir:    dataDir,
		logger:     logger,
		BatchSize:  BatchSize,
		BatchDelay: BatchDelay,
	}
}

func (s *Scraper) SchemesPath() string {
	return filepath.Join(s.dataDir, schemesFile)
}

func (s *Scraper) DetailsDir() string {
	return filepath.Join(s.dataDir, detailsDir)
}

// FetchSchemes walks the listing page by page and writes every item to
// schemes.json. A failed page ends the walk; whatever was fetched is still
// written. Nothing is written when nothing was fetched.
func (s *Scraper) FetchSchemes(ctx context.Context) (int, error) {
	var items []json.RawMessage
	from := 0

	for {
		s.logger.Info("fetching schemes", zap.Int("from", from))

		page, err := s.client.FetchPage(ctx, from, PageSize)
		if err != nil {
			s.logger.Error("request failed", zap.Int("from", from), zap.Error(err))
			break
		}

		items = append(items, page.Items...)
		from += page.Size
		if page.Last() {
			break
		}
	}

	if len(items) == 0 {
		s.logger.Warn("no schemes fetched")
		return 0, nil
	}

	if err := WriteSchemes(s.SchemesPath(), items); err != nil {
		return 0, err
	}
	s.logger.Info("schemes written", zap.String("path", s.SchemesPath()), zap.Int("count", len(items)))
	return len(items), nil
}

// WriteSchemes writes items as an indented JSON array, creating parent
// directories as needed.
func WriteSchemes(path string, items []json.RawMessage) error {
	return writeJSONFile(path, items)
}

func writeJSONFile(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadSlugs returns fields.slug of every scheme in a schemes.json file,
// skipping blanks.
func ReadSlugs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var schemes []struct {
		Fields struct {
			Slug string `json:"slug"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(data, &schemes); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	slugs := make([]string, 0, len(schemes))
	for _, sc := range schemes {
		if slug := strings.TrimSpace(sc.Fields.Slug); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	return slugs, nil
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

// FetchDetails fetches the details of every slug in schemes.json in
// batches, one file per batch. Any failure inside a batch aborts it and all
// remaining batches. It returns the number of batches written.
func (s *Scraper) FetchDetails(ctx context.Context) (int, error) {
	slugs, err := ReadSlugs(s.SchemesPath())
	if err != nil {
		return 0, err
	}

	batches := chunk(slugs, s.BatchSize)
	for idx, batch := range batches {
		s.logger.Info("processing batch", zap.Int("batch", idx+1), zap.Int("of", len(batches)))

		results := make([]json.RawMessage, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, slug := range batch {
			g.Go(func() error {
				data, err := s.client.FetchDetails(gctx, slug)
				if err != nil {
					return fmt.Errorf("fetch details for %s: %w", slug, err)
				}
				results[i] = data
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return idx, fmt.Errorf("batch %d failed, aborting further batches: %w", idx+1, err)
		}

		details := make(map[string]json.RawMessage, len(batch))
		for i, slug := range batch {
			details[slug] = results[i]
		}

		out := filepath.Join(s.DetailsDir(), fmt.Sprintf("schemes-details-%d.json", idx))
		if err := writeJSONFile(out, details); err != nil {
			return idx, err
		}
		s.logger.Info("batch complete", zap.Int("batch", idx+1), zap.String("path", out))

		if idx < len(batches)-1 {
			s.logger.Info("waiting before next batch", zap.Duration("delay", s.BatchDelay))
			if err := sleep(ctx, s.BatchDelay); err != nil {
				return idx + 1, err
			}
		}
	}

	return len(batches), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
