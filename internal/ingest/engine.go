// Package ingest loads vocabulary documents from local files or S3 and
// imports them into a term store.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/agentic-research/termtree/api"
)

// Target receives decoded vocabularies. termstore.Store satisfies it.
type Target interface {
	Import(v api.Vocabulary) error
}

// Options controls a single Ingest call.
type Options struct {
	// Format overrides extension-based detection when set.
	Format Format
	// Selector is a JSONPath expression applied to JSON sources.
	Selector string
}

// Stats summarises an ingest run.
type Stats struct {
	Vocabularies int
	Terms        int
	Bytes        int64
	Duration     time.Duration
}

// Engine drives the ingestion process.
type Engine struct {
	target  Target
	fetcher *Fetcher
	logger  *slog.Logger
}

func NewEngine(target Target, fetcher *Fetcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{target: target, fetcher: fetcher, logger: logger}
}

// Ingest fetches uri, decodes it, and imports every vocabulary it holds.
// Vocabularies are imported in document order; the first failure stops the run.
func (e *Engine) Ingest(ctx context.Context, uri string, opts Options) (Stats, error) {
	start := time.Now()
	format := opts.Format
	if format == "" {
		f, err := DetectFormat(uri)
		if err != nil {
			return Stats{}, err
		}
		format = f
	}

	vocabs, n, err := e.decode(ctx, uri, format, opts.Selector)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Bytes: n}
	for _, v := range vocabs {
		if err := e.target.Import(v); err != nil {
			return stats, fmt.Errorf("import vocabulary %q: %w", v.ID, err)
		}
		stats.Vocabularies++
		stats.Terms += len(v.Terms)
		e.logger.Debug("ingest: imported vocabulary", "vocabulary", v.ID, "terms", len(v.Terms))
	}
	stats.Duration = time.Since(start)
	e.logger.Info("ingest: done",
		"source", uri,
		"format", string(format),
		"vocabularies", stats.Vocabularies,
		"terms", stats.Terms,
		"duration", stats.Duration)
	return stats, nil
}

func (e *Engine) decode(ctx context.Context, uri string, format Format, selector string) ([]api.Vocabulary, int64, error) {
	if format == FormatDrupal {
		return e.decodeDrupal(ctx, uri)
	}

	rc, err := e.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rc.Close() }() // safe to ignore

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", uri, err)
	}

	var vocabs []api.Vocabulary
	switch format {
	case FormatJSON:
		vocabs, err = DecodeJSON(data, selector)
	case FormatYAML:
		vocabs, err = DecodeYAML(data)
	case FormatHCL:
		vocabs, err = DecodeHCL(data, uri)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, 0, err
	}
	return vocabs, int64(len(data)), nil
}

// decodeDrupal reads a Drupal SQLite export. Remote databases are copied to a
// temporary file first since SQLite needs a seekable path.
func (e *Engine) decodeDrupal(ctx context.Context, uri string) ([]api.Vocabulary, int64, error) {
	if _, _, remote := parseS3URI(uri); !remote {
		p := localPath(uri)
		info, err := os.Stat(p)
		if err != nil {
			return nil, 0, fmt.Errorf("open source: %w", err)
		}
		vocabs, err := ReadDrupalSQLite(ctx, p)
		return vocabs, info.Size(), err
	}

	rc, err := e.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rc.Close() }() // safe to ignore

	tmp, err := os.CreateTemp("", "termtree-drupal-*.db")
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // safe to ignore

	n, err := io.Copy(tmp, rc)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", uri, err)
	}
	vocabs, err := ReadDrupalSQLite(ctx, tmp.Name())
	return vocabs, n, err
}
