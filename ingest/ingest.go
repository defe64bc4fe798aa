// Package ingest feeds raw MTA log lines through the classification chain.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/migadu/maillog/logger"
	"github.com/migadu/maillog/parser"
	"github.com/migadu/maillog/pkg/metrics"
)

// Lines are bounded in practice, but a runaway body must not kill the run.
const maxLineSize = 1024 * 1024

// Stats summarizes one ingestion run.
type Stats struct {
	Persisted   int // lines stored as message or general records
	Skipped     int // lines matching neither shape
	ParseErrors int // malformed lines counted and skipped
}

// Ingester streams lines from a reader through the chain, one line at a
// time. Parse failures are fatal to the offending line only; store failures
// abort the run so nothing is silently dropped past a broken backend.
type Ingester struct {
	chain *parser.Chain
}

func New(sink parser.Sink) *Ingester {
	return &Ingester{chain: parser.NewChain(sink)}
}

// ProcessFile ingests the log file at path.
func (ing *Ingester) ProcessFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	start := time.Now()
	stats, err := ing.ProcessReader(ctx, f)
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	logger.InfoContext(ctx, "ingestion finished",
		"path", path,
		"persisted", stats.Persisted,
		"skipped", stats.Skipped,
		"parse_errors", stats.ParseErrors,
		"elapsed", time.Since(start))
	return stats, err
}

// ProcessReader ingests lines from r until EOF, a store error or context
// cancellation. The returned stats cover everything processed so far.
func (ing *Ingester) ProcessReader(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line := scanner.Text()
		rec, err := parser.Parse(line)
		if err != nil {
			var parseErr *parser.ParseError
			if errors.As(err, &parseErr) {
				stats.ParseErrors++
				metrics.LinesProcessedTotal.WithLabelValues("parse_error").Inc()
				logger.WarnContext(ctx, "skipping malformed line", "error", parseErr.Err, "line", line)
				continue
			}
			return stats, err
		}
		if rec == nil {
			stats.Skipped++
			metrics.LinesProcessedTotal.WithLabelValues("skipped").Inc()
			continue
		}

		if err := ing.chain.Handle(ctx, rec); err != nil {
			return stats, fmt.Errorf("failed to persist record: %w", err)
		}
		stats.Persisted++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read input: %w", err)
	}
	return stats, nil
}
