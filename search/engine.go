// Package search answers email-address lookups by merging the message and
// general log streams into one chronological, capped sequence.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/migadu/maillog/db"
	"github.com/migadu/maillog/helpers"
	"github.com/migadu/maillog/parser"
	"github.com/migadu/maillog/pkg/metrics"
)

// MaxSteps caps how far a search walks the interleaved sequence. Each step
// yields at most one message and one log entry, so a full result holds at
// most 2*MaxSteps rows. There is no cursor: a repeated search restarts from
// the first row, this is a capped preview of the first results only.
const MaxSteps = 100

// Storage is the read side of the store. *db.Database implements it.
type Storage interface {
	MessagesByText(ctx context.Context, text string) ([]db.MessageRow, error)
	LogEntriesByAddress(ctx context.Context, address string) ([]db.LogEntryRow, error)
}

// Result is one search response. Rows render the timestamp first, then the
// remaining columns in storage order. More is set when the cap cut the
// sequence off before both streams were exhausted.
type Result struct {
	Rows [][]any
	More bool
}

// Engine merges the two record streams for an address.
type Engine struct {
	store Storage
}

func New(store Storage) *Engine {
	return &Engine{store: store}
}

// Search extracts the first email-shaped token from input and returns the
// interleaved record streams for it. Input without any address yields an
// empty result, not an error. Both streams are fully materialized before
// merging so no store transaction stays open across the merge.
func (e *Engine) Search(ctx context.Context, input string) (*Result, error) {
	start := time.Now()

	address := helpers.FirstEmail(input)
	if address == "" {
		return &Result{Rows: [][]any{}}, nil
	}

	messages, err := e.store.MessagesByText(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("search for %s: %w", address, err)
	}
	logEntries, err := e.store.LogEntriesByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("search for %s: %w", address, err)
	}

	rows, more := interleave(messages, logEntries, MaxSteps)

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchResultsReturned.Observe(float64(len(rows)))
	return &Result{Rows: rows, More: more}, nil
}

// interleave is a two-pointer merge: each step takes one message then one
// log entry, padding the shorter stream, until both are exhausted or the
// step cap is reached. Within each stream order is strictly chronological;
// across streams only the alternation is guaranteed.
func interleave(messages []db.MessageRow, logEntries []db.LogEntryRow, maxSteps int) ([][]any, bool) {
	rows := make([][]any, 0, len(messages)+len(logEntries))

	var mi, li int
	for step := 0; step < maxSteps; step++ {
		if mi >= len(messages) && li >= len(logEntries) {
			break
		}
		if mi < len(messages) {
			rows = append(rows, messageRow(&messages[mi]))
			mi++
		}
		if li < len(logEntries) {
			rows = append(rows, logEntryRow(&logEntries[li]))
			li++
		}
	}

	return rows, mi < len(messages) || li < len(logEntries)
}

func messageRow(m *db.MessageRow) []any {
	return []any{m.Created.Format(parser.TimestampFormat), m.MessageID, m.Seqnum, m.Body, m.Status}
}

func logEntryRow(l *db.LogEntryRow) []any {
	return []any{l.Created.Format(parser.TimestampFormat), l.Seqnum, l.Body, l.Address}
}
