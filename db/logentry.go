package db

import (
	"context"
	"fmt"
	"time"

	"github.com/migadu/maillog/consts"
	"github.com/migadu/maillog/helpers"
	"github.com/migadu/maillog/parser"
	"github.com/migadu/maillog/pkg/metrics"
)

// LogEntryRow is a stored general log entry, columns in storage order.
type LogEntryRow struct {
	Created time.Time
	Seqnum  int64
	Body    string
	Address string
}

// SaveLogEntry appends one general log entry in its own transaction. The
// table carries no uniqueness constraint: repeated identical rows are all
// kept, these are audit-log semantics.
func (db *Database) SaveLogEntry(ctx context.Context, rec *parser.Record) error {
	start := time.Now()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", consts.ErrDBBeginTransactionFailed, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO log_entries (created, body, address)
		VALUES ($1, $2, $3)
	`, rec.Created, helpers.SanitizeUTF8(rec.Body), rec.Address)
	if err != nil {
		metrics.DBQueriesTotal.WithLabelValues("insert_log_entry", "error").Inc()
		return fmt.Errorf("%w: %v", consts.ErrDBInsertFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.DBQueriesTotal.WithLabelValues("insert_log_entry", "error").Inc()
		return fmt.Errorf("%w: %v", consts.ErrDBCommitTransactionFailed, err)
	}

	metrics.DBQueriesTotal.WithLabelValues("insert_log_entry", "ok").Inc()
	metrics.DBQueryDuration.WithLabelValues("insert_log_entry").Observe(time.Since(start).Seconds())
	return nil
}

// LogEntriesByAddress returns all general entries recorded for exactly the
// given address, oldest first.
func (db *Database) LogEntriesByAddress(ctx context.Context, address string) ([]LogEntryRow, error) {
	start := time.Now()

	rows, err := db.Pool.Query(ctx, `
		SELECT created, seqnum, COALESCE(body, ''), COALESCE(address, '')
		FROM log_entries
		WHERE address = $1
		ORDER BY created ASC
	`, address)
	if err != nil {
		metrics.DBQueriesTotal.WithLabelValues("select_log_entries", "error").Inc()
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var result []LogEntryRow
	for rows.Next() {
		var l LogEntryRow
		if err := rows.Scan(&l.Created, &l.Seqnum, &l.Body, &l.Address); err != nil {
			metrics.DBQueriesTotal.WithLabelValues("select_log_entries", "error").Inc()
			return nil, fmt.Errorf("failed to scan log entry row: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		metrics.DBQueriesTotal.WithLabelValues("select_log_entries", "error").Inc()
		return nil, fmt.Errorf("failed to read log entry rows: %w", err)
	}

	metrics.DBQueriesTotal.WithLabelValues("select_log_entries", "ok").Inc()
	metrics.DBQueryDuration.WithLabelValues("select_log_entries").Observe(time.Since(start).Seconds())
	return result, nil
}
