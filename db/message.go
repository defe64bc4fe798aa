package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/migadu/maillog/consts"
	"github.com/migadu/maillog/helpers"
	"github.com/migadu/maillog/parser"
	"github.com/migadu/maillog/pkg/metrics"
)

// MessageRow is a stored delivery message, columns in storage order.
type MessageRow struct {
	Created   time.Time
	MessageID string
	Seqnum    int64
	Body      string
	Status    *bool
}

// SaveMessage inserts one delivery message in its own transaction. A row
// that collides on the queue identifier is already present: the transaction
// is rolled back and consts.ErrDBUniqueViolation is returned for the caller
// to treat as success-as-duplicate. Any other failure is fatal to the
// record and surfaces to the caller.
func (db *Database) SaveMessage(ctx context.Context, rec *parser.Record) error {
	start := time.Now()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", consts.ErrDBBeginTransactionFailed, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (created, message_id, body)
		VALUES ($1, $2, $3)
	`, rec.Created, rec.QueueID, helpers.SanitizeUTF8(rec.Body))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			metrics.DBQueriesTotal.WithLabelValues("insert_message", "duplicate").Inc()
			return consts.ErrDBUniqueViolation
		}
		metrics.DBQueriesTotal.WithLabelValues("insert_message", "error").Inc()
		return fmt.Errorf("%w: %v", consts.ErrDBInsertFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.DBQueriesTotal.WithLabelValues("insert_message", "error").Inc()
		return fmt.Errorf("%w: %v", consts.ErrDBCommitTransactionFailed, err)
	}

	metrics.DBQueriesTotal.WithLabelValues("insert_message", "ok").Inc()
	metrics.DBQueryDuration.WithLabelValues("insert_message").Observe(time.Since(start).Seconds())
	return nil
}

// MessagesByText returns all messages whose body contains text as a
// substring, oldest first. Containment is byte-exact (case-sensitive);
// strpos avoids treating LIKE metacharacters in the address as wildcards.
func (db *Database) MessagesByText(ctx context.Context, text string) ([]MessageRow, error) {
	start := time.Now()

	rows, err := db.Pool.Query(ctx, `
		SELECT created, message_id, seqnum, body, status
		FROM messages
		WHERE strpos(body, $1) > 0
		ORDER BY created ASC
	`, text)
	if err != nil {
		metrics.DBQueriesTotal.WithLabelValues("select_messages", "error").Inc()
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var result []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.Created, &m.MessageID, &m.Seqnum, &m.Body, &m.Status); err != nil {
			metrics.DBQueriesTotal.WithLabelValues("select_messages", "error").Inc()
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		metrics.DBQueriesTotal.WithLabelValues("select_messages", "error").Inc()
		return nil, fmt.Errorf("failed to read message rows: %w", err)
	}

	metrics.DBQueriesTotal.WithLabelValues("select_messages", "ok").Inc()
	metrics.DBQueryDuration.WithLabelValues("select_messages").Observe(time.Since(start).Seconds())
	return result, nil
}
