package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/migadu/maillog/logger"
)

// queryTracer logs every statement when log_queries is enabled.
type queryTracer struct{}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	logger.DebugContext(ctx, "[DB] executing query", "sql", data.SQL, "args", data.Args)
	return ctx
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err != nil {
		logger.DebugContext(ctx, "[DB] query failed", "error", data.Err)
	}
}
