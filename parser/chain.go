package parser

import (
	"context"
	"errors"
	"strings"

	"github.com/migadu/maillog/consts"
	"github.com/migadu/maillog/logger"
	"github.com/migadu/maillog/pkg/metrics"
)

// Sink persists classified records. *db.Database implements it; tests
// substitute an in-memory fake.
type Sink interface {
	SaveMessage(ctx context.Context, rec *Record) error
	SaveLogEntry(ctx context.Context, rec *Record) error
}

// Handler is one link of the classification chain. It either consumes the
// record (handled=true) or delegates to the next link. Routing decisions
// are kept separate from classification so new record kinds can be inserted
// into the chain without touching the parser.
type Handler interface {
	Handle(ctx context.Context, rec *Record) (handled bool, err error)
}

// Chain evaluates handlers in order and stops at the first one that
// consumes the record. The last link is expected to be a catch-all.
type Chain struct {
	handlers []Handler
}

// NewChain builds the standard chain: message records first, everything
// else lands in the general log.
func NewChain(sink Sink) *Chain {
	return &Chain{
		handlers: []Handler{
			&MessageHandler{sink: sink},
			&GeneralHandler{sink: sink},
		},
	}
}

func (c *Chain) Handle(ctx context.Context, rec *Record) error {
	for _, h := range c.handlers {
		handled, err := h.Handle(ctx, rec)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	return nil
}

// MessageHandler persists delivery messages. It re-checks the delivery and
// id markers on the record body; a record that lost either marker falls
// through to the next handler instead of being stored as a message. The
// classifier and this check must agree for a message row to be written.
type MessageHandler struct {
	sink Sink
}

func (h *MessageHandler) Handle(ctx context.Context, rec *Record) (bool, error) {
	if !strings.Contains(rec.Body, deliveryMarker) || !strings.Contains(rec.Body, idMarker) {
		return false, nil
	}

	err := h.sink.SaveMessage(ctx, rec)
	if errors.Is(err, consts.ErrDBUniqueViolation) {
		// Same queue id seen before: the row is already present, which is
		// exactly the state we want. Re-running a log file must not fail.
		logger.DebugContext(ctx, "duplicate message ignored", "queue_id", rec.QueueID)
		metrics.DuplicateMessagesTotal.Inc()
		metrics.LinesProcessedTotal.WithLabelValues("message").Inc()
		return true, nil
	}
	if err != nil {
		return true, err
	}

	metrics.LinesProcessedTotal.WithLabelValues("message").Inc()
	return true, nil
}

// GeneralHandler is the chain terminus: it persists any record reaching it
// into the general log, unconditionally.
type GeneralHandler struct {
	sink Sink
}

func (h *GeneralHandler) Handle(ctx context.Context, rec *Record) (bool, error) {
	if err := h.sink.SaveLogEntry(ctx, rec); err != nil {
		return true, err
	}
	metrics.LinesProcessedTotal.WithLabelValues("log_entry").Inc()
	return true, nil
}
