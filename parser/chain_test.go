package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/migadu/maillog/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records what the chain persisted.
type fakeSink struct {
	messages   []*Record
	logEntries []*Record
	messageErr error
	logErr     error
}

func (s *fakeSink) SaveMessage(_ context.Context, rec *Record) error {
	if s.messageErr != nil {
		return s.messageErr
	}
	s.messages = append(s.messages, rec)
	return nil
}

func (s *fakeSink) SaveLogEntry(_ context.Context, rec *Record) error {
	if s.logErr != nil {
		return s.logErr
	}
	s.logEntries = append(s.logEntries, rec)
	return nil
}

func messageRecord() *Record {
	return &Record{
		Kind:    KindMessage,
		Created: time.Date(2012, 2, 13, 14, 39, 22, 0, time.UTC),
		QueueID: "ABC123",
		Body:    "1RwtJa-000AFB-07 <= from@sender.com S=1699 id=ABC123.0",
	}
}

func generalRecord() *Record {
	return &Record{
		Kind:    KindGeneral,
		Created: time.Date(2012, 2, 13, 14, 39, 58, 0, time.UTC),
		Address: "to@rcpt.org",
		Body:    "1RwtJa-000AFB-07 => to@rcpt.org R=dnslookup",
	}
}

func TestChainRoutesMessageToMessageTable(t *testing.T) {
	sink := &fakeSink{}
	chain := NewChain(sink)

	require.NoError(t, chain.Handle(context.Background(), messageRecord()))

	require.Len(t, sink.messages, 1)
	assert.Empty(t, sink.logEntries)
	assert.Equal(t, "ABC123", sink.messages[0].QueueID)
}

func TestChainRoutesGeneralToLogTable(t *testing.T) {
	sink := &fakeSink{}
	chain := NewChain(sink)

	require.NoError(t, chain.Handle(context.Background(), generalRecord()))

	assert.Empty(t, sink.messages)
	require.Len(t, sink.logEntries, 1)
	assert.Equal(t, "to@rcpt.org", sink.logEntries[0].Address)
}

func TestChainRedundantCheckFallsThrough(t *testing.T) {
	// A record whose body lost the id marker must not be stored as a
	// message; it falls through to the catch-all instead.
	rec := messageRecord()
	rec.Body = "1RwtJa-000AFB-07 <= from@sender.com S=1699"

	sink := &fakeSink{}
	chain := NewChain(sink)

	require.NoError(t, chain.Handle(context.Background(), rec))

	assert.Empty(t, sink.messages)
	assert.Len(t, sink.logEntries, 1)
}

func TestChainDuplicateMessageIsSuccess(t *testing.T) {
	sink := &fakeSink{messageErr: consts.ErrDBUniqueViolation}
	chain := NewChain(sink)

	err := chain.Handle(context.Background(), messageRecord())

	assert.NoError(t, err)
	// The duplicate is consumed, never retried against the log table.
	assert.Empty(t, sink.logEntries)
}

func TestChainPropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("connection refused")

	sink := &fakeSink{messageErr: storeErr}
	chain := NewChain(sink)
	assert.ErrorIs(t, chain.Handle(context.Background(), messageRecord()), storeErr)

	sink = &fakeSink{logErr: storeErr}
	chain = NewChain(sink)
	assert.ErrorIs(t, chain.Handle(context.Background(), generalRecord()), storeErr)
}
