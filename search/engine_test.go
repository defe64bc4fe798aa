package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/migadu/maillog/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	messages   []db.MessageRow
	logEntries []db.LogEntryRow
	err        error

	lastText    string
	lastAddress string
}

func (s *fakeStorage) MessagesByText(_ context.Context, text string) ([]db.MessageRow, error) {
	s.lastText = text
	return s.messages, s.err
}

func (s *fakeStorage) LogEntriesByAddress(_ context.Context, address string) ([]db.LogEntryRow, error) {
	s.lastAddress = address
	return s.logEntries, s.err
}

func at(minute int) time.Time {
	return time.Date(2012, 2, 13, 14, minute, 0, 0, time.UTC)
}

func TestSearchInterleavesMessageFirst(t *testing.T) {
	store := &fakeStorage{
		messages: []db.MessageRow{
			{Created: at(1), MessageID: "m1", Seqnum: 1, Body: "m1 body user@example.com"},
			{Created: at(3), MessageID: "m2", Seqnum: 2, Body: "m2 body user@example.com"},
		},
		logEntries: []db.LogEntryRow{
			{Created: at(2), Seqnum: 1, Body: "l1 body", Address: "user@example.com"},
		},
	}

	result, err := New(store).Search(context.Background(), "user@example.com")
	require.NoError(t, err)

	// Pad-to-longest: the second step has no log entry, the absent
	// placeholder is dropped from the output.
	require.Len(t, result.Rows, 3)
	assert.Equal(t, "m1", result.Rows[0][1])
	assert.Equal(t, "l1 body", result.Rows[1][2])
	assert.Equal(t, "m2", result.Rows[2][1])
	assert.False(t, result.More)
}

func TestSearchCapReturnsFirst100AndMore(t *testing.T) {
	store := &fakeStorage{}
	for i := 0; i < 150; i++ {
		store.messages = append(store.messages, db.MessageRow{
			Created:   at(0).Add(time.Duration(i) * time.Second),
			MessageID: fmt.Sprintf("m%03d", i),
			Seqnum:    int64(i),
			Body:      "body user@example.com",
		})
	}

	result, err := New(store).Search(context.Background(), "user@example.com")
	require.NoError(t, err)

	assert.Len(t, result.Rows, 100)
	assert.True(t, result.More)
	assert.Equal(t, "m000", result.Rows[0][1])
	assert.Equal(t, "m099", result.Rows[99][1])
}

func TestSearchExactCapIsNotMore(t *testing.T) {
	store := &fakeStorage{}
	for i := 0; i < 100; i++ {
		store.messages = append(store.messages, db.MessageRow{
			Created: at(0), MessageID: fmt.Sprintf("m%d", i), Body: "user@example.com",
		})
	}

	result, err := New(store).Search(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Len(t, result.Rows, 100)
	assert.False(t, result.More)
}

func TestSearchCapCountsStepsNotRows(t *testing.T) {
	// 120 messages and 120 log entries: 100 steps emit 200 rows.
	store := &fakeStorage{}
	for i := 0; i < 120; i++ {
		store.messages = append(store.messages, db.MessageRow{Created: at(0), MessageID: "m", Body: "x"})
		store.logEntries = append(store.logEntries, db.LogEntryRow{Created: at(0), Address: "user@example.com"})
	}

	result, err := New(store).Search(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Len(t, result.Rows, 200)
	assert.True(t, result.More)
}

func TestSearchNoAddressInInput(t *testing.T) {
	store := &fakeStorage{}
	result, err := New(store).Search(context.Background(), "not an email")
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.False(t, result.More)
	// The store is never consulted without an address.
	assert.Empty(t, store.lastText)
	assert.Empty(t, store.lastAddress)
}

func TestSearchExtractsFirstAddressFromInput(t *testing.T) {
	store := &fakeStorage{}
	_, err := New(store).Search(context.Background(), "look for a@b.com and c@d.org please")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", store.lastText)
	assert.Equal(t, "a@b.com", store.lastAddress)
}

func TestSearchRendersTimestampAndColumnOrder(t *testing.T) {
	status := true
	store := &fakeStorage{
		messages: []db.MessageRow{
			{Created: at(5), MessageID: "qid", Seqnum: 7, Body: "the body", Status: &status},
		},
		logEntries: []db.LogEntryRow{
			{Created: at(6), Seqnum: 9, Body: "log body", Address: "user@example.com"},
		},
	}

	result, err := New(store).Search(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	assert.Equal(t, []any{"2012-02-13 14:05:00", "qid", int64(7), "the body", &status}, result.Rows[0])
	assert.Equal(t, []any{"2012-02-13 14:06:00", int64(9), "log body", "user@example.com"}, result.Rows[1])
}

func TestSearchStoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := &fakeStorage{err: storeErr}

	result, err := New(store).Search(context.Background(), "user@example.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, storeErr)
}
