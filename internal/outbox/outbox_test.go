// internal/outbox/outbox_test.go
package outbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	aggregateID := uuid.New()
	payload := struct {
		LoanID string `json:"loan_id"`
	}{LoanID: "abc"}

	record, err := NewRecord("loan", aggregateID, "loan.checked_out", payload)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, record.EventID)
	assert.Equal(t, "loan", record.AggregateType)
	assert.Equal(t, aggregateID, record.AggregateID)
	assert.Equal(t, "loan.checked_out", record.EventType)
	assert.JSONEq(t, `{"loan_id":"abc"}`, string(record.Payload))
	assert.Nil(t, record.DispatchedAt)
}

func TestNewRecordDistinctEventIDs(t *testing.T) {
	a, err := NewRecord("loan", uuid.New(), "loan.returned", nil)
	require.NoError(t, err)
	b, err := NewRecord("loan", uuid.New(), "loan.returned", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestLogPublisherAcceptsRecord(t *testing.T) {
	record, err := NewRecord("member", uuid.New(), "member.registered", map[string]string{"name": "Ada"})
	require.NoError(t, err)

	p := LogPublisher{Logger: zerolog.Nop()}
	assert.NoError(t, p.Publish(context.Background(), record))
}
