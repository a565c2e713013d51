package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duality/internal/events"
)

func TestStreamSink_PublishAppendsToDbEvents(t *testing.T) {
	stream := NewMemoryStream()
	sink := NewStreamSink(stream)

	err := sink.Publish(events.Event{Kind: events.UserCreated, UserCreatedData: &events.UserCreatedData{UserID: 1}})
	require.NoError(t, err)

	msgs, err := stream.Read(context.Background(), "db_events", "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Fields["data"]), &decoded))
	assert.Equal(t, "user_created", decoded["event_type"])
}

func TestStreamSink_DeadLetterAppendsToDLQ(t *testing.T) {
	stream := NewMemoryStream()
	sink := NewStreamSink(stream)

	sink.DeadLetter(events.Event{Kind: events.UserCreated, UserCreatedData: &events.UserCreatedData{UserID: 1}}, errors.New("boom"))

	msgs, err := stream.Read(context.Background(), "db_events:dlq", "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var decoded DeadLetter
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Fields["data"]), &decoded))
	assert.Equal(t, "boom", decoded.Error)
}
