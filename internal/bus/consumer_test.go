package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duality/internal/engine"
)

func waitForResponse(t *testing.T, stream *MemoryStream, name string) Response {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for a response on %s", name)
		default:
		}
		msgs, err := stream.Read(context.Background(), name, "0", 10)
		require.NoError(t, err)
		if len(msgs) > 0 {
			var resp Response
			require.NoError(t, json.Unmarshal([]byte(msgs[0].Fields["data"]), &resp))
			return resp
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConsumer_ProcessesRequestAndPublishesResponse(t *testing.T) {
	e := engine.New(nil)
	engCtx, engCancel := context.WithCancel(context.Background())
	defer engCancel()
	go e.Run(engCtx)

	stream := NewMemoryStream()
	consumer := NewTradingConsumer(stream, e, zerolog.Nop(), 2)

	consCtx, consCancel := context.WithCancel(context.Background())
	defer consCancel()
	go consumer.Run(consCtx, "0")

	reqBody, err := json.Marshal(Request{
		Service: "engine", Action: "create-user",
		Data: mustJSON(t, createUserRequest{UserID: 1, Name: "alice", Email: "a@example.com", Balance: 100}),
	})
	require.NoError(t, err)
	_, err = stream.Append(context.Background(), "server_requests", map[string]string{
		"request_id": "req-1", "data": string(reqBody),
	})
	require.NoError(t, err)

	resp := waitForResponse(t, stream, "engine_responses")
	assert.True(t, resp.Success)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestConsumer_MalformedEnvelopeRespondsWithFailure(t *testing.T) {
	e := engine.New(nil)
	engCtx, engCancel := context.WithCancel(context.Background())
	defer engCancel()
	go e.Run(engCtx)

	stream := NewMemoryStream()
	consumer := NewTradingConsumer(stream, e, zerolog.Nop(), 2)

	consCtx, consCancel := context.WithCancel(context.Background())
	defer consCancel()
	go consumer.Run(consCtx, "0")

	_, err := stream.Append(context.Background(), "server_requests", map[string]string{
		"request_id": "req-bad", "data": "not json",
	})
	require.NoError(t, err)

	resp := waitForResponse(t, stream, "engine_responses")
	assert.False(t, resp.Success)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestConsumer_UnknownActionRespondsWithFailure(t *testing.T) {
	e := engine.New(nil)
	engCtx, engCancel := context.WithCancel(context.Background())
	defer engCancel()
	go e.Run(engCtx)

	stream := NewMemoryStream()
	consumer := NewReadConsumer(stream, e, zerolog.Nop(), 2)

	consCtx, consCancel := context.WithCancel(context.Background())
	defer consCancel()
	go consumer.Run(consCtx, "0")

	reqBody, _ := json.Marshal(Request{Action: "no-such-action", Data: json.RawMessage(`{}`)})
	_, err := stream.Append(context.Background(), "db_read_requests", map[string]string{
		"request_id": "req-2", "data": string(reqBody),
	})
	require.NoError(t, err)

	resp := waitForResponse(t, stream, "db_read_responses")
	assert.False(t, resp.Success)
}
