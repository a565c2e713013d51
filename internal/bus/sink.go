package bus

import (
	"context"
	"encoding/json"
	"time"

	"duality/internal/events"
)

// StreamSink publishes events.Event entries to the db_events stream,
// satisfying events.Sink. Its DeadLetter method is the intended onDropped
// callback for events.Outbox.Drain, writing to db_events:dlq per spec.md §6.
type StreamSink struct {
	stream Stream
}

// NewStreamSink wraps s as an events.Sink over the db_events stream.
func NewStreamSink(s Stream) *StreamSink {
	return &StreamSink{stream: s}
}

func (s *StreamSink) Publish(ev events.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.stream.Append(context.Background(), "db_events", map[string]string{"data": string(body)})
	return err
}

// DeadLetter writes ev (which failed to publish with cause) to db_events:dlq
// as a DeadLetter envelope.
func (s *StreamSink) DeadLetter(ev events.Event, cause error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	dl := DeadLetter{
		Event:     json.RawMessage(body),
		Error:     cause.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	dlBody, err := json.Marshal(dl)
	if err != nil {
		return
	}
	_, _ = s.stream.Append(context.Background(), "db_events:dlq", map[string]string{"data": string(dlBody)})
}
