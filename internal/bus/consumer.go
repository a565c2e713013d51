package bus

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"duality/internal/common"
	"duality/internal/engine"
)

const requestTaskChanSize = 100

// requestTask is one server_requests (or db_read_requests) entry together
// with the engine's reply, handed from the read loop to a pool worker, which
// publishes the response. Submission to the engine and the wait for its
// reply both happen in the read loop itself, in stream order — only response
// publication is parallelized, so per-client arrival order into the engine's
// single inbox is preserved regardless of how many workers are running.
type requestTask struct {
	requestID  string
	replyTo    string
	action     string
	data       any
	err        error
}

// Consumer drains one request stream, dispatches each entry to an Engine,
// and publishes {status_code, success, message, data} responses to a reply
// stream — the Go shape of
// original_source/.../services/request_consumer.rs's XREAD loop, generalized
// from Redis-specific field parsing to the Stream interface, and from a
// single await-then-respond per message to the teacher's
// (saiputravu-Exchange) WorkerPool/tomb idiom so a slow publish never stalls
// reading the next batch.
type Consumer struct {
	stream       Stream
	requestName  string
	responseName string
	dispatch     func(*engine.Engine, string, json.RawMessage) (any, error)
	engine       *engine.Engine
	log          zerolog.Logger

	tasks chan requestTask
	n     int
}

// NewTradingConsumer builds a Consumer for the server_requests/
// engine_responses pair.
func NewTradingConsumer(s Stream, e *engine.Engine, log zerolog.Logger, poolSize int) *Consumer {
	return newConsumer(s, "server_requests", "engine_responses", dispatchTradingAction, e, log, poolSize)
}

// NewReadConsumer builds a Consumer for the db_read_requests/
// db_read_responses pair.
func NewReadConsumer(s Stream, e *engine.Engine, log zerolog.Logger, poolSize int) *Consumer {
	return newConsumer(s, "db_read_requests", "db_read_responses", dispatchReadAction, e, log, poolSize)
}

func newConsumer(s Stream, requestName, responseName string, dispatch func(*engine.Engine, string, json.RawMessage) (any, error), e *engine.Engine, log zerolog.Logger, poolSize int) *Consumer {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Consumer{
		stream: s, requestName: requestName, responseName: responseName,
		dispatch: dispatch, engine: e, log: log,
		tasks: make(chan requestTask, requestTaskChanSize), n: poolSize,
	}
}

// Run reads requestName from lastID forward until ctx is cancelled,
// submitting each entry to the engine in arrival order and handing the
// resulting reply off to a worker pool for response publication.
func (c *Consumer) Run(ctx context.Context, lastID string) error {
	t, ctx := tomb.WithContext(ctx)

	activeWorkers := 0
	t.Go(func() error {
		for {
			select {
			case <-t.Dying():
				return nil
			default:
				if activeWorkers < c.n {
					t.Go(func() error {
						err := c.worker(t)
						activeWorkers--
						return err
					})
					activeWorkers++
				}
			}
		}
	})

	for {
		select {
		case <-t.Dying():
			return t.Err()
		default:
		}

		msgs, err := c.stream.Read(ctx, c.requestName, lastID, 64)
		if err != nil {
			c.log.Warn().Err(err).Str("stream", c.requestName).Msg("read failed")
			continue
		}
		for _, msg := range msgs {
			lastID = msg.ID
			c.handle(msg)
		}
	}
}

func (c *Consumer) handle(msg Message) {
	raw, ok := msg.Fields["data"]
	if !ok {
		c.log.Warn().Str("message_id", msg.ID).Msg("request missing data field")
		return
	}
	requestID := msg.Fields["request_id"]

	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		c.tasks <- requestTask{requestID: requestID, err: common.NewError(common.InvalidArgument, "malformed request envelope: %v", err)}
		return
	}

	data, err := c.dispatch(c.engine, req.Action, req.Data)
	c.tasks <- requestTask{requestID: requestID, action: req.Action, data: data, err: err}
}

func (c *Consumer) worker(t *tomb.Tomb) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-c.tasks:
		c.publish(task)
	}
	return nil
}

func (c *Consumer) publish(task requestTask) {
	resp := Response{StatusCode: 200, Success: true, Data: task.data}
	if task.err != nil {
		apiErr := common.AsError(task.err)
		resp.StatusCode = common.StatusCode(apiErr.Kind)
		resp.Success = false
		resp.Message = apiErr.Message
		resp.Data = nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		c.log.Error().Err(err).Str("request_id", task.requestID).Msg("failed to marshal response")
		return
	}

	if _, err := c.stream.Append(context.Background(), c.responseName, map[string]string{
		"request_id": task.requestID,
		"data":       string(body),
	}); err != nil {
		c.log.Error().Err(err).Str("request_id", task.requestID).Msg("failed to publish response")
	}
}
