package bus

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// readBlockDuration is how long a single XREAD call waits for a new entry
// before returning empty, matching request_consumer.rs's poll cadence
// (10ms block, 100ms sleep between attempts) collapsed into one blocking
// call per Consumer iteration.
const readBlockDuration = 5 * time.Second

// RedisStream implements Stream over Redis Streams (XADD/XREAD), grounded on
// original_source/.../services/request_consumer.rs's XREAD-with-last-id
// polling loop and on the redis.Cmdable usage style of
// rishavpaul-system-design/rate-limiter's TokenBucket.
type RedisStream struct {
	client redis.Cmdable
}

// NewRedisStream wraps an existing client (standalone or cluster — anything
// satisfying redis.Cmdable).
func NewRedisStream(client redis.Cmdable) *RedisStream {
	return &RedisStream{client: client}
}

func (r *RedisStream) Append(ctx context.Context, stream string, fields map[string]string) (string, error) {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
}

// Read blocks up to 5 seconds for at least one entry past lastID, matching
// request_consumer.rs's XREAD(block=10ms)-then-sleep(100ms) poll loop
// generalized to a single blocking call per Consumer iteration.
func (r *RedisStream) Read(ctx context.Context, stream, lastID string, count int64) ([]Message, error) {
	res, err := r.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   count,
		Block:   readBlockDuration,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Message
	for _, s := range res {
		for _, entry := range s.Messages {
			fields := make(map[string]string, len(entry.Values))
			for k, v := range entry.Values {
				if sv, ok := v.(string); ok {
					fields[k] = sv
				}
			}
			out = append(out, Message{ID: entry.ID, Fields: fields})
		}
	}
	return out, nil
}
