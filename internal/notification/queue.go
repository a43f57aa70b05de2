package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	minQueuePriority = 1
	maxQueuePriority = 4

	defaultLease     = 5 * time.Minute
	promoteBatchSize = 100
)

// Queue hands notification ids to delivery workers. The job id is the
// notification id.
type Queue interface {
	// Enqueue schedules a job and reports false when the id is already
	// delayed, ready or in flight.
	Enqueue(ctx context.Context, id uuid.UUID, delay time.Duration, priority int) (bool, error)
	// Dequeue leases the next eligible job. ok is false when nothing is ready.
	Dequeue(ctx context.Context) (id uuid.UUID, ok bool, err error)
	// Ack drops a finished job
	Ack(ctx context.Context, id uuid.UUID) error
	// Retry moves an in-flight job back to the delayed set
	Retry(ctx context.Context, id uuid.UUID, delay time.Duration, priority int) error
}

// QueueStats counts jobs per state
type QueueStats struct {
	Delayed  int64
	Ready    int64
	InFlight int64
}

// KEYS: delayed, inflight, priorities, ready:1..ready:4
// ARGV: id, ready-at ms, priority, now ms
var enqueueScript = redis.NewScript(`
local id = ARGV[1]
if redis.call('HEXISTS', KEYS[3], id) == 1 then
	return 0
end
redis.call('HSET', KEYS[3], id, ARGV[3])
if tonumber(ARGV[2]) <= tonumber(ARGV[4]) then
	redis.call('ZADD', KEYS[3 + tonumber(ARGV[3])], ARGV[2], id)
else
	redis.call('ZADD', KEYS[1], ARGV[2], id)
end
return 1
`)

// KEYS: delayed, inflight, priorities, ready:1..ready:4
// ARGV: now ms, lease expiry ms, batch size
var dequeueScript = redis.NewScript(`
local limit = tonumber(ARGV[3])
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1], 'LIMIT', 0, limit)
for _, id in ipairs(expired) do
	redis.call('ZREM', KEYS[2], id)
	local p = tonumber(redis.call('HGET', KEYS[3], id) or '3')
	redis.call('ZADD', KEYS[3 + p], ARGV[1], id)
end
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'WITHSCORES', 'LIMIT', 0, limit)
for i = 1, #due, 2 do
	local id = due[i]
	redis.call('ZREM', KEYS[1], id)
	local p = tonumber(redis.call('HGET', KEYS[3], id) or '3')
	redis.call('ZADD', KEYS[3 + p], due[i + 1], id)
end
for p = 1, 4 do
	local head = redis.call('ZRANGE', KEYS[3 + p], 0, 0)
	if #head > 0 then
		redis.call('ZREM', KEYS[3 + p], head[1])
		redis.call('ZADD', KEYS[2], ARGV[2], head[1])
		return head[1]
	end
end
return false
`)

// KEYS: delayed, inflight, priorities
// ARGV: id, ready-at ms, priority
var retryScript = redis.NewScript(`
local id = ARGV[1]
local removed = redis.call('ZREM', KEYS[2], id)
if removed == 0 and redis.call('HEXISTS', KEYS[3], id) == 1 then
	return 0
end
redis.call('HSET', KEYS[3], id, ARGV[3])
redis.call('ZADD', KEYS[1], ARGV[2], id)
return 1
`)

// RedisQueue is a delayed priority queue on Redis sorted sets. Delayed jobs are
// scored by their ready time; each priority has its own ready set scored by
// eligible time so equal priorities run FIFO; leased jobs are scored by lease
// expiry and return to ready once it passes.
type RedisQueue struct {
	client redis.UniversalClient
	prefix string
	lease  time.Duration
	now    func() time.Time
}

type QueueOption func(*RedisQueue)

// WithLease sets how long a dequeued job stays leased before another worker
// may take it
func WithLease(d time.Duration) QueueOption {
	return func(q *RedisQueue) { q.lease = d }
}

// WithQueueClock replaces the clock used for delays and leases
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *RedisQueue) { q.now = now }
}

// WithKeyPrefix namespaces the queue keys
func WithKeyPrefix(prefix string) QueueOption {
	return func(q *RedisQueue) { q.prefix = prefix }
}

func NewRedisQueue(client redis.UniversalClient, opts ...QueueOption) *RedisQueue {
	q := &RedisQueue{
		client: client,
		prefix: "notifications:queue",
		lease:  defaultLease,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) delayedKey() string  { return q.prefix + ":delayed" }
func (q *RedisQueue) inflightKey() string { return q.prefix + ":inflight" }
func (q *RedisQueue) priorityKey() string { return q.prefix + ":priority" }

func (q *RedisQueue) readyKey(priority int) string {
	return q.prefix + ":ready:" + strconv.Itoa(priority)
}

func (q *RedisQueue) keys() []string {
	keys := []string{q.delayedKey(), q.inflightKey(), q.priorityKey()}
	for p := minQueuePriority; p <= maxQueuePriority; p++ {
		keys = append(keys, q.readyKey(p))
	}
	return keys
}

func clampPriority(priority int) int {
	if priority < minQueuePriority {
		return minQueuePriority
	}
	if priority > maxQueuePriority {
		return maxQueuePriority
	}
	return priority
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func (q *RedisQueue) Enqueue(ctx context.Context, id uuid.UUID, delay time.Duration, priority int) (bool, error) {
	if delay < 0 {
		delay = 0
	}
	now := q.now()
	added, err := enqueueScript.Run(ctx, q.client, q.keys(),
		id.String(),
		millis(now.Add(delay)),
		clampPriority(priority),
		millis(now),
	).Int()
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", id, err)
	}
	return added == 1, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (uuid.UUID, bool, error) {
	now := q.now()
	raw, err := dequeueScript.Run(ctx, q.client, q.keys(),
		millis(now),
		millis(now.Add(q.lease)),
		promoteBatchSize,
	).Text()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("dequeue: %w", err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		// unparseable members can never be processed
		q.client.ZRem(ctx, q.inflightKey(), raw)
		q.client.HDel(ctx, q.priorityKey(), raw)
		return uuid.Nil, false, fmt.Errorf("dequeue: invalid job id %q: %w", raw, err)
	}
	return id, true, nil
}

func (q *RedisQueue) Ack(ctx context.Context, id uuid.UUID) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.inflightKey(), id.String())
		pipe.HDel(ctx, q.priorityKey(), id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, id uuid.UUID, delay time.Duration, priority int) error {
	if delay < 0 {
		delay = 0
	}
	err := retryScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.inflightKey(), q.priorityKey()},
		id.String(),
		millis(q.now().Add(delay)),
		clampPriority(priority),
	).Err()
	if err != nil {
		return fmt.Errorf("retry %s: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) Stats(ctx context.Context) (QueueStats, error) {
	var stats QueueStats

	delayed, err := q.client.ZCard(ctx, q.delayedKey()).Result()
	if err != nil {
		return stats, err
	}
	inflight, err := q.client.ZCard(ctx, q.inflightKey()).Result()
	if err != nil {
		return stats, err
	}
	stats.Delayed = delayed
	stats.InFlight = inflight

	for p := minQueuePriority; p <= maxQueuePriority; p++ {
		n, err := q.client.ZCard(ctx, q.readyKey(p)).Result()
		if err != nil {
			return stats, err
		}
		stats.Ready += n
	}
	return stats, nil
}
