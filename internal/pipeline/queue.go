package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis layout:
//
//	pipeline:pending    ZSET  job key -> priority (lower pops first)
//	pipeline:payloads   HASH  job key -> envelope JSON
//	pipeline:processing ZSET  job key -> lease expiry (unix seconds)
//	pipeline:attempts   HASH  job key -> delivery count
//	pipeline:dead       LIST  envelope JSON of exhausted jobs
//
// Payloads survive process restarts; a job is gone only after Ack or after
// it lands in the dead list.
const (
	keyPending    = "pipeline:pending"
	keyPayloads   = "pipeline:payloads"
	keyProcessing = "pipeline:processing"
	keyAttempts   = "pipeline:attempts"
	keyDead       = "pipeline:dead"
)

// ErrQueueEmpty is returned by Dequeue when nothing is pending.
var ErrQueueEmpty = errors.New("pipeline: queue empty")

// Moves the lowest-priority pending key into the processing set and returns
// its key and payload. Atomic so two workers never pop the same job.
var dequeueScript = redis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1])
if #popped == 0 then
  return false
end
local key = popped[1]
redis.call('ZADD', KEYS[2], ARGV[1], key)
redis.call('HINCRBY', KEYS[3], key, 1)
local payload = redis.call('HGET', KEYS[4], key)
return {key, payload}
`)

// Moves lease-expired processing keys back to pending at their stored
// priority. Returns the number requeued.
var requeueExpiredScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, key in ipairs(expired) do
  redis.call('ZREM', KEYS[1], key)
  local payload = redis.call('HGET', KEYS[2], key)
  if payload then
    local prio = cjson.decode(payload)['priority']
    redis.call('ZADD', KEYS[3], 'LT', prio, key)
  end
end
return #expired
`)

// Queue is a durable priority queue over redis. Lower priority values pop
// first; enqueueing an already-pending key keeps the lower of the two
// priorities and does not duplicate the job.
type Queue struct {
	rdb        *redis.Client
	lease      time.Duration
	maxRetries int
}

func NewQueue(rdb *redis.Client, lease time.Duration, maxRetries int) *Queue {
	return &Queue{rdb: rdb, lease: lease, maxRetries: maxRetries}
}

// Enqueue adds the job unless its key is already pending or processing.
// A pending duplicate only bumps priority upward (LT), never down.
func (q *Queue) Enqueue(ctx context.Context, job Job, priority int) error {
	inFlight, err := q.rdb.ZScore(ctx, keyProcessing, job.Key()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("enqueue %s: %w", job.Key(), err)
	}
	if err == nil && inFlight > float64(time.Now().Unix()) {
		return nil
	}

	data, err := marshalJob(job, priority)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Key(), err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, keyPayloads, job.Key(), data)
	pipe.ZAddArgs(ctx, keyPending, redis.ZAddArgs{
		LT:      true,
		Members: []redis.Z{{Score: float64(priority), Member: job.Key()}},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Key(), err)
	}
	return nil
}

// Dequeue pops the highest-priority job and leases it. The caller must
// Ack or Nack it before the lease expires or it will be redelivered.
func (q *Queue) Dequeue(ctx context.Context) (Job, int, error) {
	expiry := time.Now().Add(q.lease).Unix()
	res, err := dequeueScript.Run(ctx, q.rdb,
		[]string{keyPending, keyProcessing, keyAttempts, keyPayloads},
		expiry,
	).Result()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrQueueEmpty
	}
	if err != nil {
		return nil, 0, fmt.Errorf("dequeue: %w", err)
	}

	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		return nil, 0, fmt.Errorf("dequeue: unexpected reply %v", res)
	}
	key, _ := pair[0].(string)
	payload, ok := pair[1].(string)
	if !ok {
		// Payload vanished from under a pending key. Drop the orphan.
		q.rdb.ZRem(ctx, keyProcessing, key)
		q.rdb.HDel(ctx, keyAttempts, key)
		return nil, 0, ErrQueueEmpty
	}

	job, priority, err := unmarshalJob([]byte(payload))
	if err != nil {
		q.bury(ctx, key, payload)
		return nil, 0, fmt.Errorf("dequeue %s: %w", key, err)
	}
	return job, priority, nil
}

// Ack removes a completed job entirely.
func (q *Queue) Ack(ctx context.Context, job Job) error {
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, keyProcessing, job.Key())
	pipe.HDel(ctx, keyPayloads, job.Key())
	pipe.HDel(ctx, keyAttempts, job.Key())
	_, err := pipe.Exec(ctx)
	return err
}

// Nack returns a failed job to the pending set, or to the dead list once
// it has been delivered maxRetries times.
func (q *Queue) Nack(ctx context.Context, job Job, priority int) error {
	attempts, err := q.rdb.HGet(ctx, keyAttempts, job.Key()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("nack %s: %w", job.Key(), err)
	}
	if attempts >= q.maxRetries {
		payload, err := q.rdb.HGet(ctx, keyPayloads, job.Key()).Result()
		if err != nil {
			return fmt.Errorf("nack %s: %w", job.Key(), err)
		}
		q.bury(ctx, job.Key(), payload)
		return nil
	}

	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, keyProcessing, job.Key())
	pipe.ZAddArgs(ctx, keyPending, redis.ZAddArgs{
		LT:      true,
		Members: []redis.Z{{Score: float64(priority), Member: job.Key()}},
	})
	_, err = pipe.Exec(ctx)
	return err
}

// RequeueExpired returns jobs whose worker died mid-flight to the pending
// set. Run periodically.
func (q *Queue) RequeueExpired(ctx context.Context) (int, error) {
	res, err := requeueExpiredScript.Run(ctx, q.rdb,
		[]string{keyProcessing, keyPayloads, keyPending},
		time.Now().Unix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("requeue expired: %w", err)
	}
	return res, nil
}

// DeadLen reports the size of the dead-letter list.
func (q *Queue) DeadLen(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, keyDead).Result()
}

func (q *Queue) bury(ctx context.Context, key, payload string) {
	pipe := q.rdb.TxPipeline()
	pipe.LPush(ctx, keyDead, payload)
	pipe.ZRem(ctx, keyProcessing, key)
	pipe.HDel(ctx, keyPayloads, key)
	pipe.HDel(ctx, keyAttempts, key)
	pipe.Exec(ctx)
}
