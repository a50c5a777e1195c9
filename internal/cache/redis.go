package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

const keyPrefix = "cxe:submission:"

// casScript swaps the record only when the stored status matches. Running it
// server-side keeps the phase-transition guard atomic across workers and the
// cancelling API.
var casScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if not cur then
  return 0
end
local rec = cjson.decode(cur)
if rec["status"] ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// Redis stores records as JSON strings with a server-side TTL.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func key(id string) string { return keyPrefix + id }

func (r *Redis) Put(ctx context.Context, rec *model.StatusRecord, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key(rec.SubmissionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id string) (*model.StatusRecord, error) {
	payload, err := r.client.Get(ctx, key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var rec model.StatusRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Redis) CompareAndSet(ctx context.Context, id string, expected model.Status, rec *model.StatusRecord, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	res, err := casScript.Run(ctx, r.client, []string{key(id)},
		string(expected), string(payload), strconv.FormatInt(ttl.Milliseconds(), 10)).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res == 1, nil
}

func (r *Redis) Touch(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := r.client.Expire(ctx, key(id), ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
