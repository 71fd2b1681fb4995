package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDeadlineKey is the sorted set holding auto-close deadlines.
const DefaultDeadlineKey = "tickets:autoclose"

// removeUnchanged deletes a member only while its score still equals ARGV[2].
var removeUnchanged = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if score and tonumber(score) == tonumber(ARGV[2]) then
  return redis.call('ZREM', KEYS[1], ARGV[1])
end
return 0
`)

// RedisDeadlineStore keeps deadlines in a sorted set scored by unix milliseconds,
// so they survive process restarts.
type RedisDeadlineStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisDeadlineStore returns a store on key (DefaultDeadlineKey when empty).
func NewRedisDeadlineStore(client redis.Cmdable, key string) *RedisDeadlineStore {
	if key == "" {
		key = DefaultDeadlineKey
	}
	return &RedisDeadlineStore{client: client, key: key}
}

func (s *RedisDeadlineStore) Put(ctx context.Context, ticketID int64, notBefore time.Time) error {
	return s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(notBefore.UnixMilli()),
		Member: strconv.FormatInt(ticketID, 10),
	}).Err()
}

func (s *RedisDeadlineStore) Due(ctx context.Context, now time.Time, limit int) ([]Deadline, error) {
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	members, err := s.client.ZRangeByScoreWithScores(ctx, s.key, opt).Result()
	if err != nil {
		return nil, err
	}

	due := make([]Deadline, 0, len(members))
	for _, m := range members {
		raw, ok := m.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		due = append(due, Deadline{TicketID: id, NotBefore: time.UnixMilli(int64(m.Score)).UTC()})
	}
	return due, nil
}

func (s *RedisDeadlineStore) Remove(ctx context.Context, d Deadline) error {
	return removeUnchanged.Run(ctx, s.client, []string{s.key},
		strconv.FormatInt(d.TicketID, 10),
		strconv.FormatInt(d.NotBefore.UnixMilli(), 10),
	).Err()
}
