package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/puppyradar/internal/db"
)

// replaceHashScript rewrites KEYS[1] with the field/value pairs in ARGV[2..]
// and sets a TTL of ARGV[1] ms on every key.
var replaceHashScript = rueidis.NewLuaScript(`
redis.call('DEL', KEYS[1])
if #ARGV > 1 then
  redis.call('HSET', KEYS[1], unpack(ARGV, 2))
end
if tonumber(ARGV[1]) > 0 then
  for i = 1, #KEYS do
    redis.call('PEXPIRE', KEYS[i], ARGV[1])
  end
end
return 1
`)

// toggleHashScript flips field ARGV[1] of KEYS[1], storing ARGV[2] when it
// sets the field, and sets a TTL of ARGV[3] ms on every key.
// Returns -1 without writing when one of KEYS[2..] is missing.
var toggleHashScript = rueidis.NewLuaScript(`
for i = 2, #KEYS do
  if redis.call('EXISTS', KEYS[i]) == 0 then
    return -1
  end
end
local set = 1
if redis.call('HDEL', KEYS[1], ARGV[1]) == 1 then
  set = 0
else
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
if tonumber(ARGV[3]) > 0 then
  for i = 1, #KEYS do
    redis.call('PEXPIRE', KEYS[i], ARGV[3])
  end
end
return set
`)

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HReplace replaces all fields of key in one script call. An empty fields map
// leaves the key deleted. The TTL is refreshed on key and on every touch key.
func (s *Store) HReplace(
	ctx context.Context, key string, fields map[string]string, ttl time.Duration, touch ...string,
) error {
	args := make([]string, 0, 1+2*len(fields))
	args = append(args, ttlArg(ttl))
	for k, v := range fields {
		args = append(args, k, v)
	}
	keys := append([]string{key}, touch...)

	if err := replaceHashScript.Exec(ctx, s.client, keys, args).Error(); err != nil {
		return &db.Error{Op: db.OpEval, Err: err}
	}
	return nil
}

// HToggle sets field to value when it is absent and removes it when present,
// in one script call. It reports whether the field is now set. When a touch
// key does not exist nothing is written and db.ErrKeyNotFound is returned.
func (s *Store) HToggle(
	ctx context.Context, key, field, value string, ttl time.Duration, touch ...string,
) (bool, error) {
	keys := append([]string{key}, touch...)
	n, err := toggleHashScript.Exec(ctx, s.client, keys, []string{field, value, ttlArg(ttl)}).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpEval, Err: err}
	}
	if n < 0 {
		return false, db.ErrKeyNotFound
	}
	return n == 1, nil
}

func ttlArg(ttl time.Duration) string {
	return strconv.FormatInt(ttl.Milliseconds(), 10)
}
