package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisRepository.
const DefaultRedisPrefix = "art"

// ErrRecordCorrupt is returned when a stored record cannot be parsed.
var ErrRecordCorrupt = errors.New("refresh record corrupt")

const (
	fieldID        = "id"
	fieldUserID    = "uid"
	fieldExpiresAt = "exp"
	fieldCreatedAt = "iat"
)

const takeRecordScript = `
local record_key = KEYS[1]
local id_prefix = ARGV[1]
local user_prefix = ARGV[2]

local fields = redis.call("HMGET", record_key, "id", "uid", "exp", "iat")
if not fields[1] then
  return false
end

redis.call("DEL", record_key)
redis.call("DEL", id_prefix .. fields[1])
if fields[2] then
  redis.call("SREM", user_prefix .. fields[2], fields[1])
end

return fields
`

var takeRecordLua = redis.NewScript(takeRecordScript)

const deleteByIDScript = `
local id_key = KEYS[1]
local record_prefix = ARGV[1]
local user_prefix = ARGV[2]
local id = ARGV[3]

local hash = redis.call("GET", id_key)
if not hash then
  return 0
end

local record_key = record_prefix .. hash
local user_id = redis.call("HGET", record_key, "uid")
redis.call("DEL", record_key, id_key)
if user_id then
  redis.call("SREM", user_prefix .. user_id, id)
end
return 1
`

var deleteByIDLua = redis.NewScript(deleteByIDScript)

const deleteByUserScript = `
local user_key = KEYS[1]
local id_prefix = ARGV[1]
local record_prefix = ARGV[2]

local ids = redis.call("SMEMBERS", user_key)
local removed = 0
for _, id in ipairs(ids) do
  local id_key = id_prefix .. id
  local hash = redis.call("GET", id_key)
  if hash then
    removed = removed + redis.call("DEL", record_prefix .. hash)
    redis.call("DEL", id_key)
  end
end
redis.call("DEL", user_key)
return removed
`

var deleteByUserLua = redis.NewScript(deleteByUserScript)

// RedisRepository stores refresh records as Redis hashes that expire with
// the token. Two secondary keys index records by id and by owner.
//
// Layout, with the default prefix:
//
//	{art}:h:<hash>  hash {id, uid, exp, iat}
//	{art}:i:<id>    string <hash>
//	{art}:u:<user>  set of ids
//
// The prefix is a hash tag, so every key of one repository lives in a
// single cluster slot and the scripts may derive keys from their
// arguments.
type RedisRepository struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisRepository creates a repository on client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRepository{redis: client, prefix: prefix}
}

func (r *RedisRepository) recordPrefix() string { return "{" + r.prefix + "}:h:" }
func (r *RedisRepository) idPrefix() string     { return "{" + r.prefix + "}:i:" }
func (r *RedisRepository) userPrefix() string   { return "{" + r.prefix + "}:u:" }

func (r *RedisRepository) recordKey(hash string) string { return r.recordPrefix() + hash }
func (r *RedisRepository) idKey(id string) string       { return r.idPrefix() + id }
func (r *RedisRepository) userKey(userID string) string { return r.userPrefix() + userID }

// Insert writes the record and both indexes in one MULTI block. Keys get a
// relative TTL equal to the record lifetime; the Redis clock never sees
// ExpiresAt.
func (r *RedisRepository) Insert(ctx context.Context, rec Record) error {
	recordKey := r.recordKey(rec.Hash)
	idKey := r.idKey(rec.ID)
	userKey := r.userKey(rec.UserID)
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordKey,
			fieldID, rec.ID,
			fieldUserID, rec.UserID,
			fieldExpiresAt, strconv.FormatInt(rec.ExpiresAt.UnixNano(), 10),
			fieldCreatedAt, strconv.FormatInt(rec.CreatedAt.UnixNano(), 10),
		)
		pipe.PExpire(ctx, recordKey, ttl)
		pipe.Set(ctx, idKey, rec.Hash, ttl)
		pipe.SAdd(ctx, userKey, rec.ID)
		pipe.PExpire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisRepository) FindByHash(ctx context.Context, hash string) (Record, error) {
	vals, err := r.redis.HMGet(ctx, r.recordKey(hash), fieldID, fieldUserID, fieldExpiresAt, fieldCreatedAt).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(vals) == 0 || vals[0] == nil {
		return Record{}, ErrNotFound
	}
	return parseRecord(hash, vals)
}

// TakeByHash reads and deletes the record with a single script call.
func (r *RedisRepository) TakeByHash(ctx context.Context, hash string) (Record, error) {
	res, err := takeRecordLua.Run(
		ctx,
		r.redis,
		[]string{r.recordKey(hash)},
		r.idPrefix(),
		r.userPrefix(),
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return parseRecord(hash, res)
}

func (r *RedisRepository) DeleteByID(ctx context.Context, id string) error {
	err := deleteByIDLua.Run(
		ctx,
		r.redis,
		[]string{r.idKey(id)},
		r.recordPrefix(),
		r.userPrefix(),
		id,
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	n, err := deleteByUserLua.Run(
		ctx,
		r.redis,
		[]string{r.userKey(userID)},
		r.idPrefix(),
		r.recordPrefix(),
	).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// DeleteExpired is a no-op: Redis evicts records through key expiry.
func (r *RedisRepository) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func parseRecord(hash string, vals []interface{}) (Record, error) {
	if len(vals) != 4 {
		return Record{}, ErrRecordCorrupt
	}
	fields := make([]string, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return Record{}, ErrRecordCorrupt
		}
		fields[i] = s
	}

	expiresAt, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	createdAt, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}

	return Record{
		ID:        fields[0],
		UserID:    fields[1],
		Hash:      hash,
		ExpiresAt: time.Unix(0, expiresAt).UTC(),
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}, nil
}
