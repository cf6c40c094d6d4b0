package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRotateMismatch is returned when the presented generation or refresh
// hash does not match the stored session. The script has already revoked
// the session by the time the caller sees this.
var ErrRotateMismatch = errors.New("refresh rotation mismatch")

// ErrRotateSessionNotFound is returned when the rotation target session does not exist.
var ErrRotateSessionNotFound = errors.New("rotation session not found")

// ErrRotateSessionExpired is returned when the rotation target session is past its lifetime.
var ErrRotateSessionExpired = errors.New("rotation session expired")

// ErrRotateSessionRevoked is returned when the rotation target session is revoked,
// either explicitly or by the subject generation floor.
var ErrRotateSessionRevoked = errors.New("rotation session revoked")

// ErrRecordCorrupt is returned when a stored session blob fails decoding.
var ErrRecordCorrupt = errors.New("session record corrupt")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
	rotateStatusCorrupt  int64 = 4
	rotateStatusRevoked  int64 = 5
)

// rotateScript is the serialization point for refresh rotation. It performs
// compare-and-increment on the session generation under Redis's single-writer
// guarantee: of any number of concurrent rotation attempts against one
// session, exactly one observes a matching generation+hash and commits.
// A mismatch marks the whole session revoked in the same atomic step
// (replay is treated as theft, not as a retriable error).
//
// Byte offsets mirror the record layout in encoder.go.
const rotateScript = `
local function read_be32(s, i)
  local b1, b2, b3, b4 = string.byte(s, i, i + 3)
  if not b4 then
    return nil
  end
  return ((b1 * 256 + b2) * 256 + b3) * 256 + b4
end

local function read_be64(s, i)
  local hi = read_be32(s, i)
  local lo = read_be32(s, i + 4)
  if not hi or not lo then
    return nil
  end
  return hi * 4294967296 + lo
end

local function be32(n)
  local b4 = n % 256 n = (n - b4) / 256
  local b3 = n % 256 n = (n - b3) / 256
  local b2 = n % 256 n = (n - b2) / 256
  return string.char(n % 256, b2, b3, b4)
end

local function be64(n)
  local lo = n % 4294967296
  local hi = (n - lo) / 4294967296
  return be32(hi) .. be32(lo)
end

local key = KEYS[1]
local provided_gen = tonumber(ARGV[1])
local provided_hash = ARGV[2]
local next_hash = ARGV[3]
local now_unix = tonumber(ARGV[4])
local floor_prefix = ARGV[5]

local data = redis.call("GET", key)
if not data then
  return {0}
end
if #data < 71 or string.byte(data, 1) ~= 1 then
  return {4}
end

local expires_at = read_be64(data, 31)
if not expires_at or expires_at <= now_unix then
  redis.call("DEL", key)
  return {1}
end

local ttl = redis.call("PTTL", key)
if ttl <= 0 then
  redis.call("DEL", key)
  return {1}
end

local flags = string.byte(data, 2)
if flags % 2 == 1 then
  return {5}
end

local subject_len = string.byte(data, 71)
if not subject_len or subject_len == 0 or #data < 71 + subject_len then
  return {4}
end
local subject = string.sub(data, 72, 71 + subject_len)

local floor = tonumber(redis.call("GET", floor_prefix .. subject) or "0")
local epoch = read_be64(data, 7)
if epoch < floor then
  local revoked = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3)
  redis.call("SET", key, revoked, "PX", ttl)
  return {5}
end

local generation = read_be32(data, 3)
local stored_hash = string.sub(data, 39, 70)
if generation ~= provided_gen or stored_hash ~= provided_hash then
  local revoked = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3)
  redis.call("SET", key, revoked, "PX", ttl)
  return {2}
end

local updated = string.sub(data, 1, 2) ..
  be32(generation + 1) ..
  string.sub(data, 7, 22) ..
  be64(now_unix) ..
  string.sub(data, 31, 38) ..
  next_hash ..
  string.sub(data, 71)

redis.call("SET", key, updated, "PX", ttl)
return {3, updated}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeScript = `
local data = redis.call("GET", KEYS[1])
if not data or #data < 2 then
  return 0
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  redis.call("DEL", KEYS[1])
  return 0
end
local revoked = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3)
redis.call("SET", KEYS[1], revoked, "PX", ttl)
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// Store is the Redis-backed session store. Session records expire with the
// refresh lifetime, so garbage collection is Redis TTL eviction; revoked
// records are kept (flagged) until then so replay of a torn-down session is
// distinguishable from an unknown one.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a [Store] using prefix as the Redis key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sa"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) floorKey(subjectID string) string {
	return s.prefix + ":g:" + subjectID
}

func (s *Store) floorPrefix() string {
	return s.prefix + ":g:"
}

// Save persists a session with the given absolute lifetime.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(sess.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get fetches a session by id. Missing or lifetime-expired sessions return
// redis.Nil; expired ones are deleted on sight.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrRecordCorrupt, err)
	}
	sess.SessionID = sessionID

	if time.Now().Unix() >= sess.ExpiresAt {
		if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil, redis.Nil
	}

	return sess, nil
}

// Rotate atomically advances the session generation when the presented
// generation and refresh hash both match. Exactly one concurrent caller
// succeeds; the rest get [ErrRotateMismatch] and the session is already
// revoked. Sessions below the subject floor surface as revoked.
func (s *Store) Rotate(
	ctx context.Context,
	sessionID string,
	presentedGeneration uint32,
	providedHash [32]byte,
	nextHash [32]byte,
) (*Session, error) {
	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		int64(presentedGeneration),
		providedHash[:],
		nextHash[:],
		time.Now().Unix(),
		s.floorPrefix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotation script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotation script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, errors.Join(redis.Nil, ErrRotateSessionNotFound)
	case rotateStatusExpired:
		return nil, errors.Join(redis.Nil, ErrRotateSessionExpired)
	case rotateStatusMismatch:
		return nil, ErrRotateMismatch
	case rotateStatusRevoked:
		return nil, ErrRotateSessionRevoked
	case rotateStatusCorrupt:
		return nil, ErrRecordCorrupt
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing rotated session payload", ErrRedisUnavailable)
		}
		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid rotated session payload", ErrRedisUnavailable)
		}
		sess, decErr := Decode(blob)
		if decErr != nil {
			return nil, errors.Join(ErrRecordCorrupt, decErr)
		}
		sess.SessionID = sessionID
		return sess, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotation script status %d", ErrRedisUnavailable, code)
	}
}

// Revoke flags a single session as revoked, preserving its TTL so later
// refresh attempts report revocation rather than not-found. Idempotent.
func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	if err := revokeLua.Run(ctx, s.redis, []string{s.key(sessionID)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAllForSubject advances the subject generation floor by one. O(1):
// no session enumeration; live sessions below the floor die on their next
// store-consulting operation. Returns the new floor.
//
// The floor key outlives the longest possible session by carrying twice the
// session lifetime as TTL; any session created before the bump has expired
// well before the floor forgets it.
func (s *Store) RevokeAllForSubject(ctx context.Context, subjectID string, sessionLifetime time.Duration) (uint64, error) {
	key := s.floorKey(subjectID)
	floor, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if sessionLifetime > 0 {
		if err := s.redis.Expire(ctx, key, 2*sessionLifetime).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return uint64(floor), nil
}

// SubjectFloor reads the current revocation floor for a subject. Missing
// keys mean no revocation has happened within the retention window.
func (s *Store) SubjectFloor(ctx context.Context, subjectID string) (uint64, error) {
	floor, err := s.redis.Get(ctx, s.floorKey(subjectID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if floor < 0 {
		return 0, nil
	}
	return uint64(floor), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
