package presence

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastSeenTTL = 30 * 24 * time.Hour

// LastSeenStore holds the frozen last-seen timestamps of offline users.
type LastSeenStore interface {
	Set(userID int, at time.Time)
	Get(userID int) time.Time
}

// RedisLastSeen keeps last-seen values in Redis so they survive restarts and
// stay readable by other services.
type RedisLastSeen struct {
	client *redis.Client
}

// NewRedisLastSeen connects to Redis with a URL like redis://host:6379/0.
func NewRedisLastSeen(ctx context.Context, redisURL string) (*RedisLastSeen, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisLastSeen{client: client}, nil
}

func lastSeenKey(userID int) string {
	return "dm:last_seen:" + strconv.Itoa(userID)
}

// Set stores the timestamp. Failures are logged, not surfaced; presence
// transitions must not fail on cache errors.
func (s *RedisLastSeen) Set(userID int, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, lastSeenKey(userID), at.UTC().Format(time.RFC3339Nano), lastSeenTTL).Err(); err != nil {
		log.Printf("last seen set failed user=%d: %v", userID, err)
	}
}

// Get loads the timestamp, returning the zero time on miss or error.
func (s *RedisLastSeen) Get(userID int) time.Time {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	val, err := s.client.Get(ctx, lastSeenKey(userID)).Result()
	if err != nil {
		return time.Time{}
	}
	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}
	}
	return at
}

// Close releases the Redis client.
func (s *RedisLastSeen) Close() error {
	return s.client.Close()
}

// MemoryLastSeen is the in-process fallback used when REDIS_URL is unset.
type MemoryLastSeen struct {
	mu   sync.RWMutex
	seen map[int]time.Time
}

// NewMemoryLastSeen constructs an empty MemoryLastSeen.
func NewMemoryLastSeen() *MemoryLastSeen {
	return &MemoryLastSeen{seen: make(map[int]time.Time)}
}

func (s *MemoryLastSeen) Set(userID int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[userID] = at
}

func (s *MemoryLastSeen) Get(userID int) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seen[userID]
}

var (
	_ LastSeenStore = (*RedisLastSeen)(nil)
	_ LastSeenStore = (*MemoryLastSeen)(nil)
)
