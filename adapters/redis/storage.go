package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finquest/core"

	"github.com/redis/go-redis/v9"
)

// ErrConflict is returned when an update keeps losing optimistic races.
var ErrConflict = errors.New("redis: too many concurrent updates")

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"FINQUEST_REDIS_ADDR"`
	Password     string        `json:"password" env:"FINQUEST_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"FINQUEST_REDIS_DB"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	MaxRetries   int           `json:"max_retries"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   10,
	}
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - user:{user_id}:state -> JSON blob of core.State
// - leaderboard:xp -> sorted set of user ids scored by total XP
type Store struct {
	client     *redis.Client
	maxRetries int
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewWithClient(client)
	if config.MaxRetries > 0 {
		s.maxRetries = config.MaxRetries
	}
	return s, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, maxRetries: DefaultConfig().MaxRetries}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

const leaderboardKey = "leaderboard:xp"

// userStateKey generates the Redis key for the user state blob
func userStateKey(userID core.UserID) string {
	return fmt.Sprintf("user:%s:state", userID)
}

// GetState retrieves the user state; unknown users get defaults.
func (s *Store) GetState(ctx context.Context, userID core.UserID) (core.State, error) {
	return s.load(ctx, s.client, userID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, userID core.UserID) (core.State, error) {
	data, err := c.Get(ctx, userStateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		st := core.NewState(userID)
		st.Updated = time.Now().UTC()
		return st, nil
	}
	if err != nil {
		return core.State{}, fmt.Errorf("failed to get state: %w", err)
	}
	var st core.State
	if err := json.Unmarshal(data, &st); err != nil {
		return core.State{}, fmt.Errorf("failed to decode state: %w", err)
	}
	st.UserID = userID
	return st.Normalize(), nil
}

// Update runs fn inside a WATCH/MULTI transaction on the user's state key and
// retries when another writer commits first.
func (s *Store) Update(ctx context.Context, userID core.UserID, fn func(core.State) (core.State, error)) (core.State, error) {
	key := userStateKey(userID)
	var result core.State
	var fnErr error

	txf := func(tx *redis.Tx) error {
		cur, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			fnErr = err
			return err
		}
		next.UserID = userID
		next = next.Normalize()
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(next.TotalXP), Member: string(userID)})
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		fnErr = nil
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if fnErr != nil {
			return core.State{}, fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return core.State{}, fmt.Errorf("failed to update state: %w", err)
	}
	return core.State{}, ErrConflict
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	User    core.UserID
	TotalXP int64
}

// TopN returns the n users with the most XP.
func (s *Store) TopN(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	out := make([]LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, LeaderboardEntry{User: core.UserID(member), TotalXP: int64(z.Score)})
	}
	return out, nil
}

// Users lists every user with a stored state.
func (s *Store) Users(ctx context.Context) ([]core.UserID, error) {
	var out []core.UserID
	iter := s.client.Scan(ctx, 0, "user:*:state", 100).Iterator()
	for iter.Next(ctx) {
		parts := redisKeyParts(iter.Val())
		if len(parts) == 3 && parts[2] == "state" {
			out = append(out, core.UserID(parts[1]))
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return out, nil
}

// redisKeyParts splits a Redis key by colon separator
func redisKeyParts(key string) []string {
	var parts []string
	current := ""
	for _, r := range key {
		if r == ':' {
			if current != "" {
				parts = append(parts, current)
				current = ""
			}
		} else {
			current += string(r)
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}
