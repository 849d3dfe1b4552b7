// Package redisstore keeps run snapshots in Redis so several operators can
// share run state. Each run is a hash (seq, snapshot) and a sorted set
// indexes run ids by creation time.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/linkctl/internal/ir"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "linkctl:"

// saveScript replaces a snapshot only when its seq is newer.
// KEYS[1] = run hash key
// KEYS[2] = run index key
// ARGV[1] = seq
// ARGV[2] = snapshot JSON
// ARGV[3] = created-at score (unix millis)
// ARGV[4] = run id
var saveScript = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "seq")
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
    return 0
end
redis.call("HSET", KEYS[1], "seq", ARGV[1], "snapshot", ARGV[2])
redis.call("ZADD", KEYS[2], "NX", ARGV[3], ARGV[4])
return 1
`)

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store is a Redis-backed run store.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New connects to Redis.
func New(opts Options) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewWithClient(rdb, opts.Prefix)
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) runKey(runID string) string { return s.prefix + "run:" + runID }
func (s *Store) indexKey() string          { return s.prefix + "runs" }

// Load implements the run store contract.
func (s *Store) Load(ctx context.Context, runID string) (*ir.RunState, error) {
	data, err := s.client.HGet(ctx, s.runKey(runID), "snapshot").Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load run %s: %w", runID, ir.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return decode(runID, data)
}

// Save atomically replaces the snapshot when state.Seq is newer than the
// stored one, otherwise it returns ir.ErrStaleSnapshot.
func (s *Store) Save(ctx context.Context, state *ir.RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.RunID, err)
	}

	keys := []string{s.runKey(state.RunID), s.indexKey()}
	res, err := saveScript.Run(ctx, s.client, keys, state.Seq, data, state.CreatedAt.UnixMilli(), state.RunID).Int()
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.RunID, err)
	}
	if res == 0 {
		return fmt.Errorf("save run %s at seq %d: %w", state.RunID, state.Seq, ir.ErrStaleSnapshot)
	}
	return nil
}

// List summarizes every indexed run, oldest first.
func (s *Store) List(ctx context.Context) ([]ir.RunSummary, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, s.runKey(id), "snapshot")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]ir.RunSummary, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue // index entry without snapshot (expired or deleted by hand)
		}
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		state, err := decode(ids[i], data)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, ir.Summarize(state))
	}
	return out, nil
}

func decode(runID, data string) (*ir.RunState, error) {
	var state ir.RunState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &state, nil
}
