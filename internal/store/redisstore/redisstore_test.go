package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/linkctl/internal/ir"
)

// newTestStore connects to LINKCTL_TEST_REDIS_ADDR (default localhost:6379)
// under a unique prefix. Skips when Redis is not reachable.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("LINKCTL_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 200 * time.Millisecond})
	s := NewWithClient(rdb, "linkctl-test:"+uuid.NewString()+":")

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		rdb.Close()
		t.Skip("Skipping Redis integration test: redis not available")
	}
	t.Cleanup(func() {
		keys, _ := rdb.Keys(ctx, s.prefix+"*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
		s.Close()
	})
	return s
}

func testRun(id string, seq int64, created time.Time) *ir.RunState {
	return &ir.RunState{
		RunID: id,
		Entries: []ir.Entry{{
			Descriptor: ir.LinkDescriptor{ID: "a.set-b", Contract: "a", Function: "set-b", Args: []ir.Arg{ir.RefArg("b")}},
			Status:     ir.Pending(),
		}},
		Seq:       seq,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestRedisStore_Integration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.Load(ctx, "r1"); !errors.Is(err, ir.ErrRunNotFound) {
		t.Fatalf("Load() on empty store error = %v, want ErrRunNotFound", err)
	}

	if err := s.Save(ctx, testRun("r1", 1, base.Add(time.Minute))); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Save(ctx, testRun("r0", 1, base)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	newer := testRun("r1", 2, base.Add(time.Minute))
	newer.Entries[0].Status = ir.LinkStatus{Kind: ir.StatusConfirmed, TxID: "0x1"}
	if err := s.Save(ctx, newer); err != nil {
		t.Fatalf("Save(newer) failed: %v", err)
	}
	if err := s.Save(ctx, testRun("r1", 2, base)); !errors.Is(err, ir.ErrStaleSnapshot) {
		t.Fatalf("Save(stale) error = %v, want ErrStaleSnapshot", err)
	}

	got, err := s.Load(ctx, "r1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.Entries[0].Status.Kind != ir.StatusConfirmed {
		t.Errorf("status = %v, want confirmed", got.Entries[0].Status)
	}

	runs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "r0" || runs[1].RunID != "r1" {
		t.Errorf("List() = %+v", runs)
	}
}
