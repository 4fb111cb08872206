package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmehra2102/Raffle-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Raffle-Reservation-System/pkg/logging"
)

// newTestClient connects to a local redis or skips, mirroring the
// ping-or-skip convention of the postgres integration tests.
func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping redis integration tests: %v", err)
	}

	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})
	return rdb
}

func TestStore_RoundTrip(t *testing.T) {
	rdb := newTestClient(t)
	store := NewStore(logging.New("test"), rdb)
	ctx := context.Background()

	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	claims := map[int]domain.Claim{
		10: {UserID: "user-a", CreatedAt: now},
		11: {UserID: "user-a", CreatedAt: now},
	}

	if err := store.SetMany(ctx, "raffle-rt", claims, domain.ReservationTTL); err != nil {
		t.Fatalf("set many: %v", err)
	}

	all, err := store.GetAll(ctx, "raffle-rt")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(all))
	}
	if all[10].UserID != "user-a" || !all[10].CreatedAt.Equal(now) {
		t.Fatalf("unexpected claim for 10: %+v", all[10])
	}

	got, err := store.GetMany(ctx, "raffle-rt", []int{11, 99, 10})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if got[0] == nil || got[0].UserID != "user-a" {
		t.Fatalf("expected claim for 11, got %+v", got[0])
	}
	if got[1] != nil {
		t.Fatalf("expected nil for unclaimed 99, got %+v", got[1])
	}
	if got[2] == nil {
		t.Fatalf("expected claim for 10")
	}

	if err := store.DeleteMany(ctx, "raffle-rt", []int{10, 99}); err != nil {
		t.Fatalf("delete many: %v", err)
	}
	all, err = store.GetAll(ctx, "raffle-rt")
	if err != nil {
		t.Fatalf("get all after delete: %v", err)
	}
	if _, held := all[10]; held {
		t.Fatalf("expected 10 deleted")
	}
	if _, held := all[11]; !held {
		t.Fatalf("expected 11 untouched")
	}
}

func TestStore_GroupTTL(t *testing.T) {
	rdb := newTestClient(t)
	store := NewStore(logging.New("test"), rdb)
	ctx := context.Background()

	claims := map[int]domain.Claim{7: {UserID: "user-a", CreatedAt: time.Now().UTC()}}
	if err := store.SetMany(ctx, "raffle-ttl", claims, domain.ReservationTTL); err != nil {
		t.Fatalf("set many: %v", err)
	}

	ttl, err := rdb.TTL(ctx, "raffle:raffle-ttl:reservations").Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > domain.ReservationTTL {
		t.Fatalf("expected key TTL in (0, %v], got %v", domain.ReservationTTL, ttl)
	}

	// A sub-second TTL expires the whole group; nothing survives the key.
	if err := store.SetMany(ctx, "raffle-gone", claims, 50*time.Millisecond); err != nil {
		t.Fatalf("set many: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	all, err := store.GetAll(ctx, "raffle-gone")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected expired group to be empty, got %d claims", len(all))
	}
	got, err := store.GetMany(ctx, "raffle-gone", []int{7})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if got[0] != nil {
		t.Fatalf("expected expired claim unreadable, got %+v", got[0])
	}
}

func TestStore_UnavailableWrapsTypedError(t *testing.T) {
	// Point at a closed port; every operation must surface ErrStoreUnavailable.
	rdb := goredis.NewClient(&goredis.Options{Addr: "localhost:1", DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewStore(logging.New("test"), rdb)
	ctx := context.Background()

	if _, err := store.GetAll(ctx, "raffle-x"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("GetAll: expected ErrStoreUnavailable, got %v", err)
	}
	claims := map[int]domain.Claim{1: {UserID: "u"}}
	if err := store.SetMany(ctx, "raffle-x", claims, time.Minute); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("SetMany: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.GetMany(ctx, "raffle-x", []int{1}); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("GetMany: expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.DeleteMany(ctx, "raffle-x", []int{1}); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("DeleteMany: expected ErrStoreUnavailable, got %v", err)
	}
}
