package application

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dmehra2102/Raffle-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Raffle-Reservation-System/pkg/clock"
)

// Manager owns the claim protocol: conflict checking, grouped TTL writes,
// ownership proof and release.
//
// Reserve is check-then-write without a lock. Two concurrent calls for
// overlapping numbers can both pass the check inside the same instant, in
// which case the last write wins the overlap. The durable commit step is
// the final arbiter before any number is sold, so this stays an accepted
// trade-off rather than a distributed lock.
type Manager struct {
	log   *slog.Logger
	store ClaimStore
	clock clock.Clock
	ttl   time.Duration
}

func NewManager(log *slog.Logger, store ClaimStore, clk clock.Clock, opts ...ManagerOption) *Manager {
	m := &Manager{
		log:   log,
		store: store,
		clock: clk,
		ttl:   domain.ReservationTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type ManagerOption func(*Manager)

// WithTTL overrides the claim lifetime. Only tests should shorten it.
func WithTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// TTL reports the claim lifetime the manager writes with.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Reserve acquires exclusive claims on all requested numbers or none of
// them. On contention it fails with NumbersAlreadyReservedError listing
// the exact overlap; no partial write is made.
func (m *Manager) Reserve(ctx context.Context, raffleID string, numbers []int, userID string) error {
	numbers, err := normalizeNumbers(numbers)
	if err != nil {
		return err
	}

	current, err := m.store.GetAll(ctx, raffleID)
	if err != nil {
		return err
	}

	var conflicting []int
	for _, n := range numbers {
		if _, held := current[n]; held {
			conflicting = append(conflicting, n)
		}
	}
	if len(conflicting) > 0 {
		return &domain.NumbersAlreadyReservedError{Conflicting: conflicting}
	}

	now := m.clock.Now()
	claims := make(map[int]domain.Claim, len(numbers))
	for _, n := range numbers {
		claims[n] = domain.Claim{UserID: userID, CreatedAt: now}
	}

	if err := m.store.SetMany(ctx, raffleID, claims, m.ttl); err != nil {
		return err
	}

	m.log.Info("numbers reserved", "raffle_id", raffleID, "user_id", userID, "count", len(numbers))
	return nil
}

// CheckOwnership reports, per requested number and in input order, whether
// a live claim exists and whether it belongs to the caller.
func (m *Manager) CheckOwnership(ctx context.Context, raffleID string, numbers []int, userID string) ([]domain.Ownership, error) {
	if len(numbers) == 0 {
		return nil, domain.ErrNoNumbers
	}

	claims, err := m.store.GetMany(ctx, raffleID, numbers)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Ownership, len(numbers))
	for i, n := range numbers {
		o := domain.Ownership{Number: n}
		if c := claims[i]; c != nil {
			o.IsReserved = true
			o.OwnedByCaller = c.UserID == userID
		}
		out[i] = o
	}
	return out, nil
}

// Release removes claims for the given numbers. It is idempotent: numbers
// without a live claim are silently skipped.
func (m *Manager) Release(ctx context.Context, raffleID string, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}
	if err := m.store.DeleteMany(ctx, raffleID, numbers); err != nil {
		return err
	}
	m.log.Info("claims released", "raffle_id", raffleID, "count", len(numbers))
	return nil
}

// normalizeNumbers validates, dedupes and sorts the request.
func normalizeNumbers(numbers []int) ([]int, error) {
	if len(numbers) == 0 {
		return nil, domain.ErrNoNumbers
	}
	seen := make(map[int]struct{}, len(numbers))
	out := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if n <= 0 {
			return nil, domain.ErrInvalidNumbers
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}
