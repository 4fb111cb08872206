package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/Raffle-Reservation-System/internal/reservation/domain"
)

// Store keeps claims in one redis hash per raffle: field is the ticket
// number, value the JSON claim record. The TTL sits on the hash key, so
// expiry is per raffle group, not per number.
type Store struct {
	log *slog.Logger
	rdb *redis.Client
}

func NewStore(log *slog.Logger, rdb *redis.Client) *Store {
	return &Store{log: log, rdb: rdb}
}

func key(raffleID string) string {
	return "raffle:" + raffleID + ":reservations"
}

func (s *Store) GetAll(ctx context.Context, raffleID string) (map[int]domain.Claim, error) {
	fields, err := s.rdb.HGetAll(ctx, key(raffleID)).Result()
	if err != nil {
		return nil, unavailable("hgetall", err)
	}

	claims := make(map[int]domain.Claim, len(fields))
	for field, raw := range fields {
		number, err := strconv.Atoi(field)
		if err != nil {
			s.log.Error("non-numeric claim field", "raffle_id", raffleID, "field", field)
			continue
		}
		var claim domain.Claim
		if err := json.Unmarshal([]byte(raw), &claim); err != nil {
			// A malformed record still blocks its number; an empty claim
			// keeps it reserved rather than handing it out twice.
			s.log.Error("corrupt claim entry", "raffle_id", raffleID, "field", field, "err", err)
		}
		claims[number] = claim
	}
	return claims, nil
}

func (s *Store) SetMany(ctx context.Context, raffleID string, claims map[int]domain.Claim, ttl time.Duration) error {
	if len(claims) == 0 {
		return nil
	}

	fields := make(map[string]string, len(claims))
	for number, claim := range claims {
		raw, err := json.Marshal(claim)
		if err != nil {
			return fmt.Errorf("encode claim for %d: %w", number, err)
		}
		fields[strconv.Itoa(number)] = string(raw)
	}

	k := key(raffleID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, fields)
		pipe.Expire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return unavailable("hset", err)
	}
	return nil
}

func (s *Store) GetMany(ctx context.Context, raffleID string, numbers []int) ([]*domain.Claim, error) {
	if len(numbers) == 0 {
		return nil, nil
	}

	fields := make([]string, len(numbers))
	for i, n := range numbers {
		fields[i] = strconv.Itoa(n)
	}

	values, err := s.rdb.HMGet(ctx, key(raffleID), fields...).Result()
	if err != nil {
		return nil, unavailable("hmget", err)
	}

	out := make([]*domain.Claim, len(numbers))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // absent
		}
		var claim domain.Claim
		if err := json.Unmarshal([]byte(raw), &claim); err != nil {
			return nil, fmt.Errorf("decode claim for %d: %w", numbers[i], err)
		}
		out[i] = &claim
	}
	return out, nil
}

func (s *Store) DeleteMany(ctx context.Context, raffleID string, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}

	fields := make([]string, len(numbers))
	for i, n := range numbers {
		fields[i] = strconv.Itoa(n)
	}

	if err := s.rdb.HDel(ctx, key(raffleID), fields...).Err(); err != nil {
		return unavailable("hdel", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
