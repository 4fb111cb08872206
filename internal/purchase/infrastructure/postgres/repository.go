package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Raffle-Reservation-System/internal/purchase/domain"
	"github.com/dmehra2102/Raffle-Reservation-System/pkg/tracing"
)

// Repository is the durable record collaborator: raffles, ticket sale
// state and payment orders, all in postgres.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) CreateRaffle(ctx context.Context, raffle domain.Raffle) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO raffles (id, name, unit_price_cents, total_numbers, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		raffle.ID, raffle.Name, raffle.UnitPriceCents, raffle.TotalNumbers, raffle.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert raffle: %w", err)
	}

	batch := &pgx.Batch{}
	for n := 1; n <= raffle.TotalNumbers; n++ {
		batch.Queue(`INSERT INTO tickets (raffle_id, number, status) VALUES ($1,$2,'available')`,
			raffle.ID, n)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repository) Raffle(ctx context.Context, raffleID string) (domain.Raffle, error) {
	var raffle domain.Raffle
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, unit_price_cents, total_numbers, created_at FROM raffles WHERE id=$1`,
		raffleID).
		Scan(&raffle.ID, &raffle.Name, &raffle.UnitPriceCents, &raffle.TotalNumbers, &raffle.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Raffle{}, domain.ErrRaffleNotFound
		}
		return domain.Raffle{}, fmt.Errorf("get raffle: %w", err)
	}
	return raffle, nil
}

func (r *Repository) TicketStatuses(ctx context.Context, raffleID string, numbers []int) ([]domain.TicketState, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT number, status FROM tickets WHERE raffle_id=$1 AND number = ANY($2)`,
		raffleID, numbers)
	if err != nil {
		return nil, fmt.Errorf("ticket statuses: %w", err)
	}
	defer rows.Close()

	found := make(map[int]domain.TicketStatus, len(numbers))
	for rows.Next() {
		var number int
		var status domain.TicketStatus
		if err := rows.Scan(&number, &status); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		found[number] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ticket statuses: %w", err)
	}

	out := make([]domain.TicketState, len(numbers))
	for i, n := range numbers {
		status, ok := found[n]
		if !ok {
			status = domain.TicketMissing
		}
		out[i] = domain.TicketState{Number: n, Status: status}
	}
	return out, nil
}

func (r *Repository) CreatePaymentOrder(ctx context.Context, order domain.PaymentOrder) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payments
		(id, raffle_id, user_id, numbers, amount_cents, status, payment_url, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		order.ID, order.RaffleID, order.UserID, order.Numbers, order.AmountCents,
		order.Status, order.PaymentURL, order.ExpiresAt, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment order: %w", err)
	}
	return nil
}

func (r *Repository) PaymentOrder(ctx context.Context, paymentID string) (domain.PaymentOrder, error) {
	var order domain.PaymentOrder
	err := r.pool.QueryRow(ctx, `SELECT id, raffle_id, user_id, numbers, amount_cents, status,
		payment_url, expires_at, created_at, updated_at FROM payments WHERE id=$1`,
		paymentID).
		Scan(&order.ID, &order.RaffleID, &order.UserID, &order.Numbers, &order.AmountCents,
			&order.Status, &order.PaymentURL, &order.ExpiresAt, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentOrder{}, domain.ErrOrderNotFound
		}
		return domain.PaymentOrder{}, fmt.Errorf("get payment order: %w", err)
	}
	return order, nil
}

// MarkPaid commits the sale in one transaction. The ticket update is
// conditioned on each row not being paid yet, so the first committing
// payment wins and any later one fails before money-side state changes.
func (r *Repository) MarkPaid(ctx context.Context, order domain.PaymentOrder, eventType string, payload []byte) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE payments SET status='paid', updated_at=now()
		WHERE id=$1 AND status='created'`, order.ID)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	if ct.RowsAffected() == 0 {
		var status domain.OrderStatus
		if err := tx.QueryRow(ctx, `SELECT status FROM payments WHERE id=$1`, order.ID).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrOrderNotFound
			}
			return fmt.Errorf("check payment status: %w", err)
		}
		if status == domain.OrderPaid {
			return domain.ErrAlreadyCommitted
		}
		return domain.ErrOrderNotOpen
	}

	ct, err = tx.Exec(ctx, `UPDATE tickets SET status='paid', payment_id=$3
		WHERE raffle_id=$1 AND number = ANY($2) AND status <> 'paid'`,
		order.RaffleID, order.Numbers, order.ID)
	if err != nil {
		return fmt.Errorf("mark tickets paid: %w", err)
	}
	if int(ct.RowsAffected()) != len(order.Numbers) {
		// Another payment already owns part of the set; roll everything back.
		return domain.ErrTicketsAlreadySold
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('raffle', $1, $2, $3, $4, 'pending')`,
		order.RaffleID, eventType, payload, tracing.Traceparent(ctx))
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repository) MarkOrderStatus(ctx context.Context, paymentID string, status domain.OrderStatus) error {
	ct, err := r.pool.Exec(ctx, `UPDATE payments SET status=$2, updated_at=now()
		WHERE id=$1 AND status='created'`, paymentID, status)
	if err != nil {
		return fmt.Errorf("mark order %s: %w", status, err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var current domain.OrderStatus
	if err := r.pool.QueryRow(ctx, `SELECT status FROM payments WHERE id=$1`, paymentID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("check payment status: %w", err)
	}
	if current == status {
		return nil // already there, keep the call idempotent
	}
	if current == domain.OrderPaid {
		return domain.ErrAlreadyCommitted
	}
	return domain.ErrOrderNotOpen
}
