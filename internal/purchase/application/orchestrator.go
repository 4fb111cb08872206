package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/Raffle-Reservation-System/internal/purchase/domain"
	reservation "github.com/dmehra2102/Raffle-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Raffle-Reservation-System/pkg/clock"
)

const EventTicketsSold = "TicketsSold"

// Orchestrator sequences a purchase attempt across the durable records
// and the reservation store: availability check, claim acquisition,
// payment order, and the conditional commit that finally marks numbers
// sold. Contention is surfaced immediately, never retried.
type Orchestrator struct {
	log          *slog.Logger
	tickets      TicketRepository
	reservations Reservations
	clock        clock.Clock
	ttl          time.Duration
	paymentBase  string
}

func NewOrchestrator(log *slog.Logger, tickets TicketRepository, reservations Reservations, clk clock.Clock, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		log:          log,
		tickets:      tickets,
		reservations: reservations,
		clock:        clk,
		ttl:          reservation.ReservationTTL,
		paymentBase:  "https://pay.example.com",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type OrchestratorOption func(*Orchestrator)

// WithDeadline overrides the attempt deadline. It must match the claim
// TTL the manager writes with; only tests should change it.
func WithDeadline(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithPaymentBaseURL sets the provider checkout URL prefix.
func WithPaymentBaseURL(base string) OrchestratorOption {
	return func(o *Orchestrator) {
		if base != "" {
			o.paymentBase = base
		}
	}
}

type ReserveResult struct {
	State    domain.AttemptState
	Numbers  []int
	Deadline time.Time
}

// ReserveNumbers checks durable availability and then acquires claims on
// every requested number. Any number already past available rejects the
// whole attempt, even when no live claim exists for it.
func (o *Orchestrator) ReserveNumbers(ctx context.Context, raffleID string, numbers []int, userID string) (ReserveResult, error) {
	numbers, err := normalizeNumbers(numbers)
	if err != nil {
		return ReserveResult{State: domain.AttemptRejected}, err
	}

	states, err := o.tickets.TicketStatuses(ctx, raffleID, numbers)
	if err != nil {
		return ReserveResult{State: domain.AttemptChecking}, err
	}

	var unavailable []int
	for _, st := range states {
		if st.Status != domain.TicketAvailable {
			unavailable = append(unavailable, st.Number)
		}
	}
	if len(unavailable) > 0 {
		return ReserveResult{State: domain.AttemptRejected}, &domain.NumbersUnavailableError{Numbers: unavailable}
	}

	if err := o.reservations.Reserve(ctx, raffleID, numbers, userID); err != nil {
		return ReserveResult{State: domain.AttemptRejected}, err
	}

	return ReserveResult{
		State:    domain.AttemptReserved,
		Numbers:  numbers,
		Deadline: o.clock.Now().Add(o.ttl),
	}, nil
}

// CreateOrder opens a payment order for numbers the caller holds live
// claims on. The amount is computed from the raffle's unit price, never
// taken from the client.
func (o *Orchestrator) CreateOrder(ctx context.Context, raffleID string, numbers []int, userID string) (domain.PaymentOrder, error) {
	// Dedupe before pricing: a repeated number must never inflate the
	// amount or leave the order uncommittable against the ticket rows.
	numbers, err := normalizeNumbers(numbers)
	if err != nil {
		return domain.PaymentOrder{}, err
	}

	if err := o.requireOwnership(ctx, raffleID, numbers, userID); err != nil {
		return domain.PaymentOrder{}, err
	}

	raffle, err := o.tickets.Raffle(ctx, raffleID)
	if err != nil {
		return domain.PaymentOrder{}, err
	}

	now := o.clock.Now()
	order := domain.PaymentOrder{
		ID:          uuid.NewString(),
		RaffleID:    raffleID,
		UserID:      userID,
		Numbers:     numbers,
		AmountCents: raffle.UnitPriceCents * int64(len(numbers)),
		Status:      domain.OrderCreated,
		ExpiresAt:   now.Add(o.ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	order.PaymentURL = o.paymentBase + "/pay/" + order.ID

	if err := o.tickets.CreatePaymentOrder(ctx, order); err != nil {
		return domain.PaymentOrder{}, err
	}

	o.log.Info("payment order created",
		"payment_id", order.ID, "raffle_id", raffleID, "user_id", userID, "amount_cents", order.AmountCents)
	return order, nil
}

type ConfirmResult struct {
	State domain.AttemptState
	Order domain.PaymentOrder
}

// ConfirmPayment commits a confirmed payment: it re-proves claim
// ownership, conditionally marks the tickets paid together with the
// outbox event, and releases the claims. A confirmation for an already
// paid order returns ErrAlreadyCommitted, which callers treat as no-op
// success.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, paymentID string) (ConfirmResult, error) {
	order, err := o.tickets.PaymentOrder(ctx, paymentID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if order.Status == domain.OrderPaid {
		return ConfirmResult{State: domain.AttemptCommitted, Order: order}, domain.ErrAlreadyCommitted
	}
	if order.Status != domain.OrderCreated {
		return ConfirmResult{State: stateFor(order.Status), Order: order}, reservation.ErrReservationInvalidOrExpired
	}

	if err := o.requireOwnership(ctx, order.RaffleID, order.Numbers, order.UserID); err != nil {
		if errors.Is(err, reservation.ErrReservationInvalidOrExpired) {
			// The claims lapsed before confirmation; the attempt is dead
			// and no charge may be finalized.
			if markErr := o.tickets.MarkOrderStatus(ctx, paymentID, domain.OrderExpired); markErr != nil {
				o.log.Error("mark order expired failed", "payment_id", paymentID, "err", markErr)
			}
			return ConfirmResult{State: domain.AttemptExpired, Order: order}, err
		}
		return ConfirmResult{}, err
	}

	event := domain.TicketsSold{
		PaymentID:   order.ID,
		RaffleID:    order.RaffleID,
		UserID:      order.UserID,
		Numbers:     order.Numbers,
		AmountCents: order.AmountCents,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return ConfirmResult{}, err
	}

	if err := o.tickets.MarkPaid(ctx, order, EventTicketsSold, payload); err != nil {
		return ConfirmResult{}, err
	}

	// Claims self-expire via the store TTL, so a failed cleanup here must
	// not turn a committed sale into an error.
	if err := o.reservations.Release(ctx, order.RaffleID, order.Numbers); err != nil {
		o.log.Error("release after commit failed", "payment_id", paymentID, "err", err)
	}

	order.Status = domain.OrderPaid
	o.log.Info("payment committed", "payment_id", paymentID, "raffle_id", order.RaffleID, "numbers", order.Numbers)
	return ConfirmResult{State: domain.AttemptCommitted, Order: order}, nil
}

// CancelReservation releases the caller's live claims on the given
// numbers. Claims held by other users are left alone.
func (o *Orchestrator) CancelReservation(ctx context.Context, raffleID string, numbers []int, userID string) error {
	ownership, err := o.reservations.CheckOwnership(ctx, raffleID, numbers, userID)
	if err != nil {
		return err
	}

	var owned []int
	for _, own := range ownership {
		if own.IsReserved && own.OwnedByCaller {
			owned = append(owned, own.Number)
		}
	}
	if len(owned) == 0 {
		return nil
	}
	return o.reservations.Release(ctx, raffleID, owned)
}

// CancelOrder abandons an open payment order and frees its claims.
func (o *Orchestrator) CancelOrder(ctx context.Context, paymentID, userID string) error {
	order, err := o.tickets.PaymentOrder(ctx, paymentID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return domain.ErrOrderNotFound
	}
	if order.Status == domain.OrderPaid {
		return domain.ErrAlreadyCommitted
	}

	if order.Status == domain.OrderCreated {
		if err := o.tickets.MarkOrderStatus(ctx, paymentID, domain.OrderCancelled); err != nil {
			return err
		}
	}
	return o.CancelReservation(ctx, order.RaffleID, order.Numbers, userID)
}

// CreateRaffle registers a raffle with every number available for sale.
func (o *Orchestrator) CreateRaffle(ctx context.Context, name string, unitPriceCents int64, totalNumbers int) (domain.Raffle, error) {
	if name == "" || unitPriceCents <= 0 || totalNumbers <= 0 {
		return domain.Raffle{}, domain.ErrInvalidRaffle
	}

	raffle := domain.NewRaffle(uuid.NewString(), name, unitPriceCents, totalNumbers, o.clock.Now())
	if err := o.tickets.CreateRaffle(ctx, raffle); err != nil {
		return domain.Raffle{}, err
	}

	o.log.Info("raffle created", "raffle_id", raffle.ID, "numbers", totalNumbers)
	return raffle, nil
}

// requireOwnership proves every number has a live claim held by userID.
func (o *Orchestrator) requireOwnership(ctx context.Context, raffleID string, numbers []int, userID string) error {
	ownership, err := o.reservations.CheckOwnership(ctx, raffleID, numbers, userID)
	if err != nil {
		return err
	}
	for _, own := range ownership {
		if !own.IsReserved || !own.OwnedByCaller {
			return reservation.ErrReservationInvalidOrExpired
		}
	}
	return nil
}

// normalizeNumbers validates, dedupes and sorts a client-supplied set.
func normalizeNumbers(numbers []int) ([]int, error) {
	if len(numbers) == 0 {
		return nil, reservation.ErrNoNumbers
	}
	seen := make(map[int]struct{}, len(numbers))
	out := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if n <= 0 {
			return nil, reservation.ErrInvalidNumbers
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

func stateFor(status domain.OrderStatus) domain.AttemptState {
	switch status {
	case domain.OrderPaid:
		return domain.AttemptCommitted
	case domain.OrderExpired:
		return domain.AttemptExpired
	case domain.OrderCancelled:
		return domain.AttemptCancelled
	default:
		return domain.AttemptOrderCreated
	}
}
