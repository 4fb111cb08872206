package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Raffle-Reservation-System/internal/purchase/application"
	"github.com/dmehra2102/Raffle-Reservation-System/internal/purchase/domain"
	reservation "github.com/dmehra2102/Raffle-Reservation-System/internal/reservation/domain"
)

const userIDHeader = "X-User-ID"

// PurchaseService is the slice of the orchestrator the transport needs.
type PurchaseService interface {
	CreateRaffle(ctx context.Context, name string, unitPriceCents int64, totalNumbers int) (domain.Raffle, error)
	ReserveNumbers(ctx context.Context, raffleID string, numbers []int, userID string) (application.ReserveResult, error)
	CancelReservation(ctx context.Context, raffleID string, numbers []int, userID string) error
	CreateOrder(ctx context.Context, raffleID string, numbers []int, userID string) (domain.PaymentOrder, error)
	ConfirmPayment(ctx context.Context, paymentID string) (application.ConfirmResult, error)
	CancelOrder(ctx context.Context, paymentID, userID string) error
}

type Handler struct {
	log     *slog.Logger
	service PurchaseService
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service PurchaseService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("purchase-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/raffles", h.createRaffle)
	r.Post("/raffles/{raffleID}/reservations", h.reserveNumbers)
	r.Delete("/raffles/{raffleID}/reservations", h.cancelReservation)
	r.Post("/raffles/{raffleID}/orders", h.createOrder)
	r.Post("/payments/{paymentID}/confirm", h.confirmPayment)
	r.Post("/payments/{paymentID}/cancel", h.cancelOrder)

	return r
}

type createRaffleReq struct {
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalNumbers   int    `json:"total_numbers"`
}

func (h *Handler) createRaffle(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateRaffle")
	defer span.End()

	var req createRaffleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid body")
		return
	}

	raffle, err := h.service.CreateRaffle(ctx, req.Name, req.UnitPriceCents, req.TotalNumbers)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"raffle_id":        raffle.ID,
		"name":             raffle.Name,
		"unit_price_cents": raffle.UnitPriceCents,
		"total_numbers":    raffle.TotalNumbers,
	})
}

type numbersReq struct {
	Numbers []int `json:"numbers"`
}

func (h *Handler) reserveNumbers(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReserveNumbers")
	defer span.End()

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, codeMissingUserID, "verified user id required")
		return
	}

	var req numbersReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid body")
		return
	}

	result, err := h.service.ReserveNumbers(ctx, chi.URLParam(r, "raffleID"), req.Numbers, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":    result.State,
		"numbers":  result.Numbers,
		"deadline": result.Deadline.Format(time.RFC3339),
	})
}

func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelReservation")
	defer span.End()

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, codeMissingUserID, "verified user id required")
		return
	}

	var req numbersReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid body")
		return
	}

	if err := h.service.CancelReservation(ctx, chi.URLParam(r, "raffleID"), req.Numbers, userID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, codeMissingUserID, "verified user id required")
		return
	}

	var req numbersReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid body")
		return
	}

	order, err := h.service.CreateOrder(ctx, chi.URLParam(r, "raffleID"), req.Numbers, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id":     order.ID,
		"payment_url":  order.PaymentURL,
		"amount_cents": order.AmountCents,
		"expires_at":   order.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmPayment")
	defer span.End()

	result, err := h.service.ConfirmPayment(ctx, chi.URLParam(r, "paymentID"))
	if err != nil {
		// A duplicate confirmation is a success for the caller, not an
		// error storm.
		if errors.Is(err, domain.ErrAlreadyCommitted) {
			writeJSON(w, http.StatusOK, map[string]any{"status": statusAlreadyCommitted})
			return
		}
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   statusCommitted,
		"state":    result.State,
		"order_id": result.Order.ID,
	})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, codeMissingUserID, "verified user id required")
		return
	}

	if err := h.service.CancelOrder(ctx, chi.URLParam(r, "paymentID"), userID); err != nil {
		if errors.Is(err, domain.ErrAlreadyCommitted) {
			writeJSON(w, http.StatusOK, map[string]any{"status": statusAlreadyCommitted})
			return
		}
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError keeps the error taxonomy intact end to end: contention
// and infra failure map to different statuses and codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var reserved *reservation.NumbersAlreadyReservedError
	var unavailable *domain.NumbersUnavailableError

	switch {
	case errors.As(err, &reserved):
		writeErrorNumbers(w, http.StatusConflict, codeNumbersAlreadyReserved, err.Error(), reserved.Conflicting)
	case errors.As(err, &unavailable):
		writeErrorNumbers(w, http.StatusConflict, codeNumbersUnavailable, err.Error(), unavailable.Numbers)
	case errors.Is(err, reservation.ErrReservationInvalidOrExpired):
		writeError(w, http.StatusConflict, codeReservationInvalid, err.Error())
	case errors.Is(err, domain.ErrTicketsAlreadySold):
		writeError(w, http.StatusConflict, codeTicketsAlreadySold, err.Error())
	case errors.Is(err, reservation.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeStoreUnavailable, "reservation store unavailable, try again later")
	case errors.Is(err, domain.ErrRaffleNotFound):
		writeError(w, http.StatusNotFound, codeRaffleNotFound, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case errors.Is(err, reservation.ErrNoNumbers), errors.Is(err, reservation.ErrInvalidNumbers):
		writeError(w, http.StatusBadRequest, codeInvalidNumbers, err.Error())
	case errors.Is(err, domain.ErrInvalidRaffle):
		writeError(w, http.StatusBadRequest, codeInvalidRaffle, err.Error())
	default:
		h.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
