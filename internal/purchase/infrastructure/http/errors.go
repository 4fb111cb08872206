package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeInvalidRequestBody       = "invalid_request_body"
	codeMissingUserID            = "missing_user_id"
	codeInvalidNumbers           = "invalid_numbers"
	codeInvalidRaffle            = "invalid_raffle"
	codeRaffleNotFound           = "raffle_not_found"
	codeOrderNotFound            = "order_not_found"
	codeNumbersAlreadyReserved   = "numbers_already_reserved"
	codeNumbersUnavailable       = "numbers_unavailable"
	codeReservationInvalid       = "reservation_invalid_or_expired"
	codeTicketsAlreadySold       = "tickets_already_sold"
	codeStoreUnavailable         = "store_unavailable"
	codeInternalError            = "internal_error"
	statusAlreadyCommitted       = "already_committed"
	statusCommitted              = "committed"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Numbers []int  `json:"numbers,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorNumbers(w, status, code, msg, nil)
}

// writeErrorNumbers includes the affected ticket numbers so the buyer can
// deselect exactly the contested ones.
func writeErrorNumbers(w http.ResponseWriter, status int, code, msg string, numbers []int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Code: code, Numbers: numbers})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
