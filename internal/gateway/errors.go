package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/solace-labs/wallet-messenger/internal/blobstore"
	"github.com/solace-labs/wallet-messenger/internal/identity"
	"github.com/solace-labs/wallet-messenger/internal/profile"
)

// apiError is the JSON error body every non-2xx response carries: one
// short, user-facing sentence.
type apiError struct {
	Error string `json:"error"`
}

// writeError maps a typed error from a component into an HTTP status and
// message, centralizing what would otherwise be an inline http.Error call
// at every handler.
func writeError(w http.ResponseWriter, err error) {
	status, msg := classify(err)
	writeErrorStatus(w, status, msg)
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiError{Error: msg}); err != nil {
		log.Printf("gateway: error response encode failed: %v", err)
	}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, identity.ErrInvalidIdentity), errors.Is(err, identity.ErrMalformedPubkey):
		return http.StatusBadRequest, "invalid identity"
	case errors.Is(err, ErrInvalidNonce), errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, profile.ErrInvalidNickname):
		return http.StatusBadRequest, "invalid nickname"
	case errors.Is(err, profile.ErrNicknameTaken):
		return http.StatusConflict, "nickname already claimed"
	case errors.Is(err, profile.ErrCooldownActive):
		return http.StatusTooManyRequests, "nickname change cooldown active"
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, blobstore.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, blobstore.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, blobstore.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "payload exceeds size cap"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate limit exceeded"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad request"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
