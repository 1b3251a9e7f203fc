// Package json writes the HTTP JSON bodies of the handshake and health routes.
package json

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hilthontt/interchange/internal/domain"
)

// Error codes, shared in spirit with the websocket error frame codes.
const (
	CodeMissingIdentity = "MISSING_IDENTITY"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeRateLimited     = "RATE_LIMITED"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func Write(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteError(w http.ResponseWriter, status int, code, msg string) {
	Write(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Message: msg,
	})
}

// WriteUnauthorized answers a rejected handshake. The code tells a client
// whether to fix its query or its credential.
func WriteUnauthorized(w http.ResponseWriter, err error) {
	code := CodeInvalidToken
	if errors.Is(err, domain.ErrMissingIdentity) {
		code = CodeMissingIdentity
	}
	WriteError(w, http.StatusUnauthorized, code, err.Error())
}

// WriteRateLimitError sets Retry-After in whole seconds, rounded up.
func WriteRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	if secs := int(math.Ceil(retryAfter.Seconds())); secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests. Please try again later.")
}
