package json

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hilthontt/interchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteUnauthorized(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "bad token", err: domain.ErrUnauthorized, wantCode: CodeInvalidToken},
		{name: "missing ids", err: fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrMissingIdentity), wantCode: CodeMissingIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteUnauthorized(rec, tt.err)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			resp := decode(t, rec)
			assert.Equal(t, "Unauthorized", resp.Error)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.err.Error(), resp.Message)
		})
	}
}

func TestWriteRateLimitError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRateLimitError(rec, 11200*time.Millisecond)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("Retry-After"))
	assert.Equal(t, CodeRateLimited, decode(t, rec).Code)

	rec = httptest.NewRecorder()
	WriteRateLimitError(rec, 0)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}
