package api

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPHIGuardBodyReadErrors(t *testing.T) {
	reached := false
	h := PHIGuard(false, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
		msg    string
	}{
		{
			name: "oversized body",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(strings.Repeat("x", maxBodyBytes+1)))
			},
			status: http.StatusRequestEntityTooLarge,
			msg:    "request body too large",
		},
		{
			name: "broken body",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/bookings", iotest.ErrReader(errors.New("connection reset")))
			},
			status: http.StatusBadRequest,
			msg:    "could not read request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req())

			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, decode[ErrorResponse](t, rec).Error)
			assert.False(t, reached)
		})
	}
}

func TestPHIGuardPassesSyntheticBody(t *testing.T) {
	var got string
	h := PHIGuard(false, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		got = string(raw)
		w.WriteHeader(http.StatusNoContent)
	}))

	body := `{"patient":{"isReal":false}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, body, got, "body is replayed to the handler")
}
