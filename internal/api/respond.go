package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/booking"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeAppError maps the error taxonomy onto HTTP statuses. Unknown errors
// are logged and reported as a bare 500.
func writeAppError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var (
		verr  *apperr.ValidationError
		nf    *apperr.NotFoundError
		aerr  *apperr.AuthError
		forb  *apperr.AuthorizationError
		integ *apperr.IntegrationError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Details: verr.Fields})
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &aerr):
		writeError(w, http.StatusUnauthorized, aerr.Message)
	case errors.As(err, &forb):
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:    "insufficient permissions",
			Message:  forb.Error(),
			Required: forb.Required,
			Current:  forb.Current,
		})
	case errors.Is(err, booking.ErrInvalidStatusTransition),
		errors.Is(err, booking.ErrSlotTaken),
		errors.Is(err, booking.ErrSlotBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &integ):
		logger.Warn().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("upstream integration failed")
		writeError(w, http.StatusBadGateway, integ.Adapter+" unavailable")
	default:
		logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", GetRequestID(r.Context())).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a JSON body into dst. An empty body is accepted when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("could not parse JSON body")
	}
	return nil
}
