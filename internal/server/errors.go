package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindUnknownTable, errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindValidation, errs.ErrKindUnknownColumn:
		return http.StatusUnprocessableEntity
	case errs.ErrKindConstraint:
		return http.StatusConflict
	case errs.ErrKindCacheMiss:
		return http.StatusServiceUnavailable
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError logs err and writes it as an ErrorResponse.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := ErrorResponse{Error: err.Error(), Kind: errs.KindOf(err).String()}

	var e *errs.Error
	if errors.As(err, &e) {
		body.Error = e.Message
		if e.Cause != nil {
			body.Error += ": " + e.Cause.Error()
		}
		body.Table = e.Table
		body.Column = e.Column
		body.Constraint = e.Constraint
	}
	// Internal causes stay in the log.
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.ErrorWith("request failed", err, map[string]any{"status": status})
	} else {
		log.With().Err(err).Int("status", status).Logger().Debug("request rejected")
	}
	writeJSON(w, status, body)
}
