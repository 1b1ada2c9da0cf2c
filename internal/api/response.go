package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"echobox/internal/apperr"
	"echobox/internal/constants"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, message)
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, constants.ErrCodeAuthFailed, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, constants.ErrCodeNotFound, message)
}

func payloadTooLarge(w http.ResponseWriter, message string) {
	writeError(w, http.StatusRequestEntityTooLarge, constants.ErrCodePayloadTooLarge, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, constants.ErrCodeInternal, "An internal error occurred")
}

type errorMapping struct {
	status int
	code   string
}

var kindMappings = map[apperr.Kind]errorMapping{
	apperr.KindBadRequest:          {http.StatusBadRequest, constants.ErrCodeInvalidRequest},
	apperr.KindUnauthorized:        {http.StatusUnauthorized, constants.ErrCodeAuthFailed},
	apperr.KindForbidden:           {http.StatusForbidden, constants.ErrCodeForbidden},
	apperr.KindNotFound:            {http.StatusNotFound, constants.ErrCodeNotFound},
	apperr.KindConflict:            {http.StatusConflict, constants.ErrCodeConflict},
	apperr.KindNotYetEligible:      {http.StatusBadRequest, constants.ErrCodeNotYetEligible},
	apperr.KindEmailDeliveryFailed: {http.StatusInternalServerError, constants.ErrCodeEmailFailed},
	apperr.KindExpired:             {http.StatusBadRequest, constants.ErrCodeOtpExpired},
	apperr.KindInvalidOtp:          {http.StatusBadRequest, constants.ErrCodeOtpInvalid},
	apperr.KindCorrupt:             {http.StatusBadRequest, constants.ErrCodeOtpCorrupt},
	apperr.KindMismatch:            {http.StatusBadRequest, constants.ErrCodePasswordMatch},
	apperr.KindTooShort:            {http.StatusBadRequest, constants.ErrCodePasswordShort},
	apperr.KindMissingMedia:        {http.StatusBadRequest, constants.ErrCodeMissingMedia},
}

// writeAppError is the single place service errors become HTTP responses.
// Anything without a known kind is logged and reported as a 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		internalError(w)
		return
	}

	kind := appErr.Kind
	mapping, ok := kindMappings[kind]
	if !ok {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		internalError(w)
		return
	}

	if kind == apperr.KindEmailDeliveryFailed {
		slog.Error("email delivery failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, mapping.status, mapping.code, appErr.Message)
}
