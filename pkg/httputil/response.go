package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/logger"
	"github.com/teamcoffee/storefront/pkg/validator"
)

// Result codes written for failures, matching the storefront backend.
const (
	CodeBadRequest    = "400-BAD-REQUEST"
	CodeUnauthorized  = "401-UNAUTHORIZED"
	CodeForbidden     = "403-FORBIDDEN"
	CodeNotFound      = "404-NOT-FOUND"
	CodeConflict      = "409-CONFLICT"
	CodeInternalError = "500-INTERNAL-SERVER-ERROR"
)

// Envelope is the {resultCode, msg, data} response wrapper.
type Envelope struct {
	ResultCode string `json:"resultCode"`
	Msg        string `json:"msg"`
	Data       any    `json:"data"`
}

// WriteJSON writes a JSON response with the given status code.
// If encoding fails, the error is logged but headers are already sent so nothing can be done.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteEnvelope writes an envelope with the given status, code, message and data.
func WriteEnvelope(w http.ResponseWriter, status int, code, msg string, data any) {
	WriteJSON(w, status, Envelope{ResultCode: code, Msg: msg, Data: data})
}

// WriteError writes a failure envelope based on the error type. AppErrors keep
// their status and message; sentinels map to the backend's exception codes.
// It prefers the request-scoped logger from context over the fallback logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	status := apperrors.HTTPStatus(err)
	if status == 0 || status == http.StatusOK {
		status = http.StatusInternalServerError
	}
	message := apperrors.Message(err)

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		status = http.StatusBadRequest
		message = valErr.Error()
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		message = "서버 오류가 발생했습니다."
	}

	WriteEnvelope(w, status, CodeForStatus(status), message, nil)
}

// CodeForStatus returns the failure result code for an HTTP status.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	default:
		return CodeInternalError
	}
}

// WriteStatus writes a failure envelope for a bare status with the backend's
// stock message for it.
func WriteStatus(w http.ResponseWriter, status int) {
	msg := http.StatusText(status)
	switch status {
	case http.StatusUnauthorized:
		msg = "인증이 필요합니다."
	case http.StatusForbidden:
		msg = "접근 권한이 없습니다."
	case http.StatusNotFound:
		msg = "데이터를 찾을 수 없습니다."
	}
	if status >= http.StatusInternalServerError {
		msg = "서버 오류가 발생했습니다."
	}
	WriteEnvelope(w, status, CodeForStatus(status), msg, nil)
}
