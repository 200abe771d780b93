package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/teamcoffee/storefront/pkg/errors"
)

// Caller-facing messages for the fixed failure classes.
const (
	MsgOrderNotFound    = "order not found"
	MsgResourceNotFound = "requested resource not found"
	MsgServerError      = "server error occurred"
	MsgAuthRequired     = "authentication required"
)

// ErrorBody mirrors the envelope the backend uses for failures. Older
// endpoints send the text under "message" instead of "msg".
type ErrorBody struct {
	ResultCode string `json:"resultCode"`
	Msg        string `json:"msg"`
	Message    string `json:"message"`
}

// Text returns msg or message, whichever is present.
func (b ErrorBody) Text() string {
	if b.Msg != "" {
		return b.Msg
	}
	return b.Message
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. The request path decides the 404 message.
//
// The caller should only invoke this when resp.StatusCode indicates an error
// (i.e., not 2xx). The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	var body ErrorBody
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); err == nil {
		_ = json.Unmarshal(raw, &body)
	}

	path := ""
	if resp.Request != nil && resp.Request.URL != nil {
		path = resp.Request.URL.Path
	}
	return StatusError(resp.StatusCode, path, body.Text())
}

// StatusError classifies a failed status code.
func StatusError(status int, path, serverMsg string) error {
	switch {
	case status == http.StatusUnauthorized:
		return apperrors.AuthRequired(MsgAuthRequired)
	case status == http.StatusNotFound:
		if strings.Contains(path, "/orders/lists") {
			return apperrors.NotFound(MsgOrderNotFound)
		}
		return apperrors.NotFound(MsgResourceNotFound)
	case status >= 500:
		return apperrors.ServerError(status, MsgServerError)
	default:
		if serverMsg == "" {
			serverMsg = fmt.Sprintf("HTTP %d", status)
		}
		return apperrors.Client(status, serverMsg)
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
