package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Result codes the dispatcher synthesizes or recognizes.
const (
	CodeSuccess   = "SUCCESS"
	CodeOK        = "200-OK"
	CodeCreated   = "201-CREATED"
	CodeNoContent = "204-NO-CONTENT"
	CodeLegacyOK  = "S-1"
)

// Envelope is the {resultCode, msg|message, data} wrapper of every response.
type Envelope[T any] struct {
	ResultCode string `json:"resultCode"`
	Msg        string `json:"msg,omitempty"`
	Message    string `json:"message,omitempty"`
	Data       T      `json:"data"`
}

// Text returns msg or message, whichever is present.
func (e Envelope[T]) Text() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Message
}

// RawEnvelope is an envelope whose data has not been decoded yet.
type RawEnvelope = Envelope[json.RawMessage]

// IsSuccessEnvelope is the single place a result code is judged successful.
// The backend is inconsistent: SUCCESS, 200-OK, 201-CREATED, S-1 and any code
// prefixed 200, 201 or 204 (such as "200-1") all mean success.
func IsSuccessEnvelope(resultCode string) bool {
	switch resultCode {
	case CodeSuccess, CodeOK, CodeCreated, CodeLegacyOK:
		return true
	}
	for _, prefix := range []string{"200", "201", "204"} {
		if strings.HasPrefix(resultCode, prefix) {
			return true
		}
	}
	return false
}

// HasData reports whether the payload carries anything other than null.
func HasData(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Verdict classifies a 2xx envelope.
type Verdict int

const (
	Rejected Verdict = iota
	Accepted
	// AcceptedAmbiguous is an unrecognized code with usable data. Data wins.
	AcceptedAmbiguous
)

// Judge applies IsSuccessEnvelope and the data-presence fallback.
func Judge(env RawEnvelope) Verdict {
	switch {
	case IsSuccessEnvelope(env.ResultCode):
		return Accepted
	case HasData(env.Data):
		return AcceptedAmbiguous
	default:
		return Rejected
	}
}
