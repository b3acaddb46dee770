package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Kind classifies gateway failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuth
	KindValidation
	KindRateLimited
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

var userMessages = map[Kind]string{
	KindNetwork:     "Unable to reach the server. Please check your connection and try again.",
	KindAuth:        "Your credentials are invalid or your session has expired. Please sign in again.",
	KindValidation:  "Some of the information you entered is invalid. Please review it and try again.",
	KindRateLimited: "Too many requests. Please wait a moment and try again.",
	KindServer:      "The server ran into a problem. Please try again later.",
	KindUnknown:     "Something went wrong. Please try again.",
}

// UserMessage returns the fixed user-facing text for k.
func UserMessage(k Kind) string {
	if msg, ok := userMessages[k]; ok {
		return msg
	}
	return userMessages[KindUnknown]
}

// Error is the only error type returned across the gateway boundary.
type Error struct {
	Kind   Kind
	Status int    // HTTP status, 0 when no response was received
	Code   string // structured error code from the response body, if any
	// Message is the server supplied message, kept for logs and diagnostics.
	Message string
	// Fields holds per-field validation detail for KindValidation.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Code != "" {
		b.WriteString(" ")
		b.WriteString(e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) UserMessage() string {
	return UserMessage(e.Kind)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// MessageFor returns the user-facing text for any error. Errors from outside
// the gateway map to the unknown message.
func MessageFor(err error) string {
	if err == nil {
		return ""
	}
	return UserMessage(KindOf(err))
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

// statusError builds an *Error from a non-2xx response.
func statusError(status int, body []byte) *Error {
	e := &Error{Kind: kindForStatus(status), Status: status}
	e.Code, e.Message, e.Fields = parseErrorBody(body)
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// parseErrorBody understands the error shapes the backend and the identity
// provider produce:
//
//	{"message": "...", "code": "USER_EXISTS", "errors": {"email": "..."}}
//	{"error": "..."}
//	{"error": {"code": 400, "message": "EMAIL_EXISTS"}}
func parseErrorBody(body []byte) (code, message string, fields map[string]string) {
	var raw map[string]json.RawMessage
	if len(body) == 0 || json.Unmarshal(body, &raw) != nil {
		return "", strings.TrimSpace(string(body)), nil
	}

	message = rawString(raw["message"])
	code = rawString(raw["code"])

	if errRaw, ok := raw["error"]; ok {
		if s := rawString(errRaw); s != "" {
			if message == "" {
				message = s
			}
		} else {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(errRaw, &nested) == nil && nested.Message != "" {
				// Identity provider codes look like "TOO_MANY_ATTEMPTS_TRY_LATER : detail".
				providerCode, _, _ := strings.Cut(nested.Message, " : ")
				code = strings.TrimSpace(providerCode)
				if message == "" {
					message = nested.Message
				}
			}
		}
	}

	if errs, ok := raw["errors"]; ok {
		fields = parseFieldErrors(errs)
	}
	return code, message, fields
}

func parseFieldErrors(raw json.RawMessage) map[string]string {
	var asMap map[string]json.RawMessage
	if json.Unmarshal(raw, &asMap) == nil {
		fields := make(map[string]string, len(asMap))
		for k, v := range asMap {
			if s := rawString(v); s != "" {
				fields[k] = s
				continue
			}
			var list []string
			if json.Unmarshal(v, &list) == nil && len(list) > 0 {
				fields[k] = list[0]
			}
		}
		return fields
	}

	var asList []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &asList) == nil {
		fields := make(map[string]string, len(asList))
		for _, fe := range asList {
			if fe.Field != "" {
				fields[fe.Field] = fe.Message
			}
		}
		return fields
	}
	return nil
}

// rawString decodes a JSON string or number into a string.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return n.String()
		}
	}
	return ""
}
