package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Stable machine-readable codes surfaced to clients.
const (
	CodeUnauthenticated      = "unauthenticated"
	CodeAccessDenied         = "access_denied"
	CodeChatDisabled         = "chat_disabled"
	CodeQuotaExceeded        = "quota_exceeded"
	CodeGameNotFound         = "game_not_found"
	CodeKnowledgeUnavailable = "knowledge_unavailable"
	CodeProviderError        = "provider_error"
	CodeInternalError        = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
	// Details is surfaced verbatim in the error envelope when present,
	// for structured hints such as the quota reset time.
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Unauthenticated(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, err)
}

func AccessDenied(err error) *Error {
	return New(http.StatusForbidden, CodeAccessDenied, err)
}

func ChatDisabled(err error) *Error {
	return New(http.StatusForbidden, CodeChatDisabled, err)
}

func QuotaExceeded(err error) *Error {
	return New(http.StatusForbidden, CodeQuotaExceeded, err)
}

// QuotaExceededAt carries the UTC reset instant so clients can display a
// countdown instead of parsing the message.
func QuotaExceededAt(err error, resetAt time.Time) *Error {
	e := QuotaExceeded(err)
	e.Details = map[string]any{"reset_at": resetAt.UTC().Format(time.RFC3339)}
	return e
}

func GameNotFound(err error) *Error {
	return New(http.StatusNotFound, CodeGameNotFound, err)
}

func KnowledgeUnavailable(err error) *Error {
	return New(http.StatusNotFound, CodeKnowledgeUnavailable, err)
}

func Provider(err error) *Error {
	return New(http.StatusInternalServerError, CodeProviderError, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternalError, err)
}

// From extracts an *Error from err's chain, wrapping unknown errors as
// internal so handlers never leak raw failures.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

func IsCode(err error, code string) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
