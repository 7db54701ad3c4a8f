package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrPublishInProgress  = errors.New("publish already in progress")
	ErrRefreshUnsupported = errors.New("token refresh not supported for platform")
)

// MissingAccountsError lists requested platforms the user has not connected.
type MissingAccountsError struct {
	Platforms []string
}

func (e *MissingAccountsError) Error() string {
	return "accounts not connected: " + strings.Join(e.Platforms, ", ")
}

// ReconnectRequiredError means the stored credential can no longer be
// refreshed and the user has to authorize the platform again.
type ReconnectRequiredError struct {
	Platform string
	Err      error
}

func (e *ReconnectRequiredError) Error() string {
	if e.Err == nil {
		return e.Platform + ": reconnect required"
	}
	return fmt.Sprintf("%s: reconnect required: %v", e.Platform, e.Err)
}

func (e *ReconnectRequiredError) Unwrap() error {
	return e.Err
}

const maxErrorBody = 512

// AdapterError is a non-2xx answer from a platform API. Message holds the
// platform's own error text when the body could be decoded.
type AdapterError struct {
	Platform   string
	Step       string
	StatusCode int
	Message    string
	Body       string
}

func (e *AdapterError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = truncate(strings.TrimSpace(e.Body), maxErrorBody)
	}
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Platform, e.Step, e.StatusCode, detail)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
