package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

// ErrorKind is the closed set of reasons a generation call can fail.
type ErrorKind string

const (
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindAuthentication ErrorKind = "authentication"
	ErrorKindQuota          ErrorKind = "quota"
	ErrorKindMalformed      ErrorKind = "malformed"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// GenerationError is returned by every failed Generate call.
type GenerationError struct {
	Kind ErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("gemini generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// KindOf returns the kind of a generation failure, or ErrorKindUnknown when
// err did not come from the adapter.
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ErrorKindUnknown
}

func classifyError(err error) *GenerationError {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}

	var (
		apiErr  *googleapi.Error
		blocked *genai.BlockedError
		netErr  net.Error
	)

	kind := ErrorKindUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = ErrorKindNetwork
	case errors.As(err, &blocked):
		kind = ErrorKindMalformed
	case errors.As(err, &apiErr):
		kind = kindForStatus(apiErr.Code, apiErr.Message)
	case errors.As(err, &netErr):
		kind = ErrorKindNetwork
	default:
		kind = kindForMessage(err.Error())
	}

	return &GenerationError{Kind: kind, Err: err}
}

func kindForStatus(code int, message string) ErrorKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		// Gemini answers 403 for unsupported regions as well.
		if isRegionMessage(message) {
			return ErrorKindQuota
		}
		return ErrorKindAuthentication
	case code == http.StatusTooManyRequests:
		return ErrorKindQuota
	case code >= 500:
		return ErrorKindNetwork
	}
	return kindForMessage(message)
}

func kindForMessage(message string) ErrorKind {
	msg := strings.ToLower(message)
	switch {
	case isRegionMessage(msg),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "resource exhausted"):
		return ErrorKindQuota
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "api_key"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "permission_denied"),
		strings.Contains(msg, "unauthenticated"):
		return ErrorKindAuthentication
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "unavailable"):
		return ErrorKindNetwork
	}
	return ErrorKindUnknown
}

func isRegionMessage(message string) bool {
	msg := strings.ToLower(message)
	return strings.Contains(msg, "location is not supported") ||
		strings.Contains(msg, "region is not supported")
}
