package sink

import (
	"fmt"
	"strings"
	"time"

	"github.com/psantana5/buildtime-profiler/pkg/retry"
)

// ErrorType categorizes errors for handling strategy
type ErrorType int

const (
	ErrorTypeUnknown   ErrorType = iota
	ErrorTypeTransient           // Temporary, retry possible
	ErrorTypePermanent           // Permanent, no retry
	ErrorTypeRateLimit           // Rate limit, backoff needed
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// SinkError wraps delivery errors with context and categorization
type SinkError struct {
	Type      ErrorType
	Sink      string // "elasticsearch", "nats"
	Operation string // "ensure_index", "index", "publish"
	Status    int    // HTTP status when there was one
	Message   string
	Err       error
	Timestamp time.Time
	Retryable bool
}

// Error implements error interface
func (e *SinkError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Sink, e.Operation)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *SinkError) Unwrap() error {
	return e.Err
}

// NewSinkError creates a new sink error
func NewSinkError(errType ErrorType, sink, operation string, status int, message string, err error) *SinkError {
	return &SinkError{
		Type:      errType,
		Sink:      sink,
		Operation: operation,
		Status:    status,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeRateLimit,
	}
}

// ErrorClassifier determines error type from error content or HTTP status
type ErrorClassifier struct{}

// ClassifyStatus maps an HTTP status to an error type
func (ec *ErrorClassifier) ClassifyStatus(status int) ErrorType {
	switch {
	case status == 429:
		return ErrorTypeRateLimit
	case status >= 500:
		return ErrorTypeTransient
	case status >= 400:
		return ErrorTypePermanent
	default:
		return ErrorTypeUnknown
	}
}

// Classify determines error type from error
func (ec *ErrorClassifier) Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	errStr := strings.ToLower(err.Error())

	// nats reports an unreachable cluster as "no servers available"
	if retry.IsRetryable(err) || strings.Contains(errStr, "no servers available") {
		return ErrorTypeTransient
	}

	if strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests") {
		return ErrorTypeRateLimit
	}

	return ErrorTypePermanent
}
