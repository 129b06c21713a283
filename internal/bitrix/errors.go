package bitrix

import (
	"fmt"
	"strings"
)

// AuthenticationError wraps expired_token/invalid_token responses. It is
// fatal: the Bitrix Client never retries it.
type AuthenticationError struct {
	Code    string
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("bitrix: authentication error (%s): %s", e.Code, e.Message)
}

// RateLimitedError wraps QUERY_LIMIT_EXCEEDED. The client retries this
// transparently; it only reaches a caller once retries are exhausted.
type RateLimitedError struct {
	Code    string
	Message string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("bitrix: rate limited (%s): %s", e.Code, e.Message)
}

// OperationTimeLimitError wraps OPERATION_TIME_LIMIT. Fatal for the call;
// callers should narrow their filter and retry at the sync-service level,
// not the client level.
type OperationTimeLimitError struct {
	Code    string
	Message string
}

func (e *OperationTimeLimitError) Error() string {
	return fmt.Sprintf("bitrix: operation time limit exceeded (%s): %s", e.Code, e.Message)
}

// APIError is the generic typed error for any other `error` member in a
// Bitrix response.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitrix: api error (%s): %s", e.Code, e.Message)
}

// classifyError maps a Bitrix response's error_code/error_description
// pair to one of the four typed errors in spec.md §4.A.
func classifyError(code, description string) error {
	switch {
	case strings.Contains(code, "OPERATION_TIME_LIMIT") || strings.Contains(description, "OPERATION_TIME_LIMIT"):
		return &OperationTimeLimitError{Code: code, Message: description}
	case strings.Contains(code, "QUERY_LIMIT_EXCEEDED"):
		return &RateLimitedError{Code: code, Message: description}
	case code == "expired_token" || code == "invalid_token":
		return &AuthenticationError{Code: code, Message: description}
	default:
		return &APIError{Code: code, Message: description}
	}
}

// asOperationTimeLimit converts any error whose text mentions
// OPERATION_TIME_LIMIT into an *OperationTimeLimitError regardless of
// origin (transport error, server 5xx body, panic recovery), per
// spec.md §4.A's "on a transport or server exception ... regardless of
// origin" rule.
func asOperationTimeLimit(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "OPERATION_TIME_LIMIT") {
		return &OperationTimeLimitError{Code: "OPERATION_TIME_LIMIT", Message: err.Error()}
	}
	return err
}
