package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError: malformed request input (400).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AdmissionDenied: the fraud gate vetoed a money-moving action (403).
type AdmissionDenied struct {
	Score          int
	Recommendation string
}

func (e *AdmissionDenied) Error() string {
	return fmt.Sprintf("payment blocked for security reasons (score %d)", e.Score)
}

// AuthorizationError: caller lacks the role for the route (403).
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

// ConflictError: a state precondition was not met, e.g. a concurrent payout
// already claimed the request (409).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// ProviderError: an upstream payment-processor call failed or timed out.
// Never retried for money-moving writes.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SignatureError: webhook signature verification failed (400, no mutation).
type SignatureError struct {
	Provider string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("%s webhook signature verification failed", e.Provider)
}

// HTTPStatus maps an error from the taxonomy onto its response code.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		admission  *AdmissionDenied
		authz      *AuthorizationError
		conflict   *ConflictError
		provider   *ProviderError
		signature  *SignatureError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &signature):
		return http.StatusBadRequest
	case errors.As(err, &admission), errors.As(err, &authz):
		return http.StatusForbidden
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &provider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
