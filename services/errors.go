package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeConfiguration      ErrorType = "configuration"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeNoProvider         ErrorType = "no_provider"
	ErrorTypeProviderExecution  ErrorType = "provider_execution"
	ErrorTypeAllProvidersFailed ErrorType = "all_providers_failed"
	ErrorTypeInternal           ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// ErrNoProviderAvailable is returned by routing when zero eligible
	// candidates remain after tier, capability and health filtering
	ErrNoProviderAvailable = NewDomainError(ErrorTypeNoProvider, "no provider available", nil)

	// ErrAllProvidersFailed is returned by the execution coordinator when
	// every candidate in a routing decision has been attempted and failed
	ErrAllProvidersFailed = NewDomainError(ErrorTypeAllProvidersFailed, "all providers failed", nil)

	// ErrMissingCredential marks a provider excluded at startup because its
	// required credential is absent. Non-fatal: the provider is skipped.
	ErrMissingCredential = NewDomainError(ErrorTypeConfiguration, "provider credential missing", nil)

	// ErrInvalidProviderConfig marks a malformed provider configuration
	ErrInvalidProviderConfig = NewDomainError(ErrorTypeConfiguration, "invalid provider configuration", nil)

	// ErrInvalidInput is returned for malformed caller input
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)

	// ErrInternal is the generic internal error
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// NewAllProvidersFailedError creates the terminal execution error carrying
// the attempted provider list and the last underlying failure
func NewAllProvidersFailedError(attempted []string, lastErr error) *DomainError {
	return NewDomainError(ErrorTypeAllProvidersFailed, "all providers failed", lastErr).
		WithDetail("attempted_providers", attempted)
}

// NewProviderExecutionError wraps a single-candidate failure. These never
// cross the engine boundary; they are converted into usage records and
// circuit breaker signals by the execution coordinator.
func NewProviderExecutionError(provider, message string, err error) *DomainError {
	return NewDomainError(ErrorTypeProviderExecution, message, err).
		WithDetail("provider", provider)
}

// Error type checking helper functions

// IsNoProviderAvailable checks if an error means routing found no candidates
func IsNoProviderAvailable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNoProvider
	}
	return false
}

// IsAllProvidersFailed checks if an error is the terminal execution failure
func IsAllProvidersFailed(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeAllProvidersFailed
	}
	return false
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConfiguration
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// AttemptedProviders extracts the attempted provider list from a terminal
// execution error, or nil if the error carries none
func AttemptedProviders(err error) []string {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return nil
	}
	attempted, _ := domainErr.Details["attempted_providers"].([]string)
	return attempted
}

// GetErrorDetails returns the details map of a domain error, or nil
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
