package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Is(t *testing.T) {
	err := NewAllProvidersFailedError([]string{"openai", "anthropic"}, errors.New("timeout"))

	assert.True(t, errors.Is(err, ErrAllProvidersFailed))
	assert.False(t, errors.Is(err, ErrNoProviderAvailable))
}

func TestDomainError_Wrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewProviderExecutionError("stability", "image generation failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "provider_execution")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDomainError_WrappedThroughFmt(t *testing.T) {
	inner := NewDomainError(ErrorTypeNoProvider, "no provider available", nil)
	outer := fmt.Errorf("route failed: %w", inner)

	assert.True(t, IsNoProviderAvailable(outer))
	assert.Equal(t, ErrorTypeNoProvider, GetErrorType(outer))
}

func TestAttemptedProviders(t *testing.T) {
	attempted := []string{"openai", "anthropic", "stability"}
	err := NewAllProvidersFailedError(attempted, errors.New("rate limited"))

	require.True(t, IsAllProvidersFailed(err))
	assert.Equal(t, attempted, AttemptedProviders(err))
	assert.Nil(t, AttemptedProviders(errors.New("plain")))
}

func TestErrorTypeCheckers(t *testing.T) {
	assert.True(t, IsConfigurationError(ErrMissingCredential))
	assert.True(t, IsValidationError(ErrInvalidInput))
	assert.False(t, IsConfigurationError(ErrInvalidInput))
	assert.False(t, IsNoProviderAvailable(nil))
}
