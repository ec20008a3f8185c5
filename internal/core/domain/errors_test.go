package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedFormat", ErrUnsupportedFormat},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrMissingCredentials", ErrMissingCredentials},
		{"ErrSourceFailed", ErrSourceFailed},
		{"ErrSourcesExhausted", ErrSourcesExhausted},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrGeneration", ErrGeneration},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrIndexCorrupt", ErrIndexCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrors_Uniqueness tests that all errors are distinct
func TestErrors_Uniqueness(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnsupportedFormat,
		ErrUnsupportedType,
		ErrMissingCredentials,
		ErrSourceFailed,
		ErrSourcesExhausted,
		ErrRateLimited,
		ErrLLMUnavailable,
		ErrGeneration,
		ErrEmbeddingUnavailable,
		ErrIndexCorrupt,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j {
				assert.False(t, errors.Is(err1, err2),
					"Error %v should not match error %v", err1, err2)
			}
		}
	}
}

// TestSourceError_MatchesSentinel tests that any SourceError matches ErrSourceFailed
func TestSourceError_MatchesSentinel(t *testing.T) {
	err := NewSourceError(SourceTavily, ErrMissingCredentials)

	assert.True(t, errors.Is(err, ErrSourceFailed))
	assert.True(t, errors.Is(err, ErrMissingCredentials))
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, "tavily: missing credentials", err.Error())
}

// TestSourceError_WithStatus tests the message for HTTP failures
func TestSourceError_WithStatus(t *testing.T) {
	err := &SourceError{Source: SourceBing, StatusCode: 429, Err: ErrRateLimited}

	assert.Equal(t, "bing: HTTP 429: rate limited", err.Error())
	assert.True(t, errors.Is(err, ErrRateLimited))
}

// TestSourceError_TooManyRequests tests that a 429 answer matches ErrRateLimited
func TestSourceError_TooManyRequests(t *testing.T) {
	limited := &SourceError{Source: SourceTavily, StatusCode: 429, Err: errors.New("tavily error: slow down")}
	failed := &SourceError{Source: SourceTavily, StatusCode: 500, Err: errors.New("tavily error: oops")}

	assert.ErrorIs(t, limited, ErrRateLimited)
	assert.ErrorIs(t, limited, ErrSourceFailed)
	assert.NotErrorIs(t, failed, ErrRateLimited)
}

// TestSourceError_Wrapped tests matching through fmt.Errorf and errors.Join
func TestSourceError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", NewSourceError(SourceBing, errors.New("boom")))
	joined := errors.Join(wrapped, NewSourceError(SourceTavily, ErrMissingCredentials))

	var srcErr *SourceError
	assert.True(t, errors.As(wrapped, &srcErr))
	assert.Equal(t, SourceBing, srcErr.Source)
	assert.True(t, errors.Is(joined, ErrSourceFailed))
	assert.True(t, errors.Is(joined, ErrMissingCredentials))
}

// TestErrors_ServiceErrors tests service-related errors
func TestErrors_ServiceErrors(t *testing.T) {
	serviceErrors := []error{
		ErrLLMUnavailable,
		ErrEmbeddingUnavailable,
	}

	for _, err := range serviceErrors {
		assert.Contains(t, err.Error(), "unavailable",
			"Service error %v should mention unavailable", err)
	}
}
