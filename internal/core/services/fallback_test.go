package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/deepone/internal/core/domain"
)

func TestFallbackResolver_FirstWinnerShortCircuits(t *testing.T) {
	first := failingSource("langsearch")
	second := &mockSearchSource{name: "tavily", results: resultsFor("tavily.example", "q", 2)}
	third := &mockSearchSource{name: "bing", results: resultsFor("bing.example", "q", 2)}

	resolver := NewFallbackResolver(NewRateLimiter(), bindings(first, second, third)...)
	resp, err := resolver.Resolve(context.Background(), "q", domain.SearchOptions{MaxResults: 2})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "tavily", resp.Source)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, 1, second.callCount())
	assert.Zero(t, third.callCount(), "later sources must never be consulted")
}

func TestFallbackResolver_EmptyResultFallsThrough(t *testing.T) {
	empty := &mockSearchSource{name: "langsearch"}
	full := &mockSearchSource{name: "tavily", results: resultsFor("t.example", "q", 1)}

	resp, err := NewFallbackResolver(NewRateLimiter(), bindings(empty, full)...).
		Resolve(context.Background(), "q", domain.SearchOptions{})

	require.NoError(t, err)
	assert.Equal(t, "tavily", resp.Source)
	assert.Equal(t, 1, empty.callCount())
}

func TestFallbackResolver_RateLimitedSourceIsSkipped(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiterWithClock(clock.Now)
	limited := &mockSearchSource{name: "google_cse", results: resultsFor("g.example", "q", 1)}
	backup := &mockSearchSource{name: "duckduckgo", results: resultsFor("d.example", "q", 1)}

	resolver := NewFallbackResolver(limiter,
		SourceBinding{Source: limited, Limit: RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}},
		SourceBinding{Source: backup, Limit: RateLimitConfig{RequestsPerSecond: 1, BurstSize: 10}},
	)

	resp, err := resolver.Resolve(context.Background(), "q", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "google_cse", resp.Source)

	resp, err = resolver.Resolve(context.Background(), "q", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "duckduckgo", resp.Source)
	assert.Equal(t, 1, limited.callCount(), "denied source must not be invoked")
}

func TestFallbackResolver_AllFail(t *testing.T) {
	a := failingSource("langsearch")
	b := &mockSearchSource{name: "tavily", err: domain.NewSourceError("tavily", domain.ErrMissingCredentials)}

	resp, err := NewFallbackResolver(NewRateLimiter(), bindings(a, b)...).
		Resolve(context.Background(), "q", domain.SearchOptions{})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourcesExhausted))
	assert.True(t, errors.Is(err, domain.ErrSourceFailed))
	assert.True(t, errors.Is(err, domain.ErrMissingCredentials))
}

func TestFallbackResolver_AllSkippedOrEmptyIsNotAnError(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiterWithClock(clock.Now)
	empty := &mockSearchSource{name: "a"}
	limited := &mockSearchSource{name: "b", results: resultsFor("b.example", "q", 1)}
	tight := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}
	require.True(t, limiter.Allow("b", tight))

	resp, err := NewFallbackResolver(limiter,
		SourceBinding{Source: empty, Limit: tight},
		SourceBinding{Source: limited, Limit: tight},
	).Resolve(context.Background(), "q", domain.SearchOptions{})

	assert.NoError(t, err)
	assert.Nil(t, resp)
	assert.Zero(t, limited.callCount())
}

func TestFallbackResolver_TimeoutMovesOn(t *testing.T) {
	slow := &mockSearchSource{name: "slow", delay: time.Second, results: resultsFor("s.example", "q", 1)}
	fast := &mockSearchSource{name: "fast", results: resultsFor("f.example", "q", 1)}

	start := time.Now()
	resp, err := NewFallbackResolver(NewRateLimiter(), bindings(slow, fast)...).
		Resolve(context.Background(), "q", domain.SearchOptions{Timeout: 20 * time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Source)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFallbackResolver_WrapsPlainErrors(t *testing.T) {
	plain := &mockSearchSource{name: "plain", err: errors.New("boom")}

	_, err := NewFallbackResolver(NewRateLimiter(), bindings(plain)...).
		Resolve(context.Background(), "q", domain.SearchOptions{})

	var srcErr *domain.SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, "plain", srcErr.Source)
}

func TestFallbackResolver_CancelledContext(t *testing.T) {
	src := &mockSearchSource{name: "a", results: resultsFor("a.example", "q", 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := NewFallbackResolver(NewRateLimiter(), bindings(src)...).
		Resolve(ctx, "q", domain.SearchOptions{})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, src.callCount())
}

func TestFallbackResolver_Sources(t *testing.T) {
	r := NewFallbackResolver(nil, bindings(&mockSearchSource{name: "a"}, &mockSearchSource{name: "b"})...)
	assert.Equal(t, []string{"a", "b"}, r.Sources())
}
