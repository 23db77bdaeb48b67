package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestLimiter_UnconfiguredAPIIsUnlimited(t *testing.T) {
	l := New()

	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(APIAlphaVantage))
	}
	assert.NoError(t, l.Wait(context.Background(), APIAlphaVantage))
}

func TestLimiter_Unlimited(t *testing.T) {
	l := Unlimited()

	start := time.Now()
	for i := 0; i < 50; i++ {
		assert.NoError(t, l.Wait(context.Background(), APIAlphaVantage))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New()
	l.Set(APIAlphaVantage, PerMinute(1), 2)

	assert.True(t, l.Allow(APIAlphaVantage))
	assert.True(t, l.Allow(APIAlphaVantage))
	assert.False(t, l.Allow(APIAlphaVantage))
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := New()
	l.Set(APIAlphaVantage, PerMinute(1), 1)
	assert.True(t, l.Allow(APIAlphaVantage))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, l.Wait(ctx, APIAlphaVantage))
}

func TestPerMinute(t *testing.T) {
	assert.Equal(t, rate.Inf, PerMinute(0))
	assert.Equal(t, rate.Every(12*time.Second), PerMinute(5))
}
