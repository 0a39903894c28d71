package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssetBreaker_OpensAfterThreshold(t *testing.T) {
	b := newAssetBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour})

	assert.True(t, b.Allow())
	b.RecordFault()
	assert.True(t, b.Allow())
	b.RecordFault()
	assert.False(t, b.Allow())
}

func TestAssetBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := newAssetBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: 10 * time.Millisecond})
	b.RecordFault()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, faultHalfOpen, b.State())
}

func TestAssetBreaker_ClosesAfterHalfOpenSuccess(t *testing.T) {
	b := newAssetBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Millisecond})
	b.RecordFault()
	time.Sleep(5 * time.Millisecond)
	require_Allow(t, b)
	b.RecordSuccess()
	assert.Equal(t, faultClosed, b.State())
}

func require_Allow(t *testing.T, b *assetBreaker) {
	t.Helper()
	if !b.Allow() {
		t.Fatal("expected breaker to allow after timeout")
	}
}

func TestBreakerRegistry_IsolatesPerAsset(t *testing.T) {
	reg := NewBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour})

	reg.For("a").RecordFault()
	assert.False(t, reg.For("a").Allow())
	assert.True(t, reg.For("b").Allow())

	open := reg.OpenAssets()
	assert.Contains(t, open, "a")
	assert.NotContains(t, open, "b")
}
