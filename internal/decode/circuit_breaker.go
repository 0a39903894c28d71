package decode

import (
	"sync"
	"time"
)

// faultState is the three-state circuit breaker protecting the pipeline
// from a single misbehaving asset's decode faults (spec §4.5): once an
// asset's FFmpeg process crashes or stalls past FailureThreshold times in
// a row, the breaker opens and the Fill/Decode stage substitutes pad
// instead of retrying that asset, until Timeout elapses and a half-open
// probe succeeds.
type faultState int

const (
	faultClosed faultState = iota
	faultOpen
	faultHalfOpen
)

func (s faultState) String() string {
	switch s {
	case faultClosed:
		return "closed"
	case faultOpen:
		return "open"
	case faultHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes an asset's decode-fault breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// assetBreaker tracks decode-fault history for one asset URI.
type assetBreaker struct {
	mu              sync.Mutex
	cfg             CircuitBreakerConfig
	state           faultState
	failures        int
	successes       int
	lastFailureTime time.Time
}

func newAssetBreaker(cfg CircuitBreakerConfig) *assetBreaker {
	return &assetBreaker{cfg: cfg, state: faultClosed}
}

// Allow reports whether a decode attempt should proceed for this asset,
// advancing open->half-open once Timeout has elapsed.
func (b *assetBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == faultOpen && time.Since(b.lastFailureTime) >= b.cfg.Timeout {
		b.state = faultHalfOpen
		b.successes = 0
	}
	return b.state != faultOpen
}

// RecordFault records a decode failure for this asset.
func (b *assetBreaker) RecordFault() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailureTime = time.Now()
	switch b.state {
	case faultClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = faultOpen
			b.failures = 0
		}
	case faultHalfOpen:
		b.state = faultOpen
	}
}

// RecordSuccess records a clean decode for this asset.
func (b *assetBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case faultClosed:
		b.failures = 0
	case faultHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = faultClosed
			b.successes = 0
		}
	}
}

// State reports the breaker's current state, resolving open->half-open lazily.
func (b *assetBreaker) State() faultState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == faultOpen && time.Since(b.lastFailureTime) >= b.cfg.Timeout {
		return faultHalfOpen
	}
	return b.state
}

// BreakerRegistry keys one assetBreaker per asset URI, so a fault on one
// asset never penalizes decoding of another.
type BreakerRegistry struct {
	cfg CircuitBreakerConfig
	mu  sync.Mutex
	byAsset map[string]*assetBreaker
}

// NewBreakerRegistry creates a registry applying cfg to every asset breaker it creates.
func NewBreakerRegistry(cfg CircuitBreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{cfg: cfg, byAsset: make(map[string]*assetBreaker)}
}

// For returns (creating if needed) the breaker for assetURI.
func (r *BreakerRegistry) For(assetURI string) *assetBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byAsset[assetURI]
	if !ok {
		b = newAssetBreaker(r.cfg)
		r.byAsset[assetURI] = b
	}
	return b
}

// OpenAssets returns the URIs of every asset whose breaker is currently open.
func (r *BreakerRegistry) OpenAssets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var open []string
	for uri, b := range r.byAsset {
		if b.State() == faultOpen {
			open = append(open, uri)
		}
	}
	return open
}
