package dispatch

import (
	"sync"
	"time"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// Breaker guards one sink. After maxFailures consecutive failure reports the
// breaker opens; once cooldown passes a probe delivery is allowed and
// resetAfter consecutive successes close it again.
type Breaker struct {
	mu          sync.RWMutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	maxFailures int
	cooldown    time.Duration
	resetAfter  int
}

func NewBreaker(maxFailures int, cooldown time.Duration, resetAfter int) *Breaker {
	return &Breaker{
		state:       BreakerClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		resetAfter:  resetAfter,
	}
}

func (b *Breaker) Allow() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		return time.Since(b.lastFailure) >= b.cooldown
	default:
		return false
	}
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.resetAfter {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	case BreakerOpen:
		b.state = BreakerHalfOpen
		b.successes = 1
	default:
		b.failures = 0
	}
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.maxFailures {
			b.state = BreakerOpen
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.successes = 0
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// BreakerSet lazily creates one Breaker per sink.
type BreakerSet struct {
	mu          sync.Mutex
	breakers    map[string]*Breaker
	maxFailures int
	cooldown    time.Duration
	resetAfter  int
}

func NewBreakerSet(maxFailures int, cooldown time.Duration, resetAfter int) *BreakerSet {
	return &BreakerSet{
		breakers:    make(map[string]*Breaker),
		maxFailures: maxFailures,
		cooldown:    cooldown,
		resetAfter:  resetAfter,
	}
}

func (s *BreakerSet) For(sink string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[sink]
	if !ok {
		b = NewBreaker(s.maxFailures, s.cooldown, s.resetAfter)
		s.breakers[sink] = b
	}
	return b
}
