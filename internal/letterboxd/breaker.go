package letterboxd

import (
	"log"
	"sync/atomic"
	"time"
)

// DefaultCooldown is how long live fetches are suspended after a denial.
const DefaultCooldown = 6 * time.Hour

// Breaker suspends live calls to the rating source after it signals access
// denial. Trips only ever extend the deadline, so concurrent trips converge.
type Breaker struct {
	cooldown     time.Duration
	blockedUntil atomic.Int64
	logged       atomic.Bool
	logger       *log.Logger
}

// NewBreaker returns a closed breaker.
func NewBreaker(cooldown time.Duration, logger *log.Logger) *Breaker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Breaker{cooldown: cooldown, logger: logger}
}

// Open reports whether live calls are suspended at now.
func (b *Breaker) Open(now time.Time) bool {
	until := b.blockedUntil.Load()
	if until == 0 {
		return false
	}
	if now.UnixNano() < until {
		return true
	}
	if b.logged.CompareAndSwap(true, false) {
		b.logger.Printf("letterboxd: cooldown elapsed, live rating fetches resumed")
	}
	return false
}

// Trip opens the breaker for the cooldown window starting at now.
func (b *Breaker) Trip(now time.Time) {
	until := now.Add(b.cooldown).UnixNano()
	for {
		current := b.blockedUntil.Load()
		if current >= until || b.blockedUntil.CompareAndSwap(current, until) {
			break
		}
	}
	if b.logged.CompareAndSwap(false, true) {
		b.logger.Printf("letterboxd: access denied (403), live rating fetches suspended for %s", b.cooldown)
	}
}

// BlockedUntil returns the end of the current cooldown, zero when never tripped.
func (b *Breaker) BlockedUntil() time.Time {
	until := b.blockedUntil.Load()
	if until == 0 {
		return time.Time{}
	}
	return time.Unix(0, until)
}
