package domain

import (
	"sync"
	"time"
)

const (
	// SendRetry is the retry class of failed offer sends: short delay, bounded
	// by a maximum attempt count.
	SendRetry RetryKind = iota
	// ConfirmRetry is the retry class of failed confirmations: long delay,
	// unbounded. The authenticator check is idempotent and safe to repeat, so
	// confirmation is abandoned only by caller cancellation.
	ConfirmRetry
)

type RetryKind int

// RetryPolicy holds the retry and pacing knobs of the whole offer pipeline.
type RetryPolicy struct {
	// MaxSendAttempts is the number of failed sends after which an offer is
	// abandoned.
	MaxSendAttempts int
	// SendRetryDelay is the wait between failed send attempts.
	SendRetryDelay time.Duration
	// ConfirmRetryDelay is the wait between failed confirmation attempts. Kept
	// long on purpose to not spam the endpoint and get rate limited when the
	// platform is down.
	ConfirmRetryDelay time.Duration
	// LoginRetryDelay is the wait between failed login attempts, long enough
	// to outlast a platform-side authenticator lockout.
	LoginRetryDelay time.Duration
	// ReauthCooldown is the wait before forcing a new login when confirmation
	// fails in a way that points at a broken session.
	ReauthCooldown time.Duration
	// SettleDelay is the wait between a successful send and the first
	// confirmation attempt, letting the platform register the offer
	// server-side.
	SettleDelay time.Duration
	// BootstrapDelay is the pause between two account logins during the
	// sequential startup sequence.
	BootstrapDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxSendAttempts:   5,
		SendRetryDelay:    10 * time.Second,
		ConfirmRetryDelay: 30 * time.Second,
		LoginRetryDelay:   60 * time.Second,
		ReauthCooldown:    20 * time.Second,
		SettleDelay:       10 * time.Second,
		BootstrapDelay:    10 * time.Second,
	}
}

// ShouldRetry returns whether an offer send that failed the given number of
// times is allowed another attempt. Exactly MaxSendAttempts failures abandon.
func (p RetryPolicy) ShouldRetry(failures int) bool {
	return failures < p.MaxSendAttempts
}

// DelayFor returns the wait that must separate two attempts of the given
// retry class.
func (p RetryPolicy) DelayFor(kind RetryKind) time.Duration {
	if kind == ConfirmRetry {
		return p.ConfirmRetryDelay
	}
	return p.SendRetryDelay
}

// RetryCounter tracks failed send attempts per asset id. It is shared across
// overlapping sends for different offers, which is safe because an asset is
// only ever offered once concurrently.
type RetryCounter struct {
	mtx      sync.Mutex
	attempts map[string]int
}

func NewRetryCounter() *RetryCounter {
	return &RetryCounter{attempts: map[string]int{}}
}

// Increment bumps the failure count for the given asset id and returns the
// new count. Entries are created lazily on first failure.
func (c *RetryCounter) Increment(assetID string) int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.attempts[assetID]++
	return c.attempts[assetID]
}

// Reset clears the failure count for the given asset id. Called on a
// successful send so that a later resend of the same asset starts counting
// from zero again.
func (c *RetryCounter) Reset(assetID string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	delete(c.attempts, assetID)
}

// Attempts returns the current failure count for the given asset id.
func (c *RetryCounter) Attempts(assetID string) int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.attempts[assetID]
}
