// Package retry defines the retry policy the manager applies to service
// starts. The event loop never sleeps, so there is no backoff machinery
// here: a failed-and-retry start is requeued immediately and the policy only
// bounds how many attempts a service gets before the failure is treated as
// terminal.
package retry

// Config bounds start-retry attempts per service.
type Config struct {
	// MaxAttempts is the total number of start attempts allowed,
	// including the first. Zero means unbounded retry.
	MaxAttempts int
}

// DefaultConfig returns the unbounded policy, preserving the requeue-forever
// behavior of a plain manager.
func DefaultConfig() Config {
	return Config{}
}

// Bounded returns a policy allowing at most n attempts.
func Bounded(n int) Config {
	return Config{MaxAttempts: n}
}

// Exhausted reports whether a service that has made the given number of
// attempts is out of retries.
func (c Config) Exhausted(attempts int) bool {
	return c.MaxAttempts > 0 && attempts >= c.MaxAttempts
}
