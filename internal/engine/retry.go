package engine

import "time"

const (
	DefaultRetries = 3

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// Decision is the outcome of a retry consultation.
type Decision struct {
	Retry   bool
	Backoff time.Duration
}

// Policy decides whether a failed attempt is retried and how long to wait
// first. Zero-valued Base and Cap fall back to the package defaults.
type Policy struct {
	MaxRetries int
	Base       time.Duration
	Cap        time.Duration
}

// Decide gives up immediately on non-transient kinds and once MaxRetries
// attempts have failed. Backoff doubles per attempt so a struggling server
// is not hammered.
func (p Policy) Decide(rc RetryContext) Decision {
	if !rc.Kind.Transient() {
		return Decision{}
	}
	if rc.Attempt >= p.MaxRetries {
		return Decision{}
	}
	base := p.Base
	if base == 0 {
		base = retryBaseDelay
	}
	ceiling := p.Cap
	if ceiling == 0 {
		ceiling = retryMaxDelay
	}
	backoff := base << (rc.Attempt - 1)
	if backoff > ceiling || backoff <= 0 {
		backoff = ceiling
	}
	return Decision{Retry: true, Backoff: backoff}
}
