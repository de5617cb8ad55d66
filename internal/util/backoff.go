package util

import "time"

// Backoff doubles a retry delay up to a ceiling. Each retry cycle takes a
// fresh Backoff, so it is not safe for concurrent use.
type Backoff struct {
	next     time.Duration
	maxDelay time.Duration
}

// NewBackoff starts at initial and never exceeds maxDelay.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	return &Backoff{next: min(initial, maxDelay), maxDelay: maxDelay}
}

// Next returns the delay to wait now and doubles the following one.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next = min(2*b.next, b.maxDelay)
	return d
}
