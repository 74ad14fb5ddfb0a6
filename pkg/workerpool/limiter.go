package workerpool

import "context"

// Limiter bounds the number of concurrent operations shared across tasks.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter creates a limiter allowing max concurrent holders (minimum 1).
func NewLimiter(max int) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free or ctx ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	<-l.slots
}

// Cap returns the maximum number of concurrent holders.
func (l *Limiter) Cap() int {
	return cap(l.slots)
}
