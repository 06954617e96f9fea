package syncer

import (
	"context"
	"sync"
	"sync/atomic"
)

// Pending tracks one submitted mutation's remote write. The local change
// it belongs to is already visible when Submit returns.
type Pending struct {
	done     chan struct{}
	once     sync.Once
	err      error
	attempts atomic.Int32
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolved(err error) *Pending {
	p := newPending()
	p.resolve(err)
	return p
}

func (p *Pending) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the write has succeeded or been given up on.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the write's final error. It is nil while the write is still
// in flight.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the write finishes or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attempts is how many times the write has been tried so far.
func (p *Pending) Attempts() int { return int(p.attempts.Load()) }
