package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrPoolClosed         = errors.New("sandbox pool is closed")
	ErrAcquireTimeout     = errors.New("sandbox acquisition timeout")
	ErrSharedOuterRuntime = errors.New("sandbox pool cannot share an outer runtime")
)

// Pool manages a set of single-tenant sandboxes. A released sandbox is
// closed and rebuilt rather than reused: the membrane's identity maps
// accumulate every value that ever crossed, and none of that may leak
// to the next tenant.
type Pool struct {
	cfg       Config
	opts      []Option
	sandboxes chan *Sandbox
	size      int
	mu        sync.RWMutex
	closed    bool
}

// NewPool creates a sandbox pool. Construction options are replayed
// for every rebuilt sandbox. WithOuterRuntime is rejected: pool
// members evaluate concurrently and a goja runtime is not safe for
// concurrent use.
func NewPool(cfg Config, size int, opts ...Option) (*Pool, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.outer != nil {
		return nil, ErrSharedOuterRuntime
	}

	if size <= 0 {
		size = 4
	}

	pool := &Pool{
		cfg:       cfg,
		opts:      opts,
		sandboxes: make(chan *Sandbox, size),
		size:      size,
	}

	for i := 0; i < size; i++ {
		sb, err := New(cfg, opts...)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.sandboxes <- sb
	}
	return pool, nil
}

// Acquire gets a sandbox from the pool with timeout
func (p *Pool) Acquire(ctx context.Context) (*Sandbox, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	select {
	case sb := <-p.sandboxes:
		return sb, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, ErrAcquireTimeout
	}
}

// Release retires a sandbox and replaces it with a fresh one.
func (p *Pool) Release(sb *Sandbox) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	closeErr := sb.Close()

	if p.closed {
		return closeErr
	}

	fresh, err := New(p.cfg, p.opts...)
	if err != nil {
		return err
	}
	select {
	case p.sandboxes <- fresh:
		return closeErr
	default:
		// Pool full
		return fresh.Close()
	}
}

// Execute evaluates src using a pooled sandbox.
func (p *Pool) Execute(ctx context.Context, src string) (*Result, error) {
	sb, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(sb)

	return sb.Evaluate(ctx, src)
}

// Close closes the pool and every pooled sandbox.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.sandboxes)

	for sb := range p.sandboxes {
		sb.Close()
	}
	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"size":      p.size,
		"available": len(p.sandboxes),
		"in_use":    p.size - len(p.sandboxes),
		"closed":    p.closed,
	}
}
