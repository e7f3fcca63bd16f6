// Package mock provides test doubles for [stream.Pipeline] and [stream.Handle].
//
// A [Handle] stays running until the test calls [Handle.Finish] (simulating
// the stream ending on its own) or the code under test calls Stop.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/airwave/pkg/audio"
	"github.com/MrWong99/airwave/pkg/stream"
)

// Handle is a controllable [stream.Handle].
type Handle struct {
	URL string

	mu        sync.Mutex
	done      chan struct{}
	err       error
	stopCalls int
	closed    bool
}

// NewHandle returns a running Handle for url.
func NewHandle(url string) *Handle {
	return &Handle{URL: url, done: make(chan struct{})}
}

// Done implements [stream.Handle].
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err implements [stream.Handle].
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stop implements [stream.Handle]. The pipeline ends with a nil error.
func (h *Handle) Stop() {
	h.mu.Lock()
	h.stopCalls++
	h.mu.Unlock()
	h.Finish(nil)
}

// Finish ends the pipeline with err. Only the first call has an effect.
func (h *Handle) Finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.err = err
	close(h.done)
}

// StopCalls returns how many times Stop was called.
func (h *Handle) StopCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopCalls
}

// Pipeline is a mock [stream.Pipeline].
type Pipeline struct {
	mu sync.Mutex

	// StartError, when non-nil, is returned by Start.
	StartError error

	// StartFunc, when set, replaces the default behaviour.
	StartFunc func(ctx context.Context, url string, out chan<- audio.AudioFrame) (stream.Handle, error)

	handles []*Handle
	urls    []string
}

// Start implements [stream.Pipeline].
func (p *Pipeline) Start(ctx context.Context, url string, out chan<- audio.AudioFrame) (stream.Handle, error) {
	p.mu.Lock()
	p.urls = append(p.urls, url)
	fn := p.StartFunc
	startErr := p.StartError
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, url, out)
	}
	if startErr != nil {
		return nil, startErr
	}
	h := NewHandle(url)
	p.mu.Lock()
	p.handles = append(p.handles, h)
	p.mu.Unlock()
	return h, nil
}

// SetStartError changes StartError under the lock.
func (p *Pipeline) SetStartError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartError = err
}

// Starts returns the URLs passed to Start, in order.
func (p *Pipeline) Starts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.urls))
	copy(out, p.urls)
	return out
}

// Handles returns the handles created by the default behaviour.
func (p *Pipeline) Handles() []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Handle, len(p.handles))
	copy(out, p.handles)
	return out
}

// Last returns the most recent handle, or nil.
func (p *Pipeline) Last() *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.handles) == 0 {
		return nil
	}
	return p.handles[len(p.handles)-1]
}

var (
	_ stream.Pipeline = (*Pipeline)(nil)
	_ stream.Handle   = (*Handle)(nil)
)
