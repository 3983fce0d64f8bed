package voice

import (
	"context"
	"sync"
)

// playback is one track streaming to the connection.
type playback struct {
	cancel context.CancelFunc
	src    Source
	done   chan struct{}

	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func newPlayback(cancel context.CancelFunc, src Source) *playback {
	return &playback{cancel: cancel, src: src, done: make(chan struct{})}
}

func (p *playback) pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return false
	}
	p.paused = true
	p.resume = make(chan struct{})
	return true
}

func (p *playback) unpause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return false
	}
	p.paused = false
	close(p.resume)
	return true
}

func (p *playback) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// wait blocks while paused.
func (p *playback) wait(ctx context.Context) error {
	p.mu.Lock()
	paused, resume := p.paused, p.resume
	p.mu.Unlock()
	if !paused {
		return nil
	}

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
