package changefeed

import (
	"context"
	"errors"
	"sync"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// ErrBufferFull is returned when the memory publisher's buffer is full.
var ErrBufferFull = errors.New("memory publisher buffer is full")

func init() {
	RegisterFactory(&memoryFactory{})
}

type memoryFactory struct{}

func (f *memoryFactory) Type() string { return "memory" }

func (f *memoryFactory) Validate(config Config) error {
	if config.BufferSize < 0 {
		return errors.New("buffer size must be non-negative")
	}
	return nil
}

func (f *memoryFactory) Create(_ context.Context, config Config) (core.ChangePublisher, error) {
	return NewMemoryPublisher(config.BufferSize), nil
}

// MemoryPublisher buffers events in a channel.
// This is useful for testing or for in-process consumers.
type MemoryPublisher struct {
	events chan *core.ChangeEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemoryPublisher creates an in-memory publisher.
// bufferSize is the maximum number of undelivered events.
func NewMemoryPublisher(bufferSize int) *MemoryPublisher {
	if bufferSize <= 0 {
		bufferSize = 10000 // Default buffer size
	}
	return &MemoryPublisher{
		events: make(chan *core.ChangeEvent, bufferSize),
	}
}

// Publish buffers the event. It never blocks: a full buffer is an error.
func (p *MemoryPublisher) Publish(ctx context.Context, event *core.ChangeEvent) error {
	if err := checkEvent(event); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// Events returns the channel events are delivered on. It is closed by Close.
func (p *MemoryPublisher) Events() <-chan *core.ChangeEvent {
	return p.events
}

// Drain returns every buffered event without blocking.
func (p *MemoryPublisher) Drain() []*core.ChangeEvent {
	var out []*core.ChangeEvent
	for {
		select {
		case event, ok := <-p.events:
			if !ok {
				return out
			}
			out = append(out, event)
		default:
			return out
		}
	}
}

// Len returns the number of buffered events.
func (p *MemoryPublisher) Len() int {
	return len(p.events)
}

// Close stops publishing and closes the events channel.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.events)
	return nil
}
