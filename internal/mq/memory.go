package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const defaultMemoryBuffer = 256

// ErrQueueFull is returned when an in-process channel has no free slot.
var ErrQueueFull = errors.New("queue full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("queue closed")

// MemoryBackend is an in-process, non-durable Backend. Messages whose handler
// fails are dropped.
type MemoryBackend struct {
	mu       sync.Mutex
	buffer   int
	channels map[string]chan Message
	done     chan struct{}
	closed   bool
}

// NewMemoryBackend creates a backend whose channels hold up to buffer pending
// messages. Zero selects a default.
func NewMemoryBackend(buffer int) *MemoryBackend {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryBackend{
		buffer:   buffer,
		channels: make(map[string]chan Message),
		done:     make(chan struct{}),
	}
}

func (b *MemoryBackend) queue(name string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	q, ok := b.channels[name]
	if !ok {
		q = make(chan Message, b.buffer)
		b.channels[name] = q
	}
	return q, nil
}

// Publish enqueues without blocking.
func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("channel is required")
	}
	q, err := b.queue(channel)
	if err != nil {
		return "", err
	}
	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	select {
	case q <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", ErrQueueFull
	}
}

// Subscribe delivers messages to handler until ctx is done or the backend is
// closed.
func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("channel is required")
	}
	q, err := b.queue(channel)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return ErrClosed
		case msg := <-q:
			_ = handler(ctx, msg)
		}
	}
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}
