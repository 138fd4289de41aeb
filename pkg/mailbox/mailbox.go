package mailbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gferrors "github.com/vnykmshr/taskpool/pkg/common/errors"
)

// ErrClosed is returned by Send on a closed Sender, and by Receive once every
// Sender is closed and the buffer is drained.
var ErrClosed = gferrors.ErrClosed

// ErrDisconnected is returned by Send once the Receiver has been closed.
var ErrDisconnected = gferrors.ErrDisconnected

const initialRing = 16

// Config holds configuration for a mailbox.
type Config struct {
	// Capacity bounds the number of buffered values. Zero (or a negative
	// value) means unbounded: the buffer grows and Send never blocks.
	Capacity int

	// OnDiscard is called for every buffered value dropped when the
	// Receiver is closed.
	OnDiscard func(value interface{})
}

// Stats holds counters describing mailbox activity.
type Stats struct {
	// SendCount is the number of values accepted by Send.
	SendCount int64

	// ReceiveCount is the number of values handed to the receiver.
	ReceiveCount int64

	// RejectedCount is the number of sends refused because the receiver is gone.
	RejectedCount int64

	// DiscardedCount is the number of buffered values dropped by Receiver.Close.
	DiscardedCount int64

	// BlockedSends is the number of sends that waited for space (bounded only).
	BlockedSends int64

	// Senders is the number of open Sender handles.
	Senders int

	// LastSendTime is the timestamp of the last accepted send.
	LastSendTime time.Time

	// LastReceiveTime is the timestamp of the last receive.
	LastReceiveTime time.Time
}

type mailbox[T any] struct {
	config Config

	mu     sync.Mutex
	buffer []T
	head   int
	count  int

	senders    int
	recvClosed bool

	sendCond *sync.Cond
	recvCond *sync.Cond

	stats Stats
}

// Sender is one producer handle. Clone it to add producers; the mailbox
// closes for receiving once every Sender has been closed.
type Sender[T any] struct {
	mb     *mailbox[T]
	closed atomic.Bool
}

// Receiver is the single consuming end of a mailbox.
type Receiver[T any] struct {
	mb *mailbox[T]
}

// New creates an unbounded mailbox and returns its first Sender and its Receiver.
func New[T any]() (*Sender[T], *Receiver[T]) {
	return NewWithConfig[T](Config{})
}

// NewWithConfig creates a mailbox with the specified configuration.
func NewWithConfig[T any](config Config) (*Sender[T], *Receiver[T]) {
	if config.Capacity < 0 {
		config.Capacity = 0
	}

	size := initialRing
	if config.Capacity > 0 {
		size = config.Capacity
	}

	mb := &mailbox[T]{
		config:  config,
		buffer:  make([]T, size),
		senders: 1,
	}
	mb.sendCond = sync.NewCond(&mb.mu)
	mb.recvCond = sync.NewCond(&mb.mu)

	return &Sender[T]{mb: mb}, &Receiver[T]{mb: mb}
}

// Clone returns a new Sender for the same mailbox. Cloning a closed Sender
// returns a closed Sender.
func (s *Sender[T]) Clone() *Sender[T] {
	clone := &Sender[T]{mb: s.mb}

	s.mb.mu.Lock()
	defer s.mb.mu.Unlock()

	if s.closed.Load() {
		clone.closed.Store(true)
		return clone
	}
	s.mb.senders++
	return clone
}

// Close releases this Sender. It is idempotent.
func (s *Sender[T]) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.mb.mu.Lock()
	defer s.mb.mu.Unlock()

	s.mb.senders--
	if s.mb.senders == 0 {
		s.mb.recvCond.Broadcast()
	}
}

// Send enqueues value. It fails with ErrClosed if this Sender was closed and
// with ErrDisconnected if the Receiver is gone. On a bounded mailbox it
// blocks while the buffer is full.
func (s *Sender[T]) Send(value T) error {
	return s.SendContext(context.Background(), value)
}

// SendContext is Send that gives up waiting for space when ctx is done.
// An unbounded mailbox never waits, so ctx only matters for bounded ones.
func (s *Sender[T]) SendContext(ctx context.Context, value T) error {
	if s.closed.Load() {
		return ErrClosed
	}

	mb := s.mb
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.bounded() && mb.count >= len(mb.buffer) && !mb.recvClosed {
		stop := context.AfterFunc(ctx, func() {
			mb.mu.Lock()
			mb.sendCond.Broadcast()
			mb.mu.Unlock()
		})
		defer stop()

		mb.stats.BlockedSends++
		for mb.count >= len(mb.buffer) && !mb.recvClosed {
			if err := ctx.Err(); err != nil {
				return err
			}
			mb.sendCond.Wait()
		}
	}

	if mb.recvClosed {
		mb.stats.RejectedCount++
		return ErrDisconnected
	}

	mb.pushLocked(value)
	mb.stats.SendCount++
	mb.stats.LastSendTime = time.Now()
	mb.recvCond.Signal()

	return nil
}

// Receive blocks until a value is available. Once every Sender is closed it
// keeps returning buffered values in order, then ErrClosed.
func (r *Receiver[T]) Receive() (T, error) {
	var zero T
	mb := r.mb

	mb.mu.Lock()
	defer mb.mu.Unlock()

	for mb.count == 0 && mb.senders > 0 && !mb.recvClosed {
		mb.recvCond.Wait()
	}

	if mb.count == 0 {
		return zero, ErrClosed
	}

	return mb.popLocked(), nil
}

// TryReceive returns the next value without blocking. The boolean reports
// whether a value was returned; the error is ErrClosed once the mailbox is
// drained and has no senders.
func (r *Receiver[T]) TryReceive() (T, bool, error) {
	var zero T
	mb := r.mb

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.count == 0 {
		if mb.senders == 0 || mb.recvClosed {
			return zero, false, ErrClosed
		}
		return zero, false, nil
	}

	return mb.popLocked(), true, nil
}

// Close marks the consumer as gone. Buffered values are discarded and every
// later Send fails with ErrDisconnected. It returns the number of values
// discarded and is idempotent.
func (r *Receiver[T]) Close() int {
	mb := r.mb

	mb.mu.Lock()
	if mb.recvClosed {
		mb.mu.Unlock()
		return 0
	}
	mb.recvClosed = true

	dropped := make([]T, 0, mb.count)
	for mb.count > 0 {
		dropped = append(dropped, mb.popLocked())
	}
	mb.stats.ReceiveCount -= int64(len(dropped))
	mb.stats.DiscardedCount += int64(len(dropped))
	mb.sendCond.Broadcast()
	mb.recvCond.Broadcast()
	mb.mu.Unlock()

	if mb.config.OnDiscard != nil {
		for _, v := range dropped {
			mb.config.OnDiscard(v)
		}
	}

	return len(dropped)
}

// Len returns the current number of buffered values.
func (r *Receiver[T]) Len() int {
	r.mb.mu.Lock()
	defer r.mb.mu.Unlock()
	return r.mb.count
}

// Cap returns the configured capacity, 0 for an unbounded mailbox.
func (r *Receiver[T]) Cap() int {
	return r.mb.config.Capacity
}

// Stats returns a snapshot of the mailbox counters.
func (r *Receiver[T]) Stats() Stats {
	r.mb.mu.Lock()
	defer r.mb.mu.Unlock()

	stats := r.mb.stats
	stats.Senders = r.mb.senders
	return stats
}

func (mb *mailbox[T]) bounded() bool {
	return mb.config.Capacity > 0
}

// pushLocked appends a value, growing an unbounded ring (must hold lock).
func (mb *mailbox[T]) pushLocked(value T) {
	if mb.count == len(mb.buffer) {
		mb.growLocked()
	}
	mb.buffer[(mb.head+mb.count)%len(mb.buffer)] = value
	mb.count++
}

// popLocked removes the oldest value (must hold lock).
func (mb *mailbox[T]) popLocked() T {
	var zero T
	value := mb.buffer[mb.head]
	mb.buffer[mb.head] = zero
	mb.head = (mb.head + 1) % len(mb.buffer)
	mb.count--

	mb.stats.ReceiveCount++
	mb.stats.LastReceiveTime = time.Now()
	mb.sendCond.Signal()

	return value
}

func (mb *mailbox[T]) growLocked() {
	grown := make([]T, len(mb.buffer)*2)
	for i := 0; i < mb.count; i++ {
		grown[i] = mb.buffer[(mb.head+i)%len(mb.buffer)]
	}
	mb.buffer = grown
	mb.head = 0
}
