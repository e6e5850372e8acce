package mq

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Send once the mailbox has been destroyed.
var ErrClosed = errors.New("mq: mailbox closed")

// WaitResult is the outcome of a bounded Wait call.
type WaitResult int

const (
	Ready WaitResult = iota
	Timeout
)

// Mailbox is a thread-safe FIFO with an event-signaled readiness
// channel standing in for the source's eventfd: the channel is
// readable (len > 0) if and only if the queue is known non-empty,
// subject to the same bounded race the spec calls out — a reader must
// loop on Receive until it returns ok=false rather than trusting a
// single readiness signal to mean exactly one message is pending.
type Mailbox struct {
	mu       sync.Mutex
	queue    []Message
	ready    chan struct{}
	closed   bool
	closedCh chan struct{}
}

// New creates an empty mailbox.
func New() *Mailbox {
	return &Mailbox{
		ready:    make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Send enqueues msg and signals readiness. Safe for concurrent callers
// (MPMC). Deep-copying for isolation is the bus's responsibility (see
// package bus); Mailbox itself just stores what it's handed.
func (m *Mailbox) Send(msg Message) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
		// already signaled; the reader will drain everything anyway
	}
	return nil
}

// Receive pops the head message, non-blocking. ok is false when the
// queue is empty; callers drive a drain loop with Receive until ok is
// false, which is what makes the readiness race safe to ignore.
func (m *Mailbox) Receive() (msg Message, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return Message{}, false
	}
	msg = m.queue[0]
	m.queue = m.queue[1:]
	if len(m.queue) == 0 {
		// drain the readiness signal now that the queue is empty,
		// the same way the source clears the eventfd counter.
		select {
		case <-m.ready:
		default:
		}
	}
	return msg, true
}

// Wait blocks until the mailbox is readable or timeout elapses.
func (m *Mailbox) Wait(timeout time.Duration) WaitResult {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-m.ready:
		// put the signal back: Wait must not consume the slot that
		// Receive uses to know the queue is non-empty.
		select {
		case m.ready <- struct{}{}:
		default:
		}
		return Ready
	case <-m.closedCh:
		return Ready
	case <-t.C:
		return Timeout
	}
}

// Closed reports whether Destroy has been called, so a module's
// message loop can tell "woke up because of shutdown" apart from
// "woke up because of a message" without busy-spinning on Wait once
// the mailbox is gone.
func (m *Mailbox) Closed() bool {
	select {
	case <-m.closedCh:
		return true
	default:
		return false
	}
}

// Destroy drains any remaining messages (there is no free-hook to run;
// Owned payloads are simply released to the GC) and marks the mailbox
// unusable for further sends.
func (m *Mailbox) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	close(m.closedCh)
}
