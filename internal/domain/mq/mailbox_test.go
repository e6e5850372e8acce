package mq

import (
	"sync"
	"testing"
	"time"
)

func TestMailboxOrdering(t *testing.T) {
	mb := New()
	for i := 0; i < 5; i++ {
		if err := mb.Send(Message{RequestID: uint32(i)}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		msg, ok := mb.Receive()
		if !ok {
			t.Fatalf("expected message %d", i)
		}
		if msg.RequestID != uint32(i) {
			t.Fatalf("out of order: got %d want %d", msg.RequestID, i)
		}
	}

	if _, ok := mb.Receive(); ok {
		t.Fatalf("expected empty mailbox")
	}
}

func TestMailboxWait(t *testing.T) {
	mb := New()
	if res := mb.Wait(20 * time.Millisecond); res != Timeout {
		t.Fatalf("expected timeout on empty mailbox, got %v", res)
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = mb.Send(Message{RequestID: 1})
	}()

	if res := mb.Wait(time.Second); res != Ready {
		t.Fatalf("expected ready after send, got %v", res)
	}
	if _, ok := mb.Receive(); !ok {
		t.Fatalf("expected the sent message to still be there")
	}
}

func TestMailboxConcurrentSenders(t *testing.T) {
	mb := New()
	const senders, perSender = 8, 50

	var wg sync.WaitGroup
	wg.Add(senders)
	for s := 0; s < senders; s++ {
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_ = mb.Send(Message{SenderID: uint32(s)})
			}
		}(s)
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := mb.Receive(); !ok {
			break
		}
		count++
	}
	if count != senders*perSender {
		t.Fatalf("got %d messages, want %d", count, senders*perSender)
	}
}

func TestMailboxDestroyDrains(t *testing.T) {
	mb := New()
	_ = mb.Send(Message{RequestID: 1})
	mb.Destroy()

	if err := mb.Send(Message{RequestID: 2}); err != ErrClosed {
		t.Fatalf("expected ErrClosed after Destroy, got %v", err)
	}
}

func TestMailboxClosedReflectsDestroy(t *testing.T) {
	mb := New()
	if mb.Closed() {
		t.Fatalf("fresh mailbox should not report closed")
	}
	mb.Destroy()
	if !mb.Closed() {
		t.Fatalf("expected Closed() true after Destroy")
	}
}
