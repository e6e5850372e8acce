package session

import "testing"

func TestHistoryPushAndRecall(t *testing.T) {
	h := NewHistory(3)
	h.Push("show version", "10.0.0.1:1025")
	h.Push("show ip route", "10.0.0.1:1025")
	h.Push("exit", "10.0.0.1:1025")

	if line, ok := h.Prev(); !ok || line != "exit" {
		t.Fatalf("got %q, %v", line, ok)
	}
	if line, ok := h.Prev(); !ok || line != "show ip route" {
		t.Fatalf("got %q, %v", line, ok)
	}
	if line, ok := h.Prev(); !ok || line != "show version" {
		t.Fatalf("got %q, %v", line, ok)
	}
	if _, ok := h.Prev(); ok {
		t.Fatalf("expected no entry older than the oldest")
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(2)
	h.Push("a", "")
	h.Push("b", "")
	h.Push("c", "")
	got := h.Snapshot()
	if len(got) != 2 || got[0].Command != "b" || got[1].Command != "c" {
		t.Fatalf("got %v", got)
	}
}

func TestHistoryNextPastNewestReturnsEmpty(t *testing.T) {
	h := NewHistory(5)
	h.Push("a", "")
	h.Push("b", "")
	h.Prev()
	h.Prev()
	if line, ok := h.Next(); !ok || line != "b" {
		t.Fatalf("got %q, %v", line, ok)
	}
	if line, ok := h.Next(); !ok || line != "" {
		t.Fatalf("expected empty line stepping past the newest entry, got %q, %v", line, ok)
	}
}

func TestHistoryRecordsTimestampAndClientIP(t *testing.T) {
	h := NewHistory(5)
	h.Push("show version", "192.0.2.1:4444")
	got := h.Snapshot()
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].ClientIP != "192.0.2.1:4444" {
		t.Fatalf("expected client ip recorded, got %q", got[0].ClientIP)
	}
	if got[0].Timestamp.IsZero() {
		t.Fatal("expected a non-zero timestamp")
	}
}

func TestHistoryPushDedupsRepeatedCommand(t *testing.T) {
	h := NewHistory(5)
	h.Push("show version", "")
	h.Push("show version", "")
	h.Push("show version", "")
	got := h.Snapshot()
	if len(got) != 1 {
		t.Fatalf("expected repeated identical commands to collapse to 1 entry, got %d", len(got))
	}

	h.Push("exit", "")
	got = h.Snapshot()
	if len(got) != 2 || got[1].Command != "exit" {
		t.Fatalf("expected a non-duplicate command to still be pushed, got %v", got)
	}
}
