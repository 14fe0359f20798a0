package debug

import (
	"strings"
	"testing"
	"time"
)

func TestAddf(t *testing.T) {
	m := New()
	m.Addf("ws", "connected to %s", "ws://x")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if got := m.Entries[0].Message; got != "connected to ws://x" {
		t.Errorf("Message = %q", got)
	}
}

func TestRepeatsCollapse(t *testing.T) {
	m := New()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	m.Addf("act", "a on")
	base = base.Add(time.Second)
	m.Addf("act", "a on")
	m.Addf("ws", "a on")

	if len(m.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m.Entries))
	}
	if m.Entries[0].Repeat != 2 {
		t.Errorf("Repeat = %d, want 2", m.Entries[0].Repeat)
	}
	if !m.Entries[0].Time.Equal(base) {
		t.Error("repeat should refresh the entry time")
	}
	if !strings.Contains(m.View(80, 20), "(×2)") {
		t.Error("View should show the repeat count")
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Addf("ws", "msg %d", i)
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
	if got := m.Entries[0].Message; got != "msg 50" {
		t.Errorf("oldest entry = %q, want msg 50", got)
	}
}

func TestScroll(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Addf("ws", "msg %d", i)
	}

	m.ScrollUp(2)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}
	m.ScrollUp(100)
	if m.Offset != 4 {
		t.Errorf("expected offset capped at 4, got %d", m.Offset)
	}
	m.ScrollDown(100)
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}

	m.ScrollUp(3)
	m.Addf("ws", "new")
	if m.Offset != 0 {
		t.Error("new entry should reset scroll to bottom")
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	if !strings.Contains(m.View(80, 20), "Nothing logged yet") {
		t.Error("empty view should show placeholder")
	}
}
