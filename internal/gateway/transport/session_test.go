package transport

import (
	"context"
	"testing"
	"time"

	"github.com/erauner12/vaultgw/internal/gateway/vaultfs/tools"
)

func testFactory() ToolContextFactory {
	return func(sessionID string) *tools.ToolContext {
		return tools.NewToolContext(nil, sessionID, nil, nil)
	}
}

func TestManager_CreateAssignsUniqueIDs(t *testing.T) {
	m := NewManager(10, testFactory())
	defer m.Shutdown(context.Background())

	s1, err := m.Create("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s2, err := m.Create("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.ID == s2.ID {
		t.Error("expected distinct session IDs")
	}
	if len(s1.ID) != 36 { // canonical UUID string form (8-4-4-4-12)
		t.Errorf("expected 36-char UUID string, got %d", len(s1.ID))
	}
}

func TestManager_CreateRefusesAtCapacity(t *testing.T) {
	m := NewManager(1, testFactory())
	defer m.Shutdown(context.Background())

	if _, err := m.Create(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Create(""); err != ErrAtCapacity {
		t.Fatalf("expected ErrAtCapacity, got %v", err)
	}
}

func TestManager_GetUpdatesLastSeen(t *testing.T) {
	m := NewManager(10, testFactory())
	defer m.Shutdown(context.Background())

	session, _ := m.Create("")
	before := session.idleSince()
	time.Sleep(2 * time.Millisecond)

	if _, err := m.Get(session.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !session.idleSince().After(before) {
		t.Error("expected lastSeen to advance after Get")
	}
}

func TestManager_GetUnknownSessionFails(t *testing.T) {
	m := NewManager(10, testFactory())
	defer m.Shutdown(context.Background())

	if _, err := m.Get("nope"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_TerminateRemovesSession(t *testing.T) {
	m := NewManager(10, testFactory())
	defer m.Shutdown(context.Background())

	session, _ := m.Create("")
	if err := m.Terminate(session.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Get(session.ID); err != ErrSessionNotFound {
		t.Error("expected session to be gone after Terminate")
	}
	if err := m.Terminate(session.ID); err != ErrSessionNotFound {
		t.Error("expected terminating an already-terminated session to fail")
	}
}

func TestManager_ShutdownClosesAllStreams(t *testing.T) {
	m := NewManager(10, testFactory())

	s1, _ := m.Create("")
	s2, _ := m.Create("")

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	s1.stream = &Stream{ctx: ctx1, cancel: cancel1}
	s2.stream = &Stream{ctx: ctx2, cancel: cancel2}

	m.Shutdown(context.Background())

	if m.Count() != 0 {
		t.Errorf("expected 0 sessions after shutdown, got %d", m.Count())
	}
	select {
	case <-ctx1.Done():
	default:
		t.Error("expected s1's stream context to be cancelled")
	}
	select {
	case <-ctx2.Done():
	default:
		t.Error("expected s2's stream context to be cancelled")
	}
}

func TestAttachStream_ClosesPreviousStream(t *testing.T) {
	m := NewManager(10, testFactory())
	defer m.Shutdown(context.Background())

	session, _ := m.Create("")
	ctx, cancel := context.WithCancel(context.Background())
	first := &Stream{ctx: ctx, cancel: cancel}
	session.attachStream(first)

	ctx2, cancel2 := context.WithCancel(context.Background())
	second := &Stream{ctx: ctx2, cancel: cancel2}
	session.attachStream(second)

	select {
	case <-first.Done():
	default:
		t.Error("expected first stream to be closed when superseded")
	}
}
