package rooms

import (
	"errors"
	"sync"
	"testing"

	"rehearsal-api/internal/domain/principal"
)

type stubSender struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (s *stubSender) TrySend(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("buffer full")
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestAddRemoveSize(t *testing.T) {
	r := NewRegistry()
	p := principal.Principal{UserID: "u1"}

	r.Add("sess-1", "c1", p, &stubSender{})
	r.Add("sess-1", "c2", p, &stubSender{})
	if got := r.Size("sess-1"); got != 2 {
		t.Fatalf("size = %d, want 2", got)
	}

	if empty := r.Remove("sess-1", "c1"); empty {
		t.Error("room with remaining member reported empty")
	}
	if empty := r.Remove("sess-1", "c2"); !empty {
		t.Error("last removal must report the room empty")
	}
	if got := r.Size("sess-1"); got != 0 {
		t.Errorf("size after removals = %d, want 0", got)
	}

	// Removing from a gone room is harmless.
	if empty := r.Remove("sess-1", "c1"); !empty {
		t.Error("removal from missing room must report empty")
	}
}

func TestLiveConnections(t *testing.T) {
	r := NewRegistry()
	r.Add("sess-1", "c1", principal.Principal{UserID: "u1"}, &stubSender{})
	r.Add("sess-1", "c2", principal.Principal{UserID: "u2"}, &stubSender{})

	live := r.LiveConnections("sess-1")
	if !live["c1"] || !live["c2"] || len(live) != 2 {
		t.Errorf("live connections = %v, want c1 and c2", live)
	}
	if got := r.LiveConnections("sess-missing"); len(got) != 0 {
		t.Errorf("missing room live connections = %v, want empty", got)
	}
}

func TestBroadcastExcludesAndSurvivesFailures(t *testing.T) {
	r := NewRegistry()
	a := &stubSender{}
	b := &stubSender{fail: true}
	c := &stubSender{}
	r.Add("sess-1", "ca", principal.Principal{UserID: "ua"}, a)
	r.Add("sess-1", "cb", principal.Principal{UserID: "ub"}, b)
	r.Add("sess-1", "cc", principal.Principal{UserID: "uc"}, c)

	r.Broadcast("sess-1", []byte(`{"type":"song_quit"}`), "cc")

	if a.count() != 1 {
		t.Errorf("a frames = %d, want 1", a.count())
	}
	if b.count() != 0 {
		t.Errorf("failing sender frames = %d, want 0", b.count())
	}
	if c.count() != 0 {
		t.Errorf("excluded sender frames = %d, want 0", c.count())
	}
}

func TestDropRoom(t *testing.T) {
	r := NewRegistry()
	r.Add("sess-1", "c1", principal.Principal{UserID: "u1"}, &stubSender{})
	r.Add("sess-1", "c2", principal.Principal{UserID: "u2"}, &stubSender{})

	r.DropRoom("sess-1")
	if got := r.Size("sess-1"); got != 0 {
		t.Fatalf("size after drop = %d, want 0", got)
	}
	// Dropping twice is harmless.
	r.DropRoom("sess-1")
}
