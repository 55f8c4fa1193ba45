package session

import (
	"sync"
	"testing"
	"time"
)

func TestGet_CreatesIdleSession(t *testing.T) {
	store := NewMemoryStore(0)

	s := store.Get("discord:1")
	if s.State != StateIdle {
		t.Errorf("State = %q, want %q", s.State, StateIdle)
	}
	if s.Payload != "" {
		t.Errorf("Payload = %q, want empty", s.Payload)
	}
}

func TestSetGet_RoundTrip(t *testing.T) {
	store := NewMemoryStore(0)

	store.Set("discord:1", Session{State: StateAwaiting, Payload: "dentista"})
	s := store.Get("discord:1")
	if s.State != StateAwaiting {
		t.Errorf("State = %q, want %q", s.State, StateAwaiting)
	}
	if s.Payload != "dentista" {
		t.Errorf("Payload = %q, want dentista", s.Payload)
	}
}

func TestClear_ResetsToIdle(t *testing.T) {
	store := NewMemoryStore(0)

	store.Set("discord:1", Session{State: StateAwaiting, Payload: "x"})
	store.Clear("discord:1")

	s := store.Get("discord:1")
	if s.State != StateIdle {
		t.Errorf("State = %q, want %q", s.State, StateIdle)
	}
	if s.Payload != "" {
		t.Errorf("Payload = %q, want dropped", s.Payload)
	}
}

func TestClear_IdleIsNoop(t *testing.T) {
	store := NewMemoryStore(0)

	before := store.Get("discord:1")
	store.Clear("discord:1")
	after := store.Get("discord:1")

	if before != after {
		t.Errorf("clear on idle session changed state: %+v != %+v", before, after)
	}
}

func TestSessions_AreIndependentPerKey(t *testing.T) {
	store := NewMemoryStore(0)

	store.Set(Key("discord", "1"), Session{State: StateAwaiting})
	if s := store.Get(Key("discord", "2")); s.State != StateIdle {
		t.Errorf("other user State = %q, want idle", s.State)
	}
	if s := store.Get(Key("slack", "1")); s.State != StateIdle {
		t.Errorf("other platform State = %q, want idle", s.State)
	}
}

func TestTTL_ExpiresToIdle(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Set("discord:1", Session{State: StateAwaiting})

	now = now.Add(29 * time.Minute)
	if s := store.Get("discord:1"); s.State != StateAwaiting {
		t.Errorf("State before TTL = %q, want awaiting", s.State)
	}

	now = now.Add(2 * time.Minute)
	if s := store.Get("discord:1"); s.State != StateIdle {
		t.Errorf("State after TTL = %q, want idle", s.State)
	}
}

func TestZeroTTL_NeverExpires(t *testing.T) {
	store := NewMemoryStore(0)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Set("discord:1", Session{State: StateAwaiting})
	now = now.Add(1000 * time.Hour)

	if s := store.Get("discord:1"); s.State != StateAwaiting {
		t.Errorf("State = %q, want awaiting (no expiry)", s.State)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(0)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Set("discord:1", Session{State: StateAwaiting})
			store.Get("discord:1")
			store.Clear("discord:1")
		}()
	}
	wg.Wait()

	s := store.Get("discord:1")
	if s.State != StateIdle && s.State != StateAwaiting {
		t.Errorf("unexpected final state %q", s.State)
	}
}
