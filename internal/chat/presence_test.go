package chat

import (
	"sync"
	"testing"
	"time"
)

type presenceRecorder struct {
	mu          sync.Mutex
	transitions []bool
}

func (r *presenceRecorder) notify(_ int64, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, online)
}

func (r *presenceRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.transitions))
	copy(out, r.transitions)
	return out
}

func TestPresenceFirstConnectBroadcastsOnline(t *testing.T) {
	rec := &presenceRecorder{}
	tr := NewPresenceTracker(time.Hour, rec.notify)
	defer tr.Stop()

	tr.Connect(1)
	tr.Connect(1) // second session, no transition

	got := rec.snapshot()
	if len(got) != 1 || !got[0] {
		t.Fatalf("expected a single online transition, got %v", got)
	}
	if !tr.Online(1) {
		t.Fatal("expected user online")
	}
}

func TestPresenceReconnectWithinGraceIsSilent(t *testing.T) {
	rec := &presenceRecorder{}
	tr := NewPresenceTracker(200*time.Millisecond, rec.notify)
	defer tr.Stop()

	tr.Connect(1)
	tr.Disconnect(1)

	// Inside the grace window the user still reads as online.
	if !tr.Online(1) {
		t.Fatal("expected user online during grace window")
	}

	tr.Connect(1)
	time.Sleep(400 * time.Millisecond)

	// The flap produced neither an offline nor a second online broadcast.
	got := rec.snapshot()
	if len(got) != 1 || !got[0] {
		t.Fatalf("expected only the initial online transition, got %v", got)
	}
	if !tr.Online(1) {
		t.Fatal("expected user still online after reconnect")
	}
}

func TestPresenceOfflineAfterGraceExpires(t *testing.T) {
	rec := &presenceRecorder{}
	tr := NewPresenceTracker(50*time.Millisecond, rec.notify)
	defer tr.Stop()

	tr.Connect(1)
	tr.Disconnect(1)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.snapshot()) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	got := rec.snapshot()
	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Fatalf("expected online then offline, got %v", got)
	}
	if tr.Online(1) {
		t.Fatal("expected user offline after grace expiry")
	}
}

func TestPresenceLastSessionOnly(t *testing.T) {
	rec := &presenceRecorder{}
	tr := NewPresenceTracker(50*time.Millisecond, rec.notify)
	defer tr.Stop()

	tr.Connect(1)
	tr.Connect(1)
	tr.Disconnect(1)

	// One session remains; no grace timer runs.
	time.Sleep(150 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 {
		t.Fatalf("expected no offline while a session remains, got %v", got)
	}
	if !tr.Online(1) {
		t.Fatal("expected user online with one session left")
	}
}

func TestPresenceStopCancelsPending(t *testing.T) {
	rec := &presenceRecorder{}
	tr := NewPresenceTracker(50*time.Millisecond, rec.notify)

	tr.Connect(1)
	tr.Disconnect(1)
	tr.Stop()

	time.Sleep(150 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 {
		t.Fatalf("expected stop to cancel the pending offline, got %v", got)
	}
}
