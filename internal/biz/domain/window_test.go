package domain

import (
	"fmt"
	"testing"
)

func makeMessage(i int) ChatMessage {
	return ChatMessage{
		ID:         fmt.Sprintf("msg-%d", i),
		AuthorID:   fmt.Sprintf("user-%d", i%3),
		AuthorName: fmt.Sprintf("User %d", i%3),
		Content:    fmt.Sprintf("message %d", i),
	}
}

func TestChannelWindow_FIFOEviction(t *testing.T) {
	w := NewChannelWindow(5)

	for i := 0; i < 17; i++ {
		w.Ingest(makeMessage(i))
		if w.Len() > 5 {
			t.Fatalf("buffer grew to %d, capacity is 5", w.Len())
		}
	}

	snap := w.TakeSnapshot()
	if len(snap.Messages) != 5 {
		t.Fatalf("snapshot has %d messages, want 5", len(snap.Messages))
	}
	// Most recent 5 in arrival order: 12..16
	for i, msg := range snap.Messages {
		want := fmt.Sprintf("msg-%d", 12+i)
		if msg.ID != want {
			t.Errorf("snapshot[%d].ID = %q, want %q", i, msg.ID, want)
		}
	}
}

func TestChannelWindow_ShouldTrigger(t *testing.T) {
	w := NewChannelWindow(10)

	for i := 0; i < 2; i++ {
		w.Ingest(makeMessage(i))
		if w.ShouldTrigger(3) {
			t.Fatalf("triggered after %d messages, threshold is 3", i+1)
		}
	}

	w.Ingest(makeMessage(2))
	if !w.ShouldTrigger(3) {
		t.Fatal("expected trigger after 3 messages")
	}

	// Counter reset on trigger
	if w.ShouldTrigger(3) {
		t.Fatal("counter should have been reset by the trigger")
	}
}

func TestChannelWindow_ZeroThresholdDisables(t *testing.T) {
	w := NewChannelWindow(10)
	for i := 0; i < 50; i++ {
		w.Ingest(makeMessage(i))
	}
	if w.ShouldTrigger(0) {
		t.Error("threshold 0 must never trigger")
	}
	if w.ShouldTrigger(-1) {
		t.Error("negative threshold must never trigger")
	}
}

func TestChannelWindow_SnapshotIsDecoupled(t *testing.T) {
	w := NewChannelWindow(5)
	w.Ingest(makeMessage(0))
	w.SetSummary("before")

	snap := w.TakeSnapshot()

	// Live window keeps moving; the snapshot must not.
	w.Ingest(makeMessage(1))
	w.SetSummary("after")

	if len(snap.Messages) != 1 || snap.Messages[0].ID != "msg-0" {
		t.Errorf("snapshot changed after ingest: %+v", snap.Messages)
	}
	if snap.Summary != "before" {
		t.Errorf("snapshot summary = %q, want %q", snap.Summary, "before")
	}
}

func TestCycleStateMachine(t *testing.T) {
	w := NewChannelWindow(5)

	if w.State() != CycleIdle {
		t.Fatalf("initial state = %v, want idle", w.State())
	}

	// Idle -> Running
	if !w.BeginCycle() {
		t.Fatal("first trigger should start a cycle")
	}
	if w.State() != CycleRunning {
		t.Fatalf("state = %v, want running", w.State())
	}

	// Running -> RunningDeferred
	if w.BeginCycle() {
		t.Fatal("trigger while running must be deferred, not admitted")
	}
	if w.State() != CycleRunningDeferred {
		t.Fatalf("state = %v, want running+deferred", w.State())
	}

	// Third trigger while deferred is a no-op
	if w.BeginCycle() {
		t.Fatal("trigger while deferred must be a no-op")
	}
	if w.State() != CycleRunningDeferred {
		t.Fatalf("state = %v, want running+deferred", w.State())
	}

	// RunningDeferred -> Running: caller must run again
	if !w.FinishCycle() {
		t.Fatal("completing with a deferred trigger must request a re-run")
	}
	if w.State() != CycleRunning {
		t.Fatalf("state = %v, want running", w.State())
	}

	// Running -> Idle
	if w.FinishCycle() {
		t.Fatal("completing without a deferred trigger must not request a re-run")
	}
	if w.State() != CycleIdle {
		t.Fatalf("state = %v, want idle", w.State())
	}
}

func TestChannelWindow_Reset(t *testing.T) {
	w := NewChannelWindow(5)
	w.Ingest(makeMessage(0))
	w.Ingest(makeMessage(1))
	w.SetSummary("something happened")
	w.BeginCycle()

	w.Reset()

	if w.Len() != 0 {
		t.Errorf("buffer length = %d after reset, want 0", w.Len())
	}
	if w.Summary() != "" {
		t.Errorf("summary = %q after reset, want empty", w.Summary())
	}
	if w.State() != CycleIdle {
		t.Errorf("state = %v after reset, want idle", w.State())
	}
	if w.ShouldTrigger(1) {
		t.Error("counter should be zero after reset")
	}
}

func TestSnapshot_IDSets(t *testing.T) {
	snap := Snapshot{Messages: []ChatMessage{
		{ID: "m1", AuthorID: "a"},
		{ID: "m2", AuthorID: "b"},
		{ID: "m3", AuthorID: "a"},
	}}

	msgIDs := snap.MessageIDs()
	if len(msgIDs) != 3 {
		t.Errorf("got %d message ids, want 3", len(msgIDs))
	}
	if _, ok := msgIDs["m2"]; !ok {
		t.Error("m2 missing from message id set")
	}

	authorIDs := snap.AuthorIDs()
	if len(authorIDs) != 2 {
		t.Errorf("got %d author ids, want 2", len(authorIDs))
	}
	if _, ok := authorIDs["b"]; !ok {
		t.Error("b missing from author id set")
	}
}

func TestMember_IsProtected(t *testing.T) {
	tests := []struct {
		name   string
		member Member
		want   bool
	}{
		{"plain user", Member{ID: "u1"}, false},
		{"bot", Member{ID: "u2", IsBot: true}, true},
		{"admin", Member{ID: "u3", Permissions: PermissionAdministrator}, true},
		{"moderator", Member{ID: "u4", Permissions: PermissionModerateMembers}, true},
		{"unrelated permission", Member{ID: "u5", Permissions: 1 << 10}, false},
	}

	for _, tt := range tests {
		if got := tt.member.IsProtected(); got != tt.want {
			t.Errorf("%s: IsProtected() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
