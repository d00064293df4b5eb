package domain

// CycleState is the per-channel auto-action cycle state machine.
//
// Transitions:
//
//	Idle            --trigger--> Running           (cycle starts)
//	Running         --trigger--> RunningDeferred   (re-run remembered)
//	RunningDeferred --trigger--> RunningDeferred   (no-op, one slot only)
//	Running         --complete-> Idle
//	RunningDeferred --complete-> Running           (deferred run starts)
type CycleState int

const (
	CycleIdle CycleState = iota
	CycleRunning
	CycleRunningDeferred
)

func (s CycleState) String() string {
	switch s {
	case CycleIdle:
		return "idle"
	case CycleRunning:
		return "running"
	case CycleRunningDeferred:
		return "running+deferred"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of a channel window taken at cycle start.
// The live window keeps accumulating while a cycle works on its snapshot.
type Snapshot struct {
	Messages []ChatMessage
	Summary  string
}

// MessageIDs returns the set of message ids present in the snapshot.
func (s Snapshot) MessageIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Messages))
	for _, msg := range s.Messages {
		ids[msg.ID] = struct{}{}
	}
	return ids
}

// AuthorIDs returns the set of author ids present in the snapshot.
func (s Snapshot) AuthorIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Messages))
	for _, msg := range s.Messages {
		ids[msg.AuthorID] = struct{}{}
	}
	return ids
}

// ChannelWindow holds the per-channel auto-action state: a bounded FIFO of
// recent messages, the trigger counter, the running summary carried across
// cycles, and the cycle state machine. It is not safe for concurrent use;
// callers serialize access (the service holds a per-channel mutex).
type ChannelWindow struct {
	size    int
	counter int
	buffer  []ChatMessage
	summary string
	state   CycleState
}

// NewChannelWindow creates a window keeping at most size messages.
func NewChannelWindow(size int) *ChannelWindow {
	if size < 1 {
		size = 1
	}
	return &ChannelWindow{size: size}
}

// Ingest appends a message, evicting the oldest when over capacity, and
// increments the trigger counter. Never blocks, no side effects.
func (w *ChannelWindow) Ingest(msg ChatMessage) {
	w.buffer = append(w.buffer, msg)
	if len(w.buffer) > w.size {
		w.buffer = w.buffer[1:]
	}
	w.counter++
}

// ShouldTrigger reports whether the trigger counter reached the threshold,
// resetting the counter when it did. A threshold of 0 or less never triggers.
func (w *ChannelWindow) ShouldTrigger(threshold int) bool {
	if threshold <= 0 {
		return false
	}
	if w.counter < threshold {
		return false
	}
	w.counter = 0
	return true
}

// TakeSnapshot returns an immutable copy of the buffer and running summary.
func (w *ChannelWindow) TakeSnapshot() Snapshot {
	messages := make([]ChatMessage, len(w.buffer))
	copy(messages, w.buffer)
	return Snapshot{Messages: messages, Summary: w.summary}
}

// Summary returns the running summary.
func (w *ChannelWindow) Summary() string {
	return w.summary
}

// SetSummary overwrites the running summary. Callers only do this with a
// non-empty cycle result; an empty plan summary keeps the previous one.
func (w *ChannelWindow) SetSummary(summary string) {
	w.summary = summary
}

// Len returns the number of buffered messages.
func (w *ChannelWindow) Len() int {
	return len(w.buffer)
}

// State returns the current cycle state.
func (w *ChannelWindow) State() CycleState {
	return w.state
}

// BeginCycle admits or defers a cycle trigger. It returns true when the
// caller owns a new cycle and must run it; false when a cycle is already
// running and the re-run was coalesced into the single deferred slot.
func (w *ChannelWindow) BeginCycle() bool {
	switch w.state {
	case CycleIdle:
		w.state = CycleRunning
		return true
	case CycleRunning:
		w.state = CycleRunningDeferred
		return false
	default:
		// Already deferred; further triggers collapse into the same slot.
		return false
	}
}

// FinishCycle completes the running cycle. It returns true when a deferred
// trigger was remembered: the caller must immediately run another cycle
// using a fresh snapshot.
func (w *ChannelWindow) FinishCycle() bool {
	if w.state == CycleRunningDeferred {
		w.state = CycleRunning
		return true
	}
	w.state = CycleIdle
	return false
}

// Reset clears buffer, counter, summary, and cycle state together.
func (w *ChannelWindow) Reset() {
	w.counter = 0
	w.buffer = nil
	w.summary = ""
	w.state = CycleIdle
}
