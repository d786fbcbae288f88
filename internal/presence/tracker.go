package presence

import (
	"github.com/mikey/mail-shield/internal/core"
)

// Tracker turns successive observations into transitions. It keeps its state
// in the injected DispatcherMemory and is not safe for concurrent use.
type Tracker struct {
	mem *core.DispatcherMemory
}

// NewTracker creates a tracker over mem
func NewTracker(mem *core.DispatcherMemory) *Tracker {
	return &Tracker{mem: mem}
}

// Observe compares content with the last observation.
// Pass nil when no message is in view.
func (t *Tracker) Observe(content *core.ObservedContent) core.Transition {
	if content == nil {
		if !t.mem.MessagePreviouslyPresent {
			return core.NoChange
		}
		t.mem.MessagePreviouslyPresent = false
		t.mem.LastFingerprint = ""
		return core.Disappeared
	}

	fp := Fingerprint(content)
	if t.mem.MessagePreviouslyPresent && fp == t.mem.LastFingerprint {
		return core.NoChange
	}

	prior := t.mem.MessagePreviouslyPresent
	t.mem.MessagePreviouslyPresent = true
	t.mem.LastFingerprint = fp
	if prior {
		return core.Changed
	}
	return core.Appeared
}

// State returns the current presence state
func (t *Tracker) State() core.PresenceState {
	if t.mem.MessagePreviouslyPresent {
		return core.Present
	}
	return core.Absent
}
