package presence

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/mikey/mail-shield/internal/core"
)

func msg(subject, body string) *core.ObservedContent {
	return &core.ObservedContent{Subject: subject, Sender: "alice@example.com", Body: body}
}

func TestTracker_TransitionTable(t *testing.T) {
	a := msg("Hello", "Hi Bob, lunch tomorrow?")
	b := msg("Invoice", "Please pay the attached invoice")

	steps := []struct {
		in   *core.ObservedContent
		want core.Transition
	}{
		{nil, core.NoChange},
		{a, core.Appeared},
		{a, core.NoChange},
		{a, core.NoChange},
		{b, core.Changed},
		{nil, core.Disappeared},
		{nil, core.NoChange},
		{b, core.Appeared},
		{nil, core.Disappeared},
	}

	mem := &core.DispatcherMemory{}
	tr := NewTracker(mem)
	for i, s := range steps {
		if got := tr.Observe(s.in); got != s.want {
			t.Fatalf("step %d: got %v, want %v", i, got, s.want)
		}
	}
	if tr.State() != core.Absent || mem.LastFingerprint != "" {
		t.Errorf("expected absent with cleared fingerprint, got %v %q", tr.State(), mem.LastFingerprint)
	}
}

func TestTracker_HeaderCompletionIsAChange(t *testing.T) {
	tr := NewTracker(&core.DispatcherMemory{})
	if got := tr.Observe(&core.ObservedContent{Body: "body text"}); got != core.Appeared {
		t.Fatalf("expected appeared, got %v", got)
	}
	if got := tr.Observe(&core.ObservedContent{Subject: "s", Sender: "x@y", Body: "body text"}); got != core.Changed {
		t.Errorf("expected changed once the header renders, got %v", got)
	}
}

func TestHashText_DistinguishesEnds(t *testing.T) {
	middle := strings.Repeat("lorem ipsum ", 200)
	base := "Dear customer," + middle + "Regards, Bank"
	tests := []string{
		"Dear client!," + middle + "Regards, Bank",
		"Dear customer," + middle + "Regards, Bonk",
		"Dear customer," + middle + "Regards, Bank.",
	}
	for _, other := range tests {
		if HashText(base) == HashText(other) {
			t.Errorf("expected different fingerprints for %q...", other[:20])
		}
	}
	if HashText(base) != HashText(base) {
		t.Error("fingerprint must be deterministic")
	}
}

func TestHashText_MultibyteBoundaries(t *testing.T) {
	text := strings.Repeat("日本語", 200)
	if HashText(text) != HashText(strings.Clone(text)) {
		t.Error("expected equal fingerprints for equal text")
	}
	if HashText(text) == HashText(text+"語") {
		t.Error("expected suffix change to alter fingerprint")
	}
}

func TestFingerprint_NormalizesHeader(t *testing.T) {
	composed := &core.ObservedContent{Subject: "Caf\u00e9", Sender: "a@b", Body: "x"}
	decomposed := &core.ObservedContent{Subject: "Cafe\u0301", Sender: "a@b", Body: "x"}
	if Fingerprint(composed) != Fingerprint(decomposed) {
		t.Error("canonically equal subjects should fingerprint the same")
	}
	if Fingerprint(nil) != "" {
		t.Error("nil content has an empty fingerprint")
	}
}

// reference model of the transition table
type model struct {
	present bool
	last    string
}

func (m *model) observe(c *core.ObservedContent) core.Transition {
	if c == nil {
		if !m.present {
			return core.NoChange
		}
		m.present, m.last = false, ""
		return core.Disappeared
	}
	fp := Fingerprint(c)
	switch {
	case !m.present:
		m.present, m.last = true, fp
		return core.Appeared
	case fp != m.last:
		m.last = fp
		return core.Changed
	default:
		return core.NoChange
	}
}

func TestTracker_MatchesTableProperty(t *testing.T) {
	pool := []*core.ObservedContent{
		nil,
		msg("a", "first"),
		msg("b", "second"),
		msg("a", "first, edited"),
	}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 60).Draw(t, "n")
		mem := &core.DispatcherMemory{}
		tr := NewTracker(mem)
		ref := &model{}
		var prev *core.ObservedContent
		first := true

		for i := 0; i < n; i++ {
			c := rapid.SampledFrom(pool).Draw(t, "content")
			got := tr.Observe(c)
			want := ref.observe(c)
			if got != want {
				t.Fatalf("step %d: got %v, want %v", i, got, want)
			}
			// Repeating an observation never yields work.
			if !first && c == prev && got != core.NoChange {
				t.Fatalf("step %d: repeated observation produced %v", i, got)
			}
			if (tr.State() == core.Present) != (c != nil) {
				t.Fatalf("step %d: state %v after observing %v", i, tr.State(), c)
			}
			prev, first = c, false
		}
	})
}

func TestHashText_LengthProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringN(0, 600, -1).Draw(t, "s")
		extra := rapid.StringN(1, 4, -1).Draw(t, "extra")
		if HashText(s) == HashText(s+extra) {
			t.Fatalf("appending %q did not change fingerprint", extra)
		}
	})
}
