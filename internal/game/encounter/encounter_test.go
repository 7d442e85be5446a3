package encounter

import "testing"

func TestApplyAllowedTransitions(t *testing.T) {
	tests := []struct {
		from   State
		action Action
		want   State
	}{
		{StateReady, ActionPickEncounter, StateCombat},
		{StateReady, ActionFinish, StateDone},
		{StateCombat, ActionPlayCard, StateCombat},
		{StateCombat, ActionFinish, StateDone},
		{StateScouting, ActionApplyScouting, StateScouting},
		{StateScouting, ActionFinish, StateDone},
	}
	for _, tt := range tests {
		got, ok := Apply(tt.from, tt.action)
		if !ok {
			t.Fatalf("%s + %s: expected allowed", tt.from, tt.action)
		}
		if got != tt.want {
			t.Fatalf("%s + %s: expected %s, got %s", tt.from, tt.action, tt.want, got)
		}
	}
}

func TestApplyIsTotal(t *testing.T) {
	allowed := 0
	for s := StateReady; s <= StateDone; s++ {
		for a := ActionPickEncounter; a <= ActionFinish; a++ {
			if _, ok := Apply(s, a); ok {
				allowed++
			}
		}
	}
	if allowed != 6 {
		t.Fatalf("expected exactly 6 allowed transitions, got %d", allowed)
	}

	if _, ok := Apply(StateReady, ActionPlayCard); ok {
		t.Fatal("PlayCard while ready must be rejected")
	}
	if _, ok := Apply(StateDone, ActionPickEncounter); ok {
		t.Fatal("no transitions out of done")
	}
	if _, ok := Apply(State(42), ActionFinish); ok {
		t.Fatal("unknown state must be rejected")
	}
}

func TestScoutingIsRepeatable(t *testing.T) {
	s := StateScouting
	for i := 0; i < 3; i++ {
		var ok bool
		s, ok = Apply(s, ActionApplyScouting)
		if !ok || s != StateScouting {
			t.Fatalf("iteration %d: expected to stay scouting", i)
		}
	}
}

func TestPreviewCount(t *testing.T) {
	if got := PreviewCount(0); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := PreviewCount(2); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := PreviewCount(-4); got != 1 {
		t.Fatalf("negative foresight should count as zero, got %d", got)
	}
}

func TestPhaseStateMapping(t *testing.T) {
	if PhaseNoEncounter.State() != StateReady {
		t.Fatal("no encounter should gate as ready")
	}
	if PhaseOf(StateDone) != PhaseNoEncounter {
		t.Fatal("done should map back to no encounter")
	}
	if PhaseOf(PhaseScouting.State()) != PhaseScouting {
		t.Fatal("scouting should round trip")
	}
}
