// Package encounter is the phase gate around a single encounter.
package encounter

import "fmt"

// State is where the encounter flow currently is.
type State int

const (
	StateReady State = iota
	StateCombat
	StateScouting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateCombat:
		return "COMBAT"
	case StateScouting:
		return "SCOUTING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("STATE_%d", int(s))
	}
}

// Action is an input to the gate.
type Action int

const (
	ActionPickEncounter Action = iota
	ActionPlayCard
	ActionApplyScouting
	ActionFinish
)

func (a Action) String() string {
	switch a {
	case ActionPickEncounter:
		return "PICK_ENCOUNTER"
	case ActionPlayCard:
		return "PLAY_CARD"
	case ActionApplyScouting:
		return "APPLY_SCOUTING"
	case ActionFinish:
		return "FINISH"
	default:
		return fmt.Sprintf("ACTION_%d", int(a))
	}
}

type transition struct {
	from   State
	action Action
}

var transitions = map[transition]State{
	{StateReady, ActionPickEncounter}:    StateCombat,
	{StateReady, ActionFinish}:           StateDone,
	{StateCombat, ActionPlayCard}:        StateCombat,
	{StateCombat, ActionFinish}:          StateDone,
	{StateScouting, ActionApplyScouting}: StateScouting,
	{StateScouting, ActionFinish}:        StateDone,
}

// Apply returns the next state, or false when the action is not allowed
// from s. Card side effects live in the combat engine, not here.
func Apply(s State, a Action) (State, bool) {
	next, ok := transitions[transition{s, a}]
	return next, ok
}

// PreviewCount is how many encounters a scouting pass keeps in hand.
func PreviewCount(foresight int64) int {
	if foresight < 0 {
		foresight = 0
	}
	return 1 + int(foresight)
}

// Phase is the orchestrator-facing encounter phase.
type Phase int

const (
	PhaseNoEncounter Phase = iota
	PhaseCombat
	PhaseScouting
)

func (p Phase) String() string {
	switch p {
	case PhaseNoEncounter:
		return "NoEncounter"
	case PhaseCombat:
		return "Combat"
	case PhaseScouting:
		return "Scouting"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State maps the phase onto the gate. NoEncounter is both "ready for the
// next encounter" and "done with the last one"; the gate sees it as ready.
func (p Phase) State() State {
	switch p {
	case PhaseCombat:
		return StateCombat
	case PhaseScouting:
		return StateScouting
	default:
		return StateReady
	}
}

// PhaseOf maps a gate state back onto the orchestrator phase.
func PhaseOf(s State) Phase {
	switch s {
	case StateCombat:
		return PhaseCombat
	case StateScouting:
		return PhaseScouting
	default:
		return PhaseNoEncounter
	}
}
