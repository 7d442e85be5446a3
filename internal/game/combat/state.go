package combat

import (
	"fmt"
	"math/rand/v2"

	"github.com/magefree/deckledger/internal/game/cards"
	"github.com/magefree/deckledger/internal/game/tokens"
)

// Phase is the step of a combat round. Rounds cycle
// Defending → Attacking → Resourcing → Defending.
type Phase int

const (
	PhaseDefending Phase = iota
	PhaseAttacking
	PhaseResourcing
)

var phaseNames = map[Phase]string{
	PhaseDefending:  "Defending",
	PhaseAttacking:  "Attacking",
	PhaseResourcing: "Resourcing",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Next returns the following phase in the cycle.
func (p Phase) Next() Phase {
	return (p + 1) % 3
}

// Mask returns the token phase bit for p.
func (p Phase) Mask() tokens.PhaseMask {
	switch p {
	case PhaseDefending:
		return tokens.PhaseDefending
	case PhaseAttacking:
		return tokens.PhaseAttacking
	case PhaseResourcing:
		return tokens.PhaseResourcing
	default:
		return 0
	}
}

// CardKind is the player card kind that may be played in p.
func (p Phase) CardKind() cards.Kind {
	switch p {
	case PhaseAttacking:
		return cards.KindAttack
	case PhaseResourcing:
		return cards.KindResource
	default:
		return cards.KindDefence
	}
}

// Outcome is the result of a finished combat.
type Outcome int

const (
	OutcomeUndecided Outcome = iota
	OutcomePlayerWon
	OutcomeEnemyWon
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlayerWon:
		return "PlayerWon"
	case OutcomeEnemyWon:
		return "EnemyWon"
	default:
		return "Undecided"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Owner is who played a card; effect targets are relative to it.
type Owner int

const (
	OwnerPlayer Owner = iota
	OwnerEnemy
)

// State is one combat. Enemy decks are private copies of the encounter's
// inline decks, so playing them never touches the ledger.
type State struct {
	Round             uint32               `json:"round"`
	Phase             Phase                `json:"phase"`
	EnemyTokens       tokens.Balances      `json:"-"`
	EncounterCardID   int                  `json:"encounter_card_id"`
	IsFinished        bool                 `json:"is_finished"`
	Outcome           Outcome              `json:"outcome"`
	EnemyAttackDeck   []cards.EnemyCardDef `json:"enemy_attack_deck"`
	EnemyDefenceDeck  []cards.EnemyCardDef `json:"enemy_defence_deck"`
	EnemyResourceDeck []cards.EnemyCardDef `json:"enemy_resource_deck"`
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.EnemyTokens = s.EnemyTokens.Clone()
	out.EnemyAttackDeck = cards.CloneDeck(s.EnemyAttackDeck)
	out.EnemyDefenceDeck = cards.CloneDeck(s.EnemyDefenceDeck)
	out.EnemyResourceDeck = cards.CloneDeck(s.EnemyResourceDeck)
	return &out
}

// deckFor returns the enemy deck answering the player's current phase:
// the enemy attacks while the player defends, and so on.
func (s *State) deckFor(p Phase) []cards.EnemyCardDef {
	switch p {
	case PhaseDefending:
		return s.EnemyAttackDeck
	case PhaseAttacking:
		return s.EnemyDefenceDeck
	default:
		return s.EnemyResourceDeck
	}
}

// SeedSource expands a 64-bit seed into the generator's 128-bit state by
// using it for both halves.
func SeedSource(seed uint64) *rand.PCG {
	return rand.NewPCG(seed, seed)
}
