package game

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/magefree/deckledger/internal/game/cards"
	"github.com/magefree/deckledger/internal/game/combat"
	"github.com/magefree/deckledger/internal/game/tokens"
)

// CombatSnapshot is a combat state with its enemy balances in stable order.
type CombatSnapshot struct {
	State combat.State    `json:"state"`
	Enemy []tokens.Amount `json:"enemy"`
}

func snapshotCombat(s *combat.State) *CombatSnapshot {
	if s == nil {
		return nil
	}
	return &CombatSnapshot{State: *s.Clone(), Enemy: s.EnemyTokens.Sorted()}
}

// Snapshot is a deterministic view of everything replay must reproduce.
// It holds no timestamps or map-ordered data, so two games that went
// through the same log encode to the same bytes.
type Snapshot struct {
	Seed        uint64          `json:"seed"`
	Phase       string          `json:"phase"`
	EncounterID *int            `json:"encounter_id,omitempty"`
	Player      []tokens.Amount `json:"player"`
	Ledger      []cards.Card    `json:"ledger"`
	Combat      *CombatSnapshot `json:"combat,omitempty"`
	LastCombat  *CombatSnapshot `json:"last_combat,omitempty"`
	RNG         string          `json:"rng"`
	LogLength   int             `json:"log_length"`
}

// Snapshot captures the current state.
func (g *Game) Snapshot() (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rng, err := g.rngState()
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{
		Seed:       g.seed,
		Phase:      g.phase.String(),
		Player:     g.player.Sorted(),
		Ledger:     g.ledger.CardsMatching(func(cards.Card) bool { return true }),
		Combat:     snapshotCombat(g.engine.Current()),
		LastCombat: snapshotCombat(g.engine.Last()),
		RNG:        rng,
		LogLength:  g.log.Len(),
	}
	if g.hasEncounter {
		id := g.encounterID
		s.EncounterID = &id
	}
	return s, nil
}

// Checksum is the hex SHA-256 of the snapshot's JSON encoding.
func (s Snapshot) Checksum() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Checksum is shorthand for Snapshot followed by Snapshot.Checksum.
func (g *Game) Checksum() (string, error) {
	s, err := g.Snapshot()
	if err != nil {
		return "", err
	}
	return s.Checksum()
}
