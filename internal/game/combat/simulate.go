package combat

import (
	"fmt"
	"math/rand/v2"

	"github.com/magefree/deckledger/internal/game/cards"
	"github.com/magefree/deckledger/internal/game/tokens"
)

// SimulationResult is everything a scripted fight touched.
type SimulationResult struct {
	Combat State
	Player []tokens.Amount
	Enemy  []tokens.Amount
	Ledger []cards.Card
}

// Simulate plays a scripted fight on copies of the inputs. Each play marks
// the card played, resolves it and, while the combat is still running,
// lets the enemy answer once before the phase advances. The result is a
// pure function of the arguments.
func Simulate(ledger *cards.Ledger, player tokens.Balances, encounterID int, seed uint64, plays []int) (SimulationResult, error) {
	l := ledger.Clone()
	p := player.Clone()
	rng := rand.New(SeedSource(seed))
	engine := NewEngine(l, p, nil)

	if _, err := engine.StartCombat(encounterID, rng); err != nil {
		return SimulationResult{}, err
	}
	for i, id := range plays {
		if !engine.Active() {
			break
		}
		if err := l.Play(id); err != nil {
			return SimulationResult{}, fmt.Errorf("play %d: %w", i, err)
		}
		if _, err := engine.ResolvePlayerCard(id, rng); err != nil {
			return SimulationResult{}, fmt.Errorf("play %d: %w", i, err)
		}
		if !engine.Active() {
			break
		}
		if _, err := engine.ResolveEnemyPlay(rng); err != nil {
			return SimulationResult{}, fmt.Errorf("play %d enemy: %w", i, err)
		}
		if engine.Active() {
			if _, err := engine.AdvancePhase(); err != nil {
				return SimulationResult{}, err
			}
		}
	}

	state := engine.Current()
	if state == nil {
		state = engine.Last()
	}
	return SimulationResult{
		Combat: *state.Clone(),
		Player: p.Sorted(),
		Enemy:  state.EnemyTokens.Sorted(),
		Ledger: l.CardsMatching(func(cards.Card) bool { return true }),
	}, nil
}
