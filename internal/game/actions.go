package game

import (
	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/game/cards"
	"github.com/magefree/deckledger/internal/game/combat"
	"github.com/magefree/deckledger/internal/game/encounter"
	"github.com/magefree/deckledger/internal/game/tokens"
)

// SetSeed resets the game to its baseline and reseeds the generator.
func (g *Game) SetSeed(seed uint64, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	return g.Submit(actionlog.SetSeed{Seed: seed}, opts...)
}

// GrantToken adds amount to the player's balance of t.
func (g *Game) GrantToken(t tokens.Token, amount int64, reason string, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	return g.Submit(actionlog.GrantToken{TokenID: t.Normalize(), Amount: amount, Reason: reason}, opts...)
}

// ConsumeToken subtracts amount from the player's balance of t with no floor.
func (g *Game) ConsumeToken(t tokens.Token, amount int64, reason string, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	return g.Submit(actionlog.ConsumeToken{TokenID: t.Normalize(), Amount: amount, Reason: reason}, opts...)
}

// ExpireToken subtracts amount from the player's balance of t, stopping at 0.
func (g *Game) ExpireToken(t tokens.Token, amount int64, reason string, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	return g.Submit(actionlog.ExpireToken{TokenID: t.Normalize(), Amount: amount, Reason: reason}, opts...)
}

// DrawEncounter plays an encounter from hand and starts combat against it.
func (g *Game) DrawEncounter(areaID string, encounterID int, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	return g.Submit(actionlog.DrawEncounter{AreaID: areaID, EncounterID: encounterID}, opts...)
}

// PlayCard plays a player card in the active combat. While the combat is
// still running the enemy answers once and the phase advances.
func (g *Game) PlayCard(cardID int, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	return g.Submit(actionlog.PlayCard{CardID: cardID}, opts...)
}

// ApplyScouting returns the finished encounter to the deck, tops the
// encounter hand up to the preview count and ends the encounter.
func (g *Game) ApplyScouting(areaID, parameters string, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	return g.Submit(actionlog.ApplyScouting{AreaID: areaID, Parameters: parameters}, opts...)
}

// ReplaceEncounter swaps a hand encounter for one drawn from the deck.
func (g *Game) ReplaceEncounter(areaID string, oldID, newID int, affixes []string, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	return g.Submit(actionlog.ReplaceEncounter{
		AreaID:         areaID,
		OldEncounterID: oldID,
		NewEncounterID: newID,
		AffixesApplied: affixes,
	}, opts...)
}

// ConsumeEntryCost pays stamina to enter an encounter in hand.
func (g *Game) ConsumeEntryCost(areaID string, encounterID int, cost int64, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	return g.Submit(actionlog.ConsumEntryCost{AreaID: areaID, EncounterID: encounterID, CostAmount: cost}, opts...)
}

// Log returns the game's action log.
func (g *Game) Log() *actionlog.Log { return g.log }

// Seed returns the seed of the current baseline.
func (g *Game) Seed() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seed
}

// Phase returns the encounter phase.
func (g *Game) Phase() encounter.Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Balance returns the player's balance of t.
func (g *Game) Balance(t tokens.Token) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.player.Get(t.Normalize())
}

// Balances returns every player balance in a stable order.
func (g *Game) Balances() []tokens.Amount {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.player.Sorted()
}

// Card returns a copy of a ledger entry.
func (g *Game) Card(id int) (cards.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.Card(id)
}

// Hand returns every entry with copies in the player's hand.
func (g *Game) Hand() []cards.Card {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.HandCards()
}

// EncounterHand lists encounter ids in hand, once per copy.
func (g *Game) EncounterHand() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.EncounterHand()
}

// Combat returns a copy of the running combat, or nil.
func (g *Game) Combat() *combat.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Current().Clone()
}

// LastCombat returns a copy of the most recently finished combat, or nil.
func (g *Game) LastCombat() *combat.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Last().Clone()
}
