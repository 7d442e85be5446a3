package combat

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/deckledger/internal/game/cards"
	"github.com/magefree/deckledger/internal/game/tokens"
)

// ErrNoActiveCombat is returned by operations that need a running combat.
var ErrNoActiveCombat = errors.New("no active combat")

// Resolution reports what a single card resolution did.
type Resolution struct {
	// CardID is the ledger id for player plays and the enemy deck index
	// for enemy plays.
	CardID   int
	Played   bool
	Finished bool
	Outcome  Outcome
	Drawn    []int
}

// Engine resolves combat against a ledger and the player's balances.
// It holds references, not copies: the owner serializes access.
type Engine struct {
	logger  *zap.Logger
	ledger  *cards.Ledger
	player  tokens.Balances
	current *State
	last    *State
}

// NewEngine creates an engine with no active combat.
func NewEngine(ledger *cards.Ledger, player tokens.Balances, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, ledger: ledger, player: player}
}

// Clone returns an engine bound to the given ledger and balances that
// carries copies of this engine's combat states.
func (e *Engine) Clone(ledger *cards.Ledger, player tokens.Balances) *Engine {
	return &Engine{
		logger:  e.logger,
		ledger:  ledger,
		player:  player,
		current: e.current.Clone(),
		last:    e.last.Clone(),
	}
}

// Current returns the active combat, or nil.
func (e *Engine) Current() *State { return e.current }

// Last returns the most recently finished combat, or nil.
func (e *Engine) Last() *State { return e.last }

// Active reports whether a combat is running.
func (e *Engine) Active() bool { return e.current != nil }

// StartCombat begins a combat against the given encounter card. Each
// enemy deck is shuffled by returning its hand to the deck pile and
// redrawing the same number of cards at random.
func (e *Engine) StartCombat(encounterID int, rng cards.Rand) (*State, error) {
	card, err := e.ledger.Card(encounterID)
	if err != nil {
		return nil, err
	}
	def, ok := card.Kind.Combatant()
	if !ok {
		return nil, fmt.Errorf("%w: card %d is %s, want combat encounter", cards.ErrWrongCardKind, encounterID, card.Kind.Kind)
	}

	state := &State{
		Round:             1,
		Phase:             PhaseDefending,
		EnemyTokens:       tokens.NewBalances(def.Tokens...),
		EncounterCardID:   encounterID,
		EnemyAttackDeck:   cards.CloneDeck(def.AttackDeck),
		EnemyDefenceDeck:  cards.CloneDeck(def.DefenceDeck),
		EnemyResourceDeck: cards.CloneDeck(def.ResourceDeck),
	}
	for _, deck := range [][]cards.EnemyCardDef{state.EnemyAttackDeck, state.EnemyDefenceDeck, state.EnemyResourceDeck} {
		shuffle(rng, deck)
	}
	e.current = state

	e.logger.Debug("combat started",
		zap.Int("encounter_card_id", encounterID),
		zap.String("encounter", card.Name),
		zap.Int64("enemy_health", state.EnemyTokens.Get(tokens.Health())),
	)
	return state, nil
}

func shuffle(rng cards.Rand, deck []cards.EnemyCardDef) {
	var inHand uint32
	for i := range deck {
		inHand += deck[i].Counts.Hand
		deck[i].Counts.Deck += deck[i].Counts.Hand
		deck[i].Counts.Hand = 0
	}
	EnemyDrawN(rng, deck, inHand)
}

// ResolvePlayerCard applies a player card's effects. Matching the card
// kind to the phase is the caller's job.
func (e *Engine) ResolvePlayerCard(cardID int, rng cards.Rand) (Resolution, error) {
	state := e.current
	if state == nil {
		return Resolution{}, ErrNoActiveCombat
	}
	card, err := e.ledger.Card(cardID)
	if err != nil {
		return Resolution{}, err
	}
	if !card.Kind.IsPlayerCard() {
		return Resolution{}, fmt.Errorf("%w: card %d is %s", cards.ErrWrongCardKind, cardID, card.Kind.Kind)
	}

	var pending cards.DrawCounts
	for _, eid := range card.Kind.EffectIDs {
		effect, err := e.ledger.Effect(eid, cards.KindPlayerCardEffect)
		if err != nil {
			return Resolution{}, fmt.Errorf("card %d: %w", cardID, err)
		}
		e.applyEffect(state, OwnerPlayer, effect, &pending)
	}

	res := Resolution{CardID: cardID, Played: true}
	if e.checkEnd(state) {
		res.Finished = true
		res.Outcome = state.Outcome
		return res, nil
	}
	res.Drawn = e.drawPlayer(rng, pending)
	return res, nil
}

func (e *Engine) drawPlayer(rng cards.Rand, pending cards.DrawCounts) []int {
	var drawn []int
	for _, d := range []struct {
		kind cards.Kind
		n    uint32
	}{
		{cards.KindAttack, pending.Attack},
		{cards.KindDefence, pending.Defence},
		{cards.KindResource, pending.Resource},
	} {
		for i := uint32(0); i < d.n; i++ {
			id, ok := e.ledger.DrawRandom(rng, d.kind)
			if !ok {
				break
			}
			drawn = append(drawn, id)
		}
	}
	return drawn
}

// ResolveEnemyPlay plays one card from the enemy hand of the deck that
// answers the current phase. The card is chosen uniformly among distinct
// entries with copies in hand, not weighted by copy count.
func (e *Engine) ResolveEnemyPlay(rng cards.Rand) (Resolution, error) {
	state := e.current
	if state == nil {
		return Resolution{}, ErrNoActiveCombat
	}
	deck := state.deckFor(state.Phase)

	var candidates []int
	for i, c := range deck {
		if c.Counts.Hand > 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		e.logger.Debug("enemy has nothing to play", zap.Stringer("phase", state.Phase))
		return Resolution{}, nil
	}
	idx := candidates[rng.IntN(len(candidates))]
	if err := deck[idx].Counts.Move(cards.ZoneHand, cards.ZoneDiscard, 1); err != nil {
		return Resolution{}, err
	}

	var pending cards.DrawCounts
	for _, eid := range deck[idx].EffectIDs {
		effect, err := e.ledger.Effect(eid, cards.KindEnemyCardEffect)
		if err != nil {
			return Resolution{}, fmt.Errorf("enemy card %d: %w", idx, err)
		}
		e.applyEffect(state, OwnerEnemy, effect, &pending)
	}

	res := Resolution{CardID: idx, Played: true}
	if e.checkEnd(state) {
		res.Finished = true
		res.Outcome = state.Outcome
		return res, nil
	}
	for _, d := range []struct {
		deck []cards.EnemyCardDef
		n    uint32
	}{
		{state.EnemyAttackDeck, pending.Attack},
		{state.EnemyDefenceDeck, pending.Defence},
		{state.EnemyResourceDeck, pending.Resource},
	} {
		res.Drawn = append(res.Drawn, EnemyDrawN(rng, d.deck, d.n)...)
	}
	return res, nil
}

func (e *Engine) applyEffect(state *State, owner Owner, effect cards.EffectKind, pending *cards.DrawCounts) {
	switch effect.Type {
	case cards.EffectChangeTokens:
		self, opponent := e.player, state.EnemyTokens
		if owner == OwnerEnemy {
			self, opponent = opponent, self
		}
		target := self
		if effect.Target == cards.TargetOpponent {
			target = opponent
		}
		target.Change(effect.TokenType, effect.Amount)
	case cards.EffectDrawCards:
		pending.Add(effect.Draw)
	}
}

// checkEnd finishes the combat when either side is at or below zero
// health. Both sides down at once counts as a player win.
func (e *Engine) checkEnd(state *State) bool {
	player := e.player.Get(tokens.Health())
	enemy := state.EnemyTokens.Get(tokens.Health())
	if player > 0 && enemy > 0 {
		return false
	}

	switch {
	case enemy <= 0 && player > 0:
		state.Outcome = OutcomePlayerWon
	case player <= 0 && enemy > 0:
		state.Outcome = OutcomeEnemyWon
	default:
		state.Outcome = OutcomePlayerWon
	}
	state.IsFinished = true
	e.last = state
	e.current = nil

	e.logger.Info("combat finished",
		zap.Int("encounter_card_id", state.EncounterCardID),
		zap.Stringer("outcome", state.Outcome),
		zap.Uint32("round", state.Round),
	)
	return true
}

// AdvancePhase moves to the next phase, starting a new round after
// Resourcing.
func (e *Engine) AdvancePhase() (Phase, error) {
	state := e.current
	if state == nil {
		return 0, ErrNoActiveCombat
	}
	state.Phase = state.Phase.Next()
	if state.Phase == PhaseDefending {
		state.Round++
	}
	return state.Phase, nil
}

// EnemyDrawRandom moves one card from deck to hand, weighted by deck
// count. An empty deck pile is refilled from discard first.
func EnemyDrawRandom(rng cards.Rand, deck []cards.EnemyCardDef) (int, bool) {
	var inDeck, inDiscard uint32
	for _, c := range deck {
		inDeck += c.Counts.Deck
		inDiscard += c.Counts.Discard
	}
	if inDeck == 0 && inDiscard > 0 {
		for i := range deck {
			deck[i].Counts.Deck += deck[i].Counts.Discard
			deck[i].Counts.Discard = 0
		}
	}

	weights := make([]uint32, len(deck))
	for i, c := range deck {
		weights[i] = c.Counts.Deck
	}
	idx, ok := cards.WeightedIndex(rng, weights)
	if !ok {
		return 0, false
	}
	deck[idx].Counts.Deck--
	deck[idx].Counts.Hand++
	return idx, true
}

// EnemyDrawN draws up to n cards, stopping early when nothing is left.
func EnemyDrawN(rng cards.Rand, deck []cards.EnemyCardDef, n uint32) []int {
	var drawn []int
	for i := uint32(0); i < n; i++ {
		idx, ok := EnemyDrawRandom(rng, deck)
		if !ok {
			break
		}
		drawn = append(drawn, idx)
	}
	return drawn
}
