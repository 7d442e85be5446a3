// Package game owns one game's ledger, balances, combat engine and action
// log, and is the only place they are mutated. Every mutation goes through
// dispatch, which both live operations and replay use.
package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/game/cards"
	"github.com/magefree/deckledger/internal/game/combat"
	"github.com/magefree/deckledger/internal/game/encounter"
	"github.com/magefree/deckledger/internal/game/tokens"
)

// DefaultSeed seeds a fresh game. Logs that want another seed start with
// a SetSeed entry, so a log alone always determines its replay.
const DefaultSeed uint64 = 0

// DefaultBaselineHealth is the health a player enters an encounter with
// when they have none.
const DefaultBaselineHealth int64 = 20

var (
	ErrInvalidPhase       = errors.New("action not allowed in current phase")
	ErrReplayDiverged     = errors.New("replay diverged from recorded log")
	ErrInsufficientTokens = errors.New("insufficient tokens")
	ErrAuditOnly          = errors.New("audit entries cannot be submitted")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// Options configures a Game.
type Options struct {
	// Catalog is the card set every baseline starts from. Zero value means
	// cards.DefaultCatalog().
	Catalog        cards.Catalog
	BaselineHealth int64
	// AuditRNG appends an RngDraw entry for every random draw.
	AuditRNG bool
	Logger   *zap.Logger
	// LogOptions are passed to the action log, typically a sink.
	LogOptions []actionlog.Option
}

// Game is the orchestrator. All exported methods are safe for concurrent
// use; one lock serializes every mutation so the log order is the
// execution order.
type Game struct {
	mu     sync.Mutex
	logger *zap.Logger
	opts   Options

	baseline *cards.Ledger
	log      *actionlog.Log

	ledger *cards.Ledger
	player tokens.Balances
	engine *combat.Engine
	phase  encounter.Phase

	// encounterID is the combat encounter card last drawn, kept until a
	// scouting pass returns it to the deck.
	encounterID  int
	hasEncounter bool

	seed uint64
	pcg  *rand.PCG
	rng  *auditRand
}

// New builds the catalog and returns a game at its baseline. A catalog
// that fails validation is an error; nothing is served from it.
func New(opts Options) (*Game, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BaselineHealth <= 0 {
		opts.BaselineHealth = DefaultBaselineHealth
	}
	if len(opts.Catalog.Cards) == 0 {
		opts.Catalog = cards.DefaultCatalog()
	}

	baseline, err := opts.Catalog.Build()
	if err != nil {
		return nil, err
	}

	logOpts := append([]actionlog.Option{actionlog.WithLogger(opts.Logger)}, opts.LogOptions...)
	g := &Game{
		logger:   opts.Logger,
		opts:     opts,
		baseline: baseline,
		log:      actionlog.New(logOpts...),
		rng:      &auditRand{},
	}
	g.reset(DefaultSeed)
	g.rng.record = opts.AuditRNG

	g.logger.Info("game created",
		zap.Int("catalog_cards", baseline.Len()),
		zap.Int64("baseline_health", opts.BaselineHealth),
		zap.Bool("audit_rng", opts.AuditRNG),
	)
	return g, nil
}

// SetAuditRNG turns RngDraw logging on or off for later actions.
func (g *Game) SetAuditRNG(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opts.AuditRNG = on
	g.rng.record = on
	g.rng.draws = nil
}

// reset returns every ledger and balance to the catalog baseline and
// reseeds the generator.
func (g *Game) reset(seed uint64) {
	g.ledger = g.baseline.Clone()
	g.player = tokens.NewBalances()
	g.engine = combat.NewEngine(g.ledger, g.player, g.logger.Named("combat"))
	g.phase = encounter.PhaseNoEncounter
	g.encounterID = 0
	g.hasEncounter = false

	g.seed = seed
	g.pcg = combat.SeedSource(seed)
	g.rng.r = rand.New(g.pcg)
	g.rng.draws = nil

	g.ledger.EncounterDrawToHand(encounter.PreviewCount(g.player.Get(tokens.Foresight())))
}

// bookmark is everything an action can change, captured before it runs.
type bookmark struct {
	ledger       *cards.Ledger
	player       tokens.Balances
	engine       *combat.Engine
	phase        encounter.Phase
	encounterID  int
	hasEncounter bool
	seed         uint64
	pcg          rand.PCG
	draws        int
}

func (g *Game) bookmark() bookmark {
	ledger := g.ledger.Clone()
	player := g.player.Clone()
	return bookmark{
		ledger:       ledger,
		player:       player,
		engine:       g.engine.Clone(ledger, player),
		phase:        g.phase,
		encounterID:  g.encounterID,
		hasEncounter: g.hasEncounter,
		seed:         g.seed,
		pcg:          *g.pcg,
		draws:        len(g.rng.draws),
	}
}

func (g *Game) restore(b bookmark) {
	g.ledger = b.ledger
	g.player = b.player
	g.engine = b.engine
	g.phase = b.phase
	g.encounterID = b.encounterID
	g.hasEncounter = b.hasEncounter
	g.seed = b.seed
	pcg := b.pcg
	g.pcg = &pcg
	g.rng.r = rand.New(g.pcg)
	g.rng.draws = g.rng.draws[:b.draws]
}

// Submit validates and applies payload, then appends it to the log. On
// error the game is restored to its state before the call and nothing is
// appended.
func (g *Game) Submit(payload actionlog.Payload, opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitLocked(payload, opts)
}

func (g *Game) submitLocked(payload actionlog.Payload, opts []actionlog.AppendOption) (actionlog.Entry, error) {
	if payload == nil {
		return actionlog.Entry{}, fmt.Errorf("%w: nil payload", actionlog.ErrMalformedEntry)
	}
	switch payload.(type) {
	case actionlog.RngDraw, actionlog.RngSnapshot:
		return actionlog.Entry{}, fmt.Errorf("%w: %s", ErrAuditOnly, payload.Variant())
	}

	b := g.bookmark()
	done, err := g.dispatch(payload)
	if err != nil {
		g.restore(b)
		g.logger.Info("action rejected, state restored",
			zap.String("action_type", payload.Variant()),
			zap.Error(err),
		)
		return actionlog.Entry{}, fmt.Errorf("%s: %w", payload.Variant(), err)
	}

	entry := g.log.Append("", done, opts...)
	if g.opts.AuditRNG {
		for _, d := range g.rng.draws {
			g.log.Append("", d)
		}
		g.rng.draws = g.rng.draws[:0]
	}
	g.logger.Debug("action applied",
		zap.Uint64("seq", entry.Seq),
		zap.String("action_type", entry.ActionType),
	)
	return entry, nil
}

// dispatch applies one payload and returns it with any derived fields
// filled in. It is the single mutation path for live play and replay.
func (g *Game) dispatch(payload actionlog.Payload) (actionlog.Payload, error) {
	switch p := payload.(type) {
	case actionlog.SetSeed:
		g.reset(p.Seed)
		g.logger.Info("game reseeded", zap.Uint64("seed", p.Seed))
		return p, nil

	case actionlog.GrantToken:
		p.TokenID = p.TokenID.Normalize()
		if err := validToken(p.TokenID); err != nil {
			return nil, err
		}
		p.ResultingAmount = g.player.Grant(p.TokenID, p.Amount)
		return p, nil

	case actionlog.ConsumeToken:
		p.TokenID = p.TokenID.Normalize()
		if err := validToken(p.TokenID); err != nil {
			return nil, err
		}
		p.ResultingAmount = g.player.Consume(p.TokenID, p.Amount)
		return p, nil

	case actionlog.ExpireToken:
		p.TokenID = p.TokenID.Normalize()
		if err := validToken(p.TokenID); err != nil {
			return nil, err
		}
		g.player.Expire(p.TokenID, p.Amount)
		return p, nil

	case actionlog.DrawEncounter:
		return p, g.drawEncounter(p.EncounterID)

	case actionlog.PlayCard:
		return p, g.playCard(p.CardID)

	case actionlog.ApplyScouting:
		return p, g.applyScouting()

	case actionlog.ReplaceEncounter:
		return p, g.replaceEncounter(p.OldEncounterID, p.NewEncounterID)

	case actionlog.ConsumEntryCost:
		return p, g.consumeEntryCost(p.EncounterID, p.CostAmount)

	case actionlog.RngDraw, actionlog.RngSnapshot:
		return p, nil

	default:
		return nil, fmt.Errorf("%w: unhandled payload %T", actionlog.ErrMalformedEntry, payload)
	}
}

func validToken(t tokens.Token) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

func (g *Game) gate(action encounter.Action) error {
	if _, ok := encounter.Apply(g.phase.State(), action); !ok {
		return fmt.Errorf("%w: %s during %s", ErrInvalidPhase, action, g.phase)
	}
	return nil
}

func (g *Game) drawEncounter(encounterID int) error {
	if err := g.gate(encounter.ActionPickEncounter); err != nil {
		return err
	}
	if g.player.Get(tokens.Health()) == 0 {
		g.player.Set(tokens.Health(), g.opts.BaselineHealth)
	}
	if err := g.ledger.Play(encounterID); err != nil {
		return err
	}

	g.rng.purpose = "start_combat"
	state, err := g.engine.StartCombat(encounterID, g.rng)
	if err != nil {
		return err
	}
	g.phase = encounter.PhaseCombat
	g.encounterID = encounterID
	g.hasEncounter = true

	g.logger.Info("encounter drawn",
		zap.Int("encounter_card_id", encounterID),
		zap.Int64("enemy_health", state.EnemyTokens.Get(tokens.Health())),
	)
	return nil
}

func (g *Game) playCard(cardID int) error {
	if err := g.gate(encounter.ActionPlayCard); err != nil {
		return err
	}
	state := g.engine.Current()
	if state == nil {
		return combat.ErrNoActiveCombat
	}
	card, err := g.ledger.Card(cardID)
	if err != nil {
		return err
	}
	if !card.Kind.IsPlayerCard() {
		return fmt.Errorf("%w: card %d is %s", cards.ErrWrongCardKind, cardID, card.Kind.Kind)
	}
	if want := state.Phase.CardKind(); card.Kind.Kind != want {
		return fmt.Errorf("%w: %s card during %s, want %s", ErrInvalidPhase, card.Kind.Kind, state.Phase, want)
	}
	if err := g.ledger.Play(cardID); err != nil {
		return err
	}

	g.rng.purpose = "player_card"
	if _, err := g.engine.ResolvePlayerCard(cardID, g.rng); err != nil {
		return err
	}
	if g.engine.Active() {
		g.rng.purpose = "enemy_play"
		if _, err := g.engine.ResolveEnemyPlay(g.rng); err != nil {
			return err
		}
	}
	if g.engine.Active() {
		if _, err := g.engine.AdvancePhase(); err != nil {
			return err
		}
		return nil
	}

	g.phase = encounter.PhaseScouting
	if last := g.engine.Last(); last != nil {
		g.logger.Info("encounter finished",
			zap.Int("encounter_card_id", last.EncounterCardID),
			zap.Stringer("outcome", last.Outcome),
		)
	}
	return nil
}

func (g *Game) applyScouting() error {
	if err := g.gate(encounter.ActionApplyScouting); err != nil {
		return err
	}
	if g.hasEncounter {
		if err := g.ledger.ReturnToDeck(g.encounterID); err != nil {
			return err
		}
		g.hasEncounter = false
	}
	preview := encounter.PreviewCount(g.player.Get(tokens.Foresight()))
	drawn := g.ledger.EncounterDrawToHand(preview)

	next, ok := encounter.Apply(encounter.StateScouting, encounter.ActionFinish)
	if !ok {
		return fmt.Errorf("%w: scouting cannot finish", ErrInvalidPhase)
	}
	g.phase = encounter.PhaseOf(next)

	g.logger.Debug("scouting applied",
		zap.Int("preview", preview),
		zap.Int("drawn", drawn),
	)
	return nil
}

func (g *Game) requireEncounterInHand(id int) error {
	card, err := g.ledger.Card(id)
	if err != nil {
		return err
	}
	if _, ok := card.Kind.Combatant(); !ok {
		return fmt.Errorf("%w: card %d is %s, want combat encounter", cards.ErrWrongCardKind, id, card.Kind.Kind)
	}
	if card.Counts.Hand == 0 {
		return fmt.Errorf("%w: encounter %d not in hand", cards.ErrZoneEmpty, id)
	}
	return nil
}

// replaceEncounter swaps a hand encounter for a copy drawn from the deck.
func (g *Game) replaceEncounter(oldID, newID int) error {
	if g.phase != encounter.PhaseNoEncounter {
		return fmt.Errorf("%w: replace encounter during %s", ErrInvalidPhase, g.phase)
	}
	if err := g.requireEncounterInHand(oldID); err != nil {
		return err
	}
	replacement, err := g.ledger.Card(newID)
	if err != nil {
		return err
	}
	if _, ok := replacement.Kind.Combatant(); !ok {
		return fmt.Errorf("%w: card %d is %s, want combat encounter", cards.ErrWrongCardKind, newID, replacement.Kind.Kind)
	}
	if err := g.ledger.Play(oldID); err != nil {
		return err
	}
	if err := g.ledger.ReturnToDeck(oldID); err != nil {
		return err
	}
	return g.ledger.Draw(newID)
}

// consumeEntryCost pays stamina to enter an encounter in hand.
func (g *Game) consumeEntryCost(encounterID int, cost int64) error {
	if g.phase != encounter.PhaseNoEncounter {
		return fmt.Errorf("%w: entry cost during %s", ErrInvalidPhase, g.phase)
	}
	if err := g.requireEncounterInHand(encounterID); err != nil {
		return err
	}
	if cost < 0 {
		return fmt.Errorf("%w: entry cost %d is negative", ErrInvalidAmount, cost)
	}
	stamina := tokens.New(tokens.TokenStamina)
	if have := g.player.Get(stamina); have < cost {
		return fmt.Errorf("%w: need %d stamina, have %d", ErrInsufficientTokens, cost, have)
	}
	g.player.Consume(stamina, cost)
	return nil
}
