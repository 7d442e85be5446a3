package cards

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/magefree/deckledger/internal/game/tokens"
)

// CardDef is one catalog line. Its position in the catalog becomes the
// ledger id, so effect references are positional.
type CardDef struct {
	Name   string     `json:"name" yaml:"name"`
	Kind   CardKind   `json:"kind" yaml:"kind"`
	Counts CardCounts `json:"counts" yaml:"counts"`
}

// Catalog is the ordered set of card definitions a game starts from.
type Catalog struct {
	Cards []CardDef `json:"cards" yaml:"cards"`
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (Catalog, error) {
	var c Catalog
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read catalog: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Build creates a ledger from the catalog and validates every effect
// reference. A catalog that fails validation is never returned.
func (c Catalog) Build() (*Ledger, error) {
	l := NewLedger()
	for _, def := range c.Cards {
		kind := def.Kind.Clone()
		if combat, ok := kind.Combatant(); ok {
			for i := range combat.Tokens {
				combat.Tokens[i].Token = combat.Tokens[i].Token.Normalize()
			}
		}
		l.addNamed(def.Name, kind, def.Counts)
	}
	if err := l.ValidateCardEffects(); err != nil {
		return nil, fmt.Errorf("invalid card catalog: %w", err)
	}
	return l, nil
}

// Default catalog ids, in order.
const (
	EffectStrike = iota
	EffectGuard
	EffectForage
	EffectStudy
	EffectQuickDraw
	EffectClaw
	EffectHide
	EffectMend
	CardStrike
	CardFlurry
	CardParry
	CardForage
	CardStudy
	CardGoblin
	CardTroll
)

// DefaultCatalog is the built-in starter set used when no catalog file is
// configured.
func DefaultCatalog() Catalog {
	health := func(n int64) []tokens.Amount {
		return []tokens.Amount{
			{Token: tokens.Health(), Amount: n},
			{Token: tokens.New(tokens.TokenMaxHealth), Amount: n},
		}
	}
	return Catalog{Cards: []CardDef{
		{Name: "strike", Kind: PlayerEffect(ChangeTokens(TargetOpponent, tokens.TokenHealth, -4))},
		{Name: "guard", Kind: PlayerEffect(ChangeTokens(TargetSelf, tokens.TokenDodge, 3))},
		{Name: "forage", Kind: PlayerEffect(ChangeTokens(TargetSelf, tokens.TokenStamina, 1))},
		{Name: "study", Kind: PlayerEffect(ChangeTokens(TargetSelf, tokens.TokenInsight, 1))},
		{Name: "quick draw", Kind: PlayerEffect(DrawCards(1, 0, 0))},
		{Name: "claw", Kind: EnemyEffect(ChangeTokens(TargetOpponent, tokens.TokenHealth, -3))},
		{Name: "hide", Kind: EnemyEffect(ChangeTokens(TargetSelf, tokens.TokenDodge, 2))},
		{Name: "mend", Kind: EnemyEffect(ChangeTokens(TargetSelf, tokens.TokenHealth, 1))},

		{Name: "Strike", Kind: Attack(EffectStrike), Counts: CardCounts{Deck: 4, Hand: 2}},
		{Name: "Flurry", Kind: Attack(EffectStrike, EffectQuickDraw), Counts: CardCounts{Deck: 2}},
		{Name: "Parry", Kind: Defence(EffectGuard), Counts: CardCounts{Deck: 3, Hand: 2}},
		{Name: "Forage", Kind: Resource(EffectForage), Counts: CardCounts{Deck: 3, Hand: 1}},
		{Name: "Study", Kind: Resource(EffectStudy), Counts: CardCounts{Deck: 2, Hand: 1}},

		{Name: "Goblin", Kind: CombatEncounter(CombatantDef{
			Tokens:       health(12),
			AttackDeck:   []EnemyCardDef{{EffectIDs: []int{EffectClaw}, Counts: CardCounts{Deck: 3, Hand: 1}}},
			DefenceDeck:  []EnemyCardDef{{EffectIDs: []int{EffectHide}, Counts: CardCounts{Deck: 2, Hand: 1}}},
			ResourceDeck: []EnemyCardDef{{EffectIDs: []int{EffectMend}, Counts: CardCounts{Deck: 2, Hand: 1}}},
		}), Counts: CardCounts{Deck: 2}},
		{Name: "Troll", Kind: CombatEncounter(CombatantDef{
			Tokens: health(25),
			AttackDeck: []EnemyCardDef{
				{EffectIDs: []int{EffectClaw}, Counts: CardCounts{Deck: 3, Hand: 1}},
				{EffectIDs: []int{EffectClaw, EffectClaw}, Counts: CardCounts{Deck: 1, Hand: 1}},
			},
			DefenceDeck:  []EnemyCardDef{{EffectIDs: []int{EffectHide}, Counts: CardCounts{Deck: 3, Hand: 1}}},
			ResourceDeck: []EnemyCardDef{{EffectIDs: []int{EffectMend}, Counts: CardCounts{Deck: 2, Hand: 2}}},
		}), Counts: CardCounts{Deck: 1}},
	}}
}
