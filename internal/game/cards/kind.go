package cards

import (
	"fmt"
	"slices"

	"github.com/magefree/deckledger/internal/game/tokens"
)

// Kind discriminates CardKind.
type Kind string

const (
	KindAttack           Kind = "Attack"
	KindDefence          Kind = "Defence"
	KindResource         Kind = "Resource"
	KindEncounter        Kind = "Encounter"
	KindPlayerCardEffect Kind = "PlayerCardEffect"
	KindEnemyCardEffect  Kind = "EnemyCardEffect"
)

// CardKind is a closed union over Kind:
//   - Attack, Defence, Resource use EffectIDs
//   - Encounter uses Encounter
//   - PlayerCardEffect, EnemyCardEffect use Effect
type CardKind struct {
	Kind      Kind           `json:"kind" yaml:"kind"`
	EffectIDs []int          `json:"effect_ids,omitempty" yaml:"effect_ids,omitempty"`
	Encounter *EncounterKind `json:"encounter,omitempty" yaml:"encounter,omitempty"`
	Effect    *EffectKind    `json:"effect,omitempty" yaml:"effect,omitempty"`
}

// EncounterKind has a single variant today.
type EncounterKind struct {
	Combat *CombatantDef `json:"combat,omitempty" yaml:"combat,omitempty"`
}

// CombatantDef describes an enemy: its starting tokens and three inline decks.
type CombatantDef struct {
	Tokens       []tokens.Amount `json:"tokens" yaml:"tokens"`
	AttackDeck   []EnemyCardDef  `json:"attack_deck" yaml:"attack_deck"`
	DefenceDeck  []EnemyCardDef  `json:"defence_deck" yaml:"defence_deck"`
	ResourceDeck []EnemyCardDef  `json:"resource_deck" yaml:"resource_deck"`
}

// EnemyCardDef is one entry of an inline enemy deck. It is copied into
// combat state, never referenced from the ledger.
type EnemyCardDef struct {
	EffectIDs []int      `json:"effect_ids" yaml:"effect_ids"`
	Counts    CardCounts `json:"counts" yaml:"counts"`
}

// EffectType discriminates EffectKind.
type EffectType string

const (
	EffectChangeTokens EffectType = "ChangeTokens"
	EffectDrawCards    EffectType = "DrawCards"
)

// EffectTarget is relative to whoever played the card.
type EffectTarget string

const (
	TargetSelf     EffectTarget = "OnSelf"
	TargetOpponent EffectTarget = "OnOpponent"
)

// DrawCounts are per-type draws resolved after all effects of a card.
type DrawCounts struct {
	Attack   uint32 `json:"attack" yaml:"attack"`
	Defence  uint32 `json:"defence" yaml:"defence"`
	Resource uint32 `json:"resource" yaml:"resource"`
}

// Add accumulates other into d.
func (d *DrawCounts) Add(other DrawCounts) {
	d.Attack += other.Attack
	d.Defence += other.Defence
	d.Resource += other.Resource
}

// IsZero reports whether nothing is pending.
func (d DrawCounts) IsZero() bool {
	return d.Attack == 0 && d.Defence == 0 && d.Resource == 0
}

// EffectKind is a closed union over Type. ChangeTokens uses Target,
// TokenType and Amount; DrawCards uses Draw.
type EffectKind struct {
	Type      EffectType       `json:"type" yaml:"type"`
	Target    EffectTarget     `json:"target,omitempty" yaml:"target,omitempty"`
	TokenType tokens.TokenType `json:"token_type,omitempty" yaml:"token_type,omitempty"`
	Amount    int64            `json:"amount,omitempty" yaml:"amount,omitempty"`
	Draw      DrawCounts       `json:"draw,omitempty" yaml:"draw,omitempty"`
}

// ChangeTokens builds a token-changing effect.
func ChangeTokens(target EffectTarget, t tokens.TokenType, amount int64) EffectKind {
	return EffectKind{Type: EffectChangeTokens, Target: target, TokenType: t, Amount: amount}
}

// DrawCards builds a draw effect.
func DrawCards(attack, defence, resource uint32) EffectKind {
	return EffectKind{Type: EffectDrawCards, Draw: DrawCounts{Attack: attack, Defence: defence, Resource: resource}}
}

func (e EffectKind) validate() error {
	switch e.Type {
	case EffectChangeTokens:
		if e.Target != TargetSelf && e.Target != TargetOpponent {
			return fmt.Errorf("unknown effect target %q", e.Target)
		}
		if !e.TokenType.Valid() {
			return fmt.Errorf("unknown token type %q", e.TokenType)
		}
	case EffectDrawCards:
	default:
		return fmt.Errorf("unknown effect type %q", e.Type)
	}
	return nil
}

func Attack(effectIDs ...int) CardKind   { return CardKind{Kind: KindAttack, EffectIDs: effectIDs} }
func Defence(effectIDs ...int) CardKind  { return CardKind{Kind: KindDefence, EffectIDs: effectIDs} }
func Resource(effectIDs ...int) CardKind { return CardKind{Kind: KindResource, EffectIDs: effectIDs} }

// CombatEncounter wraps a combatant definition as an encounter card.
func CombatEncounter(def CombatantDef) CardKind {
	return CardKind{Kind: KindEncounter, Encounter: &EncounterKind{Combat: &def}}
}

// PlayerEffect is a definitional entry referenced by player cards.
func PlayerEffect(e EffectKind) CardKind {
	return CardKind{Kind: KindPlayerCardEffect, Effect: &e}
}

// EnemyEffect is a definitional entry referenced by enemy deck entries.
func EnemyEffect(e EffectKind) CardKind {
	return CardKind{Kind: KindEnemyCardEffect, Effect: &e}
}

// IsPlayerCard reports whether the kind can be played from the player's hand.
func (k CardKind) IsPlayerCard() bool {
	switch k.Kind {
	case KindAttack, KindDefence, KindResource:
		return true
	default:
		return false
	}
}

// IsEffect reports whether the kind is a definitional effect entry.
func (k CardKind) IsEffect() bool {
	return k.Kind == KindPlayerCardEffect || k.Kind == KindEnemyCardEffect
}

// Combatant returns the combat definition of an encounter card.
func (k CardKind) Combatant() (*CombatantDef, bool) {
	if k.Kind != KindEncounter || k.Encounter == nil || k.Encounter.Combat == nil {
		return nil, false
	}
	return k.Encounter.Combat, true
}

// validateShape checks that only the fields of the active variant are set.
func (k CardKind) validateShape() error {
	switch k.Kind {
	case KindAttack, KindDefence, KindResource:
		if k.Encounter != nil || k.Effect != nil {
			return fmt.Errorf("%s card carries encounter or effect data", k.Kind)
		}
	case KindEncounter:
		if _, ok := k.Combatant(); !ok {
			return fmt.Errorf("encounter card has no combat definition")
		}
		if len(k.EffectIDs) > 0 || k.Effect != nil {
			return fmt.Errorf("encounter card carries effect data")
		}
	case KindPlayerCardEffect, KindEnemyCardEffect:
		if k.Effect == nil {
			return fmt.Errorf("%s entry has no effect", k.Kind)
		}
		if len(k.EffectIDs) > 0 || k.Encounter != nil {
			return fmt.Errorf("%s entry carries card data", k.Kind)
		}
		return k.Effect.validate()
	default:
		return fmt.Errorf("unknown card kind %q", k.Kind)
	}
	return nil
}

// Clone deep-copies the kind so ledger copies never share slices.
func (k CardKind) Clone() CardKind {
	out := CardKind{Kind: k.Kind, EffectIDs: slices.Clone(k.EffectIDs)}
	if k.Effect != nil {
		e := *k.Effect
		out.Effect = &e
	}
	if k.Encounter != nil {
		enc := EncounterKind{}
		if k.Encounter.Combat != nil {
			def := k.Encounter.Combat.Clone()
			enc.Combat = &def
		}
		out.Encounter = &enc
	}
	return out
}

// Clone deep-copies the combatant definition including its decks.
func (d CombatantDef) Clone() CombatantDef {
	return CombatantDef{
		Tokens:       slices.Clone(d.Tokens),
		AttackDeck:   CloneDeck(d.AttackDeck),
		DefenceDeck:  CloneDeck(d.DefenceDeck),
		ResourceDeck: CloneDeck(d.ResourceDeck),
	}
}

// CloneDeck deep-copies an inline enemy deck.
func CloneDeck(deck []EnemyCardDef) []EnemyCardDef {
	if deck == nil {
		return nil
	}
	out := make([]EnemyCardDef, len(deck))
	for i, c := range deck {
		out[i] = EnemyCardDef{EffectIDs: slices.Clone(c.EffectIDs), Counts: c.Counts}
	}
	return out
}
