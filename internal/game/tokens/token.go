package tokens

import (
	"fmt"
	"strings"
)

// TokenType identifies what a token measures.
type TokenType string

const (
	TokenHealth    TokenType = "Health"
	TokenMaxHealth TokenType = "MaxHealth"
	TokenDodge     TokenType = "Dodge"
	TokenStamina   TokenType = "Stamina"
	TokenInsight   TokenType = "Insight"
	TokenForesight TokenType = "Foresight"
	TokenRenown    TokenType = "Renown"
)

var knownTypes = map[TokenType]bool{
	TokenHealth:    true,
	TokenMaxHealth: true,
	TokenDodge:     true,
	TokenStamina:   true,
	TokenInsight:   true,
	TokenForesight: true,
	TokenRenown:    true,
}

// Valid reports whether t is one of the known token types.
func (t TokenType) Valid() bool {
	return knownTypes[t]
}

// LifecycleKind names how long a token balance lives.
type LifecycleKind string

const (
	LifecyclePermanent         LifecycleKind = "Permanent"
	LifecyclePersistentCounter LifecycleKind = "PersistentCounter"
	LifecycleFixedDuration     LifecycleKind = "FixedDuration"
	LifecycleFixedTypeDuration LifecycleKind = "FixedTypeDuration"
	LifecycleUntilNextAction   LifecycleKind = "UntilNextAction"
	LifecycleSingleUse         LifecycleKind = "SingleUse"
	LifecycleConditional       LifecycleKind = "Conditional"
)

// PhaseMask is a set of combat phases a FixedTypeDuration token counts down in.
type PhaseMask uint8

const (
	PhaseDefending PhaseMask = 1 << iota
	PhaseAttacking
	PhaseResourcing
)

func (m PhaseMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	if m&PhaseDefending != 0 {
		parts = append(parts, "Defending")
	}
	if m&PhaseAttacking != 0 {
		parts = append(parts, "Attacking")
	}
	if m&PhaseResourcing != 0 {
		parts = append(parts, "Resourcing")
	}
	return strings.Join(parts, "|")
}

// Lifecycle is a closed union discriminated by Kind. Duration is only
// meaningful for FixedDuration and FixedTypeDuration, Phases only for
// FixedTypeDuration. The struct stays comparable so Token can key a map.
type Lifecycle struct {
	Kind     LifecycleKind `json:"kind" yaml:"kind"`
	Duration uint32        `json:"duration,omitempty" yaml:"duration,omitempty"`
	Phases   PhaseMask     `json:"phases,omitempty" yaml:"phases,omitempty"`
}

func Permanent() Lifecycle         { return Lifecycle{Kind: LifecyclePermanent} }
func PersistentCounter() Lifecycle { return Lifecycle{Kind: LifecyclePersistentCounter} }
func UntilNextAction() Lifecycle   { return Lifecycle{Kind: LifecycleUntilNextAction} }
func SingleUse() Lifecycle         { return Lifecycle{Kind: LifecycleSingleUse} }
func Conditional() Lifecycle       { return Lifecycle{Kind: LifecycleConditional} }

// FixedDuration lasts for the given number of rounds.
func FixedDuration(rounds uint32) Lifecycle {
	return Lifecycle{Kind: LifecycleFixedDuration, Duration: rounds}
}

// FixedTypeDuration lasts for the given number of the listed phases.
func FixedTypeDuration(duration uint32, phases PhaseMask) Lifecycle {
	return Lifecycle{Kind: LifecycleFixedTypeDuration, Duration: duration, Phases: phases}
}

// Validate checks that the lifecycle carries exactly the fields its kind uses.
func (l Lifecycle) Validate() error {
	switch l.Kind {
	case LifecyclePermanent, LifecyclePersistentCounter, LifecycleUntilNextAction,
		LifecycleSingleUse, LifecycleConditional:
		if l.Duration != 0 || l.Phases != 0 {
			return fmt.Errorf("lifecycle %s takes no duration or phases", l.Kind)
		}
	case LifecycleFixedDuration:
		if l.Phases != 0 {
			return fmt.Errorf("lifecycle %s takes no phases", l.Kind)
		}
	case LifecycleFixedTypeDuration:
		if l.Phases == 0 {
			return fmt.Errorf("lifecycle %s requires at least one phase", l.Kind)
		}
	default:
		return fmt.Errorf("unknown lifecycle %q", l.Kind)
	}
	return nil
}

func (l Lifecycle) String() string {
	switch l.Kind {
	case LifecycleFixedDuration:
		return fmt.Sprintf("%s(%d)", l.Kind, l.Duration)
	case LifecycleFixedTypeDuration:
		return fmt.Sprintf("%s(%d,%s)", l.Kind, l.Duration, l.Phases)
	default:
		return string(l.Kind)
	}
}

// Token is the balance key: the same type under two lifecycles is two
// separate balances.
type Token struct {
	Type      TokenType `json:"token_type" yaml:"type"`
	Lifecycle Lifecycle `json:"lifecycle" yaml:"lifecycle"`
}

// New returns the token of type t under its default lifecycle.
func New(t TokenType) Token {
	return Token{Type: t, Lifecycle: DefaultLifecycle(t)}
}

// DefaultLifecycle is the lifecycle card effects use when they only name a type.
func DefaultLifecycle(t TokenType) Lifecycle {
	switch t {
	case TokenDodge:
		return FixedTypeDuration(1, PhaseDefending)
	default:
		return PersistentCounter()
	}
}

// Normalize fills in the default lifecycle when none was given.
func (t Token) Normalize() Token {
	if t.Lifecycle.Kind == "" {
		t.Lifecycle = DefaultLifecycle(t.Type)
	}
	return t
}

// Validate checks the type and lifecycle.
func (t Token) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("unknown token type %q", t.Type)
	}
	if err := t.Lifecycle.Validate(); err != nil {
		return fmt.Errorf("token %s: %w", t.Type, err)
	}
	return nil
}

func (t Token) String() string {
	return string(t.Type) + "/" + t.Lifecycle.String()
}

// Health is the persistent health entry damage is subtracted from.
func Health() Token { return New(TokenHealth) }

// Dodge is the entry that absorbs incoming damage before health.
func Dodge() Token { return New(TokenDodge) }

// Foresight drives how many encounters a scouting preview reveals.
func Foresight() Token { return New(TokenForesight) }
