package cards

import (
	"errors"
	"fmt"
)

// Card is one ledger entry. ID is its index and never changes.
type Card struct {
	ID     int        `json:"id"`
	Name   string     `json:"name,omitempty"`
	Kind   CardKind   `json:"kind"`
	Counts CardCounts `json:"counts"`
}

// Ledger is the canonical registry of card definitions and where their
// copies are. It is not safe for concurrent use; the game serializes access.
type Ledger struct {
	cards []Card
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// AddCard appends a card and returns its id.
func (l *Ledger) AddCard(kind CardKind, counts CardCounts) int {
	return l.addNamed("", kind, counts)
}

func (l *Ledger) addNamed(name string, kind CardKind, counts CardCounts) int {
	id := len(l.cards)
	l.cards = append(l.cards, Card{ID: id, Name: name, Kind: kind.Clone(), Counts: counts})
	return id
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.cards)
}

// Card returns a copy of the entry with the given id.
func (l *Ledger) Card(id int) (Card, error) {
	c, err := l.get(id)
	if err != nil {
		return Card{}, err
	}
	out := *c
	out.Kind = c.Kind.Clone()
	return out, nil
}

func (l *Ledger) get(id int) (*Card, error) {
	if id < 0 || id >= len(l.cards) {
		return nil, fmt.Errorf("%w: %d", ErrCardNotFound, id)
	}
	return &l.cards[id], nil
}

func (l *Ledger) move(id int, from, to Zone, n uint32) error {
	c, err := l.get(id)
	if err != nil {
		return err
	}
	if err := c.Counts.Move(from, to, n); err != nil {
		return fmt.Errorf("card %d: %w", id, err)
	}
	return nil
}

// Draw moves one copy from deck to hand.
func (l *Ledger) Draw(id int) error { return l.move(id, ZoneDeck, ZoneHand, 1) }

// Play moves one copy from hand to discard.
func (l *Ledger) Play(id int) error { return l.move(id, ZoneHand, ZoneDiscard, 1) }

// ReturnToLibrary moves one copy from discard to library.
func (l *Ledger) ReturnToLibrary(id int) error { return l.move(id, ZoneDiscard, ZoneLibrary, 1) }

// ReturnToDeck recycles one copy from discard to deck.
func (l *Ledger) ReturnToDeck(id int) error { return l.move(id, ZoneDiscard, ZoneDeck, 1) }

// AddToDeck moves n copies from library to deck.
func (l *Ledger) AddToDeck(id int, n uint32) error { return l.move(id, ZoneLibrary, ZoneDeck, n) }

// CardsMatching returns copies of every entry the predicate accepts, in id order.
func (l *Ledger) CardsMatching(pred func(Card) bool) []Card {
	var out []Card
	for _, c := range l.cards {
		if pred(c) {
			cp := c
			cp.Kind = c.Kind.Clone()
			out = append(out, cp)
		}
	}
	return out
}

// HandCards returns every entry with at least one copy in hand.
func (l *Ledger) HandCards() []Card {
	return l.CardsMatching(func(c Card) bool { return c.Counts.Hand > 0 })
}

// EncounterHand lists encounter ids in hand, once per copy.
func (l *Ledger) EncounterHand() []int {
	var ids []int
	for _, c := range l.cards {
		if c.Kind.Kind != KindEncounter {
			continue
		}
		for i := uint32(0); i < c.Counts.Hand; i++ {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// EncounterDrawToHand draws encounter cards round-robin in id order until
// the encounter hand holds target copies or every encounter deck is empty.
// It returns how many copies were drawn.
func (l *Ledger) EncounterDrawToHand(target int) int {
	size := len(l.EncounterHand())
	drawn := 0
	for size < target {
		progressed := false
		for i := range l.cards {
			c := &l.cards[i]
			if size >= target {
				break
			}
			if c.Kind.Kind != KindEncounter || c.Counts.Deck == 0 {
				continue
			}
			c.Counts.Deck--
			c.Counts.Hand++
			size++
			drawn++
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return drawn
}

// DrawRandom draws one copy of a card of the given kind, weighted by deck
// count. When no copy of that kind is left in the deck, the kind's discard
// pile is recycled into the deck first. It returns the drawn id.
func (l *Ledger) DrawRandom(rng Rand, kind Kind) (int, bool) {
	var ids []int
	for _, c := range l.cards {
		if c.Kind.Kind == kind {
			ids = append(ids, c.ID)
		}
	}
	weights := make([]uint32, len(ids))
	var deck, discard uint32
	for i, id := range ids {
		weights[i] = l.cards[id].Counts.Deck
		deck += l.cards[id].Counts.Deck
		discard += l.cards[id].Counts.Discard
	}
	if deck == 0 && discard > 0 {
		for i, id := range ids {
			c := &l.cards[id]
			c.Counts.Deck += c.Counts.Discard
			c.Counts.Discard = 0
			weights[i] = c.Counts.Deck
		}
	}
	idx, ok := WeightedIndex(rng, weights)
	if !ok {
		return 0, false
	}
	id := ids[idx]
	l.cards[id].Counts.Deck--
	l.cards[id].Counts.Hand++
	return id, true
}

// ValidateCardEffects confirms every effect reference resolves to an
// effect entry of the matching owner. Any failure means the catalog must
// not be used.
func (l *Ledger) ValidateCardEffects() error {
	var errs []error
	for _, c := range l.cards {
		if err := c.Kind.validateShape(); err != nil {
			errs = append(errs, fmt.Errorf("card %d (%s): %w", c.ID, c.Name, err))
			continue
		}
		switch c.Kind.Kind {
		case KindAttack, KindDefence, KindResource:
			for _, eid := range c.Kind.EffectIDs {
				if err := l.checkEffect(eid, KindPlayerCardEffect); err != nil {
					errs = append(errs, fmt.Errorf("card %d (%s): %w", c.ID, c.Name, err))
				}
			}
		case KindEncounter:
			def, _ := c.Kind.Combatant()
			for _, deck := range [][]EnemyCardDef{def.AttackDeck, def.DefenceDeck, def.ResourceDeck} {
				for _, enemy := range deck {
					for _, eid := range enemy.EffectIDs {
						if err := l.checkEffect(eid, KindEnemyCardEffect); err != nil {
							errs = append(errs, fmt.Errorf("card %d (%s) enemy deck: %w", c.ID, c.Name, err))
						}
					}
				}
			}
			for _, a := range def.Tokens {
				if err := a.Token.Normalize().Validate(); err != nil {
					errs = append(errs, fmt.Errorf("card %d (%s): %w", c.ID, c.Name, err))
				}
			}
		case KindPlayerCardEffect, KindEnemyCardEffect:
			if c.Counts.Total() != 0 {
				errs = append(errs, fmt.Errorf("card %d (%s): effect entries cannot hold copies", c.ID, c.Name))
			}
		}
	}
	return errors.Join(errs...)
}

func (l *Ledger) checkEffect(id int, want Kind) error {
	if id < 0 || id >= len(l.cards) {
		return fmt.Errorf("%w: %d", ErrUnknownEffect, id)
	}
	if got := l.cards[id].Kind.Kind; got != want {
		return fmt.Errorf("%w: effect %d is %s, want %s", ErrWrongCardKind, id, got, want)
	}
	return nil
}

// Effect resolves an effect entry of the given owner kind.
func (l *Ledger) Effect(id int, owner Kind) (EffectKind, error) {
	if err := l.checkEffect(id, owner); err != nil {
		return EffectKind{}, err
	}
	e := l.cards[id].Kind.Effect
	if e == nil {
		return EffectKind{}, fmt.Errorf("%w: effect %d has no definition", ErrUnknownEffect, id)
	}
	return *e, nil
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{cards: make([]Card, len(l.cards))}
	for i, c := range l.cards {
		out.cards[i] = Card{ID: c.ID, Name: c.Name, Kind: c.Kind.Clone(), Counts: c.Counts}
	}
	return out
}
