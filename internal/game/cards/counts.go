package cards

import (
	"errors"
	"fmt"
)

var (
	ErrCardNotFound  = errors.New("card not found")
	ErrZoneEmpty     = errors.New("not enough copies in zone")
	ErrWrongCardKind = errors.New("wrong card kind")
	ErrUnknownEffect = errors.New("unknown effect id")
)

// Zone is one of the four places a card copy can be.
type Zone int

const (
	ZoneLibrary Zone = iota
	ZoneDeck
	ZoneHand
	ZoneDiscard
)

func (z Zone) String() string {
	switch z {
	case ZoneLibrary:
		return "library"
	case ZoneDeck:
		return "deck"
	case ZoneHand:
		return "hand"
	case ZoneDiscard:
		return "discard"
	default:
		return fmt.Sprintf("zone_%d", int(z))
	}
}

// CardCounts holds the number of copies of one card in each zone.
type CardCounts struct {
	Library uint32 `json:"library" yaml:"library"`
	Deck    uint32 `json:"deck" yaml:"deck"`
	Hand    uint32 `json:"hand" yaml:"hand"`
	Discard uint32 `json:"discard" yaml:"discard"`
}

// Total is invariant under every move between zones.
func (c CardCounts) Total() uint32 {
	return c.Library + c.Deck + c.Hand + c.Discard
}

// Get returns the count in zone z.
func (c CardCounts) Get(z Zone) uint32 {
	return *c.slot(z)
}

func (c *CardCounts) slot(z Zone) *uint32 {
	switch z {
	case ZoneLibrary:
		return &c.Library
	case ZoneDeck:
		return &c.Deck
	case ZoneHand:
		return &c.Hand
	case ZoneDiscard:
		return &c.Discard
	default:
		panic(fmt.Sprintf("cards: invalid zone %d", int(z)))
	}
}

// Move transfers n copies between zones, failing without change when the
// source holds fewer than n.
func (c *CardCounts) Move(from, to Zone, n uint32) error {
	src := c.slot(from)
	if *src < n {
		return fmt.Errorf("%w: %s has %d, need %d", ErrZoneEmpty, from, *src, n)
	}
	*src -= n
	*c.slot(to) += n
	return nil
}
