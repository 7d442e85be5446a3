package actionlog

import (
	"encoding/json"
	"fmt"

	"github.com/magefree/deckledger/internal/game/tokens"
)

// Payload variant names. They are also the default action_type.
const (
	TypeGrantToken       = "GrantToken"
	TypeConsumeToken     = "ConsumeToken"
	TypeExpireToken      = "ExpireToken"
	TypeSetSeed          = "SetSeed"
	TypeRngDraw          = "RngDraw"
	TypeRngSnapshot      = "RngSnapshot"
	TypePlayCard         = "PlayCard"
	TypeDrawEncounter    = "DrawEncounter"
	TypeReplaceEncounter = "ReplaceEncounter"
	TypeConsumEntryCost  = "ConsumEntryCost"
	TypeApplyScouting    = "ApplyScouting"
)

// Payload is the closed set of things an entry can record. Only types in
// this file implement it.
type Payload interface {
	Variant() string
	isPayload()
}

type GrantToken struct {
	TokenID         tokens.Token `json:"token_id"`
	Amount          int64        `json:"amount"`
	Reason          string       `json:"reason,omitempty"`
	ResultingAmount int64        `json:"resulting_amount"`
}

type ConsumeToken struct {
	TokenID         tokens.Token `json:"token_id"`
	Amount          int64        `json:"amount"`
	Reason          string       `json:"reason,omitempty"`
	ResultingAmount int64        `json:"resulting_amount"`
}

type ExpireToken struct {
	TokenID tokens.Token `json:"token_id"`
	Amount  int64        `json:"amount"`
	Reason  string       `json:"reason,omitempty"`
}

type SetSeed struct {
	Seed uint64 `json:"seed"`
}

// RngDraw and RngSnapshot are audit records; replay keeps them but they
// change nothing.
type RngDraw struct {
	Purpose string `json:"purpose"`
	Value   uint64 `json:"value"`
}

type RngSnapshot struct {
	Snapshot string `json:"snapshot"`
}

type PlayCard struct {
	CardID int    `json:"card_id"`
	DeckID *int   `json:"deck_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type DrawEncounter struct {
	AreaID      string `json:"area_id"`
	EncounterID int    `json:"encounter_id"`
	Reason      string `json:"reason,omitempty"`
}

type ReplaceEncounter struct {
	AreaID         string   `json:"area_id"`
	OldEncounterID int      `json:"old_encounter_id"`
	NewEncounterID int      `json:"new_encounter_id"`
	AffixesApplied []string `json:"affixes_applied"`
	Reason         string   `json:"reason,omitempty"`
}

type ConsumEntryCost struct {
	AreaID      string `json:"area_id"`
	EncounterID int    `json:"encounter_id"`
	CostAmount  int64  `json:"cost_amount"`
	Reason      string `json:"reason,omitempty"`
}

type ApplyScouting struct {
	AreaID     string `json:"area_id"`
	Parameters string `json:"parameters"`
	Reason     string `json:"reason,omitempty"`
}

func (GrantToken) Variant() string       { return TypeGrantToken }
func (ConsumeToken) Variant() string     { return TypeConsumeToken }
func (ExpireToken) Variant() string      { return TypeExpireToken }
func (SetSeed) Variant() string          { return TypeSetSeed }
func (RngDraw) Variant() string          { return TypeRngDraw }
func (RngSnapshot) Variant() string      { return TypeRngSnapshot }
func (PlayCard) Variant() string         { return TypePlayCard }
func (DrawEncounter) Variant() string    { return TypeDrawEncounter }
func (ReplaceEncounter) Variant() string { return TypeReplaceEncounter }
func (ConsumEntryCost) Variant() string  { return TypeConsumEntryCost }
func (ApplyScouting) Variant() string    { return TypeApplyScouting }

func (GrantToken) isPayload()       {}
func (ConsumeToken) isPayload()     {}
func (ExpireToken) isPayload()      {}
func (SetSeed) isPayload()          {}
func (RngDraw) isPayload()          {}
func (RngSnapshot) isPayload()      {}
func (PlayCard) isPayload()         {}
func (DrawEncounter) isPayload()    {}
func (ReplaceEncounter) isPayload() {}
func (ConsumEntryCost) isPayload()  {}
func (ApplyScouting) isPayload()    {}

func decodeVariant[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

var decoders = map[string]func(json.RawMessage) (Payload, error){
	TypeGrantToken:       decodeVariant[GrantToken],
	TypeConsumeToken:     decodeVariant[ConsumeToken],
	TypeExpireToken:      decodeVariant[ExpireToken],
	TypeSetSeed:          decodeVariant[SetSeed],
	TypeRngDraw:          decodeVariant[RngDraw],
	TypeRngSnapshot:      decodeVariant[RngSnapshot],
	TypePlayCard:         decodeVariant[PlayCard],
	TypeDrawEncounter:    decodeVariant[DrawEncounter],
	TypeReplaceEncounter: decodeVariant[ReplaceEncounter],
	TypeConsumEntryCost:  decodeVariant[ConsumEntryCost],
	TypeApplyScouting:    decodeVariant[ApplyScouting],
}

// MarshalPayload encodes p externally tagged: {"Variant":{...fields}}.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrMalformedEntry)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{p.Variant(): body})
}

// UnmarshalPayload decodes an externally tagged payload.
func UnmarshalPayload(data []byte) (Payload, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedEntry, err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("%w: payload must have exactly one variant, got %d", ErrMalformedEntry, len(envelope))
	}
	for variant, body := range envelope {
		decode, ok := decoders[variant]
		if !ok {
			return nil, fmt.Errorf("%w: unknown payload variant %q", ErrMalformedEntry, variant)
		}
		p, err := decode(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEntry, variant, err)
		}
		return p, nil
	}
	panic("unreachable")
}
