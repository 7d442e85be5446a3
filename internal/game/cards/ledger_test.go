package cards

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magefree/deckledger/internal/game/tokens"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := DefaultCatalog().Build()
	require.NoError(t, err)
	return l
}

func TestLedger_ZoneMoves(t *testing.T) {
	l := NewLedger()
	id := l.AddCard(Attack(), CardCounts{Library: 2, Deck: 1})

	require.NoError(t, l.Draw(id))
	require.NoError(t, l.Play(id))
	require.NoError(t, l.ReturnToDeck(id))
	require.NoError(t, l.AddToDeck(id, 2))

	c, err := l.Card(id)
	require.NoError(t, err)
	assert.Equal(t, CardCounts{Library: 0, Deck: 3, Hand: 0, Discard: 0}, c.Counts)

	require.NoError(t, l.Draw(id))
	require.NoError(t, l.Play(id))
	require.NoError(t, l.ReturnToLibrary(id))
	c, _ = l.Card(id)
	assert.Equal(t, CardCounts{Library: 1, Deck: 2}, c.Counts)
}

func TestLedger_ZoneEmptyErrors(t *testing.T) {
	l := NewLedger()
	id := l.AddCard(Defence(), CardCounts{Library: 1})

	assert.ErrorIs(t, l.Draw(id), ErrZoneEmpty)
	assert.ErrorIs(t, l.Play(id), ErrZoneEmpty)
	assert.ErrorIs(t, l.ReturnToLibrary(id), ErrZoneEmpty)
	assert.ErrorIs(t, l.ReturnToDeck(id), ErrZoneEmpty)
	assert.ErrorIs(t, l.AddToDeck(id, 2), ErrZoneEmpty)

	// failed moves leave counts untouched
	c, _ := l.Card(id)
	assert.Equal(t, CardCounts{Library: 1}, c.Counts)

	assert.ErrorIs(t, l.Draw(99), ErrCardNotFound)
	assert.ErrorIs(t, l.Draw(-1), ErrCardNotFound)
}

func TestLedger_Conservation(t *testing.T) {
	l := newTestLedger(t)
	before := make([]uint32, l.Len())
	for i := range before {
		c, _ := l.Card(i)
		before[i] = c.Counts.Total()
	}

	rng := rand.New(rand.NewPCG(7, 7))
	ops := []func(int) error{
		l.Draw,
		l.Play,
		l.ReturnToLibrary,
		l.ReturnToDeck,
		func(id int) error { return l.AddToDeck(id, uint32(rng.IntN(3))) },
	}
	for i := 0; i < 5000; i++ {
		id := rng.IntN(l.Len())
		_ = ops[rng.IntN(len(ops))](id)
		if i%7 == 0 {
			l.DrawRandom(rng, KindAttack)
		}
		if i%11 == 0 {
			l.EncounterDrawToHand(rng.IntN(3))
		}
	}

	for i := range before {
		c, _ := l.Card(i)
		assert.Equal(t, before[i], c.Counts.Total(), "card %d", i)
	}
}

func TestLedger_EncounterHandAndTopUp(t *testing.T) {
	l := newTestLedger(t)
	assert.Empty(t, l.EncounterHand())

	drawn := l.EncounterDrawToHand(2)
	assert.Equal(t, 2, drawn)
	assert.Equal(t, []int{CardGoblin, CardTroll}, l.EncounterHand())

	// only one goblin left in the deck
	drawn = l.EncounterDrawToHand(10)
	assert.Equal(t, 1, drawn)
	assert.Equal(t, []int{CardGoblin, CardGoblin, CardTroll}, l.EncounterHand())

	assert.Equal(t, 0, l.EncounterDrawToHand(1))
}

func TestLedger_HandCards(t *testing.T) {
	l := newTestLedger(t)
	var ids []int
	for _, c := range l.HandCards() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int{CardStrike, CardParry, CardForage, CardStudy}, ids)

	attacks := l.CardsMatching(func(c Card) bool { return c.Kind.Kind == KindAttack })
	assert.Len(t, attacks, 2)
}

func TestLedger_DrawRandomRecyclesDiscard(t *testing.T) {
	l := NewLedger()
	a := l.AddCard(Resource(), CardCounts{Discard: 2})
	b := l.AddCard(Resource(), CardCounts{Hand: 1})
	rng := rand.New(rand.NewPCG(1, 1))

	id, ok := l.DrawRandom(rng, KindResource)
	require.True(t, ok)
	assert.Equal(t, a, id)

	c, _ := l.Card(a)
	assert.Equal(t, CardCounts{Deck: 1, Hand: 1}, c.Counts)

	_, ok = l.DrawRandom(rng, KindAttack)
	assert.False(t, ok)
	_ = b
}

func TestLedger_ValidateCardEffects(t *testing.T) {
	t.Run("default catalog is valid", func(t *testing.T) {
		require.NoError(t, newTestLedger(t).ValidateCardEffects())
	})

	t.Run("dangling player effect", func(t *testing.T) {
		c := Catalog{Cards: []CardDef{{Name: "broken", Kind: Attack(42), Counts: CardCounts{Deck: 1}}}}
		_, err := c.Build()
		assert.ErrorIs(t, err, ErrUnknownEffect)
	})

	t.Run("enemy effect referenced by player card", func(t *testing.T) {
		c := Catalog{Cards: []CardDef{
			{Name: "claw", Kind: EnemyEffect(ChangeTokens(TargetOpponent, tokens.TokenHealth, -1))},
			{Name: "wrong", Kind: Attack(0), Counts: CardCounts{Deck: 1}},
		}}
		_, err := c.Build()
		assert.ErrorIs(t, err, ErrWrongCardKind)
	})

	t.Run("dangling inline enemy effect", func(t *testing.T) {
		c := Catalog{Cards: []CardDef{{Name: "ghost", Kind: CombatEncounter(CombatantDef{
			AttackDeck: []EnemyCardDef{{EffectIDs: []int{3}, Counts: CardCounts{Deck: 1}}},
		})}}}
		_, err := c.Build()
		assert.ErrorIs(t, err, ErrUnknownEffect)
	})

	t.Run("effect entry with copies", func(t *testing.T) {
		c := Catalog{Cards: []CardDef{
			{Name: "strike", Kind: PlayerEffect(ChangeTokens(TargetOpponent, tokens.TokenHealth, -1)), Counts: CardCounts{Deck: 1}},
		}}
		_, err := c.Build()
		assert.Error(t, err)
	})
}

func TestLedger_CloneIsIndependent(t *testing.T) {
	l := newTestLedger(t)
	cp := l.Clone()
	require.NoError(t, cp.Draw(CardStrike))

	orig, _ := l.Card(CardStrike)
	cloned, _ := cp.Card(CardStrike)
	assert.Equal(t, orig.Counts.Hand+1, cloned.Counts.Hand)

	def, _ := cloned.Kind.Combatant()
	assert.Nil(t, def)
	goblin, _ := cp.Card(CardGoblin)
	gdef, ok := goblin.Kind.Combatant()
	require.True(t, ok)
	gdef.AttackDeck[0].Counts.Hand = 99
	again, _ := l.Card(CardGoblin)
	adef, _ := again.Kind.Combatant()
	assert.Equal(t, uint32(1), adef.AttackDeck[0].Counts.Hand)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	raw := `
cards:
  - name: jab
    kind:
      kind: PlayerCardEffect
      effect:
        type: ChangeTokens
        target: OnOpponent
        token_type: Health
        amount: -2
  - name: bite
    kind:
      kind: EnemyCardEffect
      effect:
        type: ChangeTokens
        target: OnOpponent
        token_type: Health
        amount: -1
  - name: Jab
    kind:
      kind: Attack
      effect_ids: [0]
    counts:
      deck: 3
      hand: 1
  - name: Rat
    kind:
      kind: Encounter
      encounter:
        combat:
          tokens:
            - token: {type: Health}
              amount: 5
          attack_deck:
            - effect_ids: [1]
              counts: {deck: 2, hand: 1}
    counts:
      deck: 1
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Cards, 4)

	l, err := catalog.Build()
	require.NoError(t, err)

	rat, err := l.Card(3)
	require.NoError(t, err)
	def, ok := rat.Kind.Combatant()
	require.True(t, ok)
	assert.Equal(t, tokens.Health(), def.Tokens[0].Token)
	assert.Equal(t, int64(5), def.Tokens[0].Amount)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
