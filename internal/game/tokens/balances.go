package tokens

import "sort"

// Amount pairs a token with a quantity. Catalog files and snapshots use it
// because Token has no text form for JSON map keys.
type Amount struct {
	Token  Token `json:"token" yaml:"token"`
	Amount int64 `json:"amount" yaml:"amount"`
}

// Balances maps tokens to signed quantities. Unread keys are 0.
type Balances map[Token]int64

// NewBalances returns an empty balance map seeded with the given amounts.
func NewBalances(initial ...Amount) Balances {
	b := make(Balances, len(initial))
	for _, a := range initial {
		b[a.Token.Normalize()] += a.Amount
	}
	return b
}

// Get returns the balance of t.
func (b Balances) Get(t Token) int64 {
	return b[t]
}

// Set overwrites the balance of t.
func (b Balances) Set(t Token, amount int64) {
	b[t] = amount
}

// Grant adds amount with no floor and returns the resulting balance.
func (b Balances) Grant(t Token, amount int64) int64 {
	b[t] += amount
	return b[t]
}

// Consume subtracts amount with no floor and returns the resulting balance.
func (b Balances) Consume(t Token, amount int64) int64 {
	b[t] -= amount
	return b[t]
}

// Expire subtracts amount, clamping the result at 0.
func (b Balances) Expire(t Token, amount int64) int64 {
	v := b[t] - amount
	if v < 0 {
		v = 0
	}
	b[t] = v
	return v
}

// ApplyDamage resolves incoming damage against the dodge entry first and
// the health entry second. Health never drops below 0.
func (b Balances) ApplyDamage(amount int64) (absorbed, dealt int64) {
	if amount <= 0 {
		return 0, 0
	}
	dodge := Dodge()
	absorbed = min(max(b[dodge], 0), amount)
	b[dodge] -= absorbed

	dealt = amount - absorbed
	if dealt > 0 {
		health := Health()
		b[health] = max(b[health]-dealt, 0)
	}
	return absorbed, dealt
}

// Change applies a signed card effect delta. Negative health changes are
// damage and go through ApplyDamage; everything else is a plain grant.
func (b Balances) Change(t TokenType, amount int64) {
	if t == TokenHealth && amount < 0 {
		b.ApplyDamage(-amount)
		return
	}
	b.Grant(New(t), amount)
}

// Clone returns an independent copy.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Sorted returns the non-zero balances in a stable order.
func (b Balances) Sorted() []Amount {
	out := make([]Amount, 0, len(b))
	for k, v := range b {
		if v == 0 {
			continue
		}
		out = append(out, Amount{Token: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Token.String() < out[j].Token.String()
	})
	return out
}
