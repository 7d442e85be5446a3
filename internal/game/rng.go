package game

import (
	"encoding/base64"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/magefree/deckledger/internal/actionlog"
)

// auditRand is the game's only source of randomness. When record is set,
// every draw is kept so it can be logged or checked against a log.
type auditRand struct {
	r       *rand.Rand
	purpose string
	record  bool
	draws   []actionlog.RngDraw
}

func (a *auditRand) IntN(n int) int {
	v := a.r.IntN(n)
	if a.record {
		a.draws = append(a.draws, actionlog.RngDraw{Purpose: a.purpose, Value: uint64(v)})
	}
	return v
}

func (g *Game) rngState() (string, error) {
	b, err := g.pcg.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode rng state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// SnapshotRNG appends the generator's current state to the log. Replay
// checks it against its own generator at the same point.
func (g *Game) SnapshotRNG(opts ...actionlog.AppendOption) (actionlog.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.rngState()
	if err != nil {
		return actionlog.Entry{}, err
	}
	entry := g.log.Append("", actionlog.RngSnapshot{Snapshot: state}, opts...)
	g.logger.Debug("rng snapshot recorded", zap.Uint64("seq", entry.Seq))
	return entry, nil
}
