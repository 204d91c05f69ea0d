package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// Rand is the randomness the engine draws from. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewSeed reads a seed from crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func ContainsEvent(events []Event, eventType EventType) bool {
	_, ok := FindEvent(events, eventType)
	return ok
}

func FindEvent(events []Event, eventType EventType) (Event, bool) {
	for _, event := range events {
		if event.Type == eventType {
			return event, true
		}
	}
	return Event{}, false
}

type FighterView struct {
	Side          Side  `json:"side"`
	Health        int   `json:"health"`
	MaxHealth     int   `json:"max_health"`
	IsAttacking   bool  `json:"is_attacking"`
	AttackStartMS int64 `json:"attack_start_ms"`
}

// View is a copy of the duel safe to hand to other goroutines.
type View struct {
	ID           string      `json:"id"`
	Phase        Phase       `json:"phase"`
	Turn         Side        `json:"turn,omitempty"`
	PlayerChoice Side        `json:"player_choice,omitempty"`
	Red          FighterView `json:"red"`
	Blue         FighterView `json:"blue"`
	Triggers     int         `json:"triggers"`
	Result       *Outcome    `json:"result,omitempty"`
}

func (d *Duel) View() View {
	v := View{
		ID:           d.ID,
		Phase:        d.Phase,
		Turn:         d.Turn,
		PlayerChoice: d.PlayerChoice,
		Red:          fighterView(d.Red),
		Blue:         fighterView(d.Blue),
		Triggers:     d.Triggers,
	}
	if d.Result != nil {
		out := *d.Result
		v.Result = &out
	}
	return v
}

func fighterView(f Fighter) FighterView {
	return FighterView{
		Side:          f.Side,
		Health:        f.Health,
		MaxHealth:     f.MaxHealth,
		IsAttacking:   f.IsAttacking,
		AttackStartMS: f.AttackStartTime.Milliseconds(),
	}
}
