package engine

import (
	"errors"
	"time"
)

var ErrInvalidSide = errors.New("invalid side")
var ErrNoSelection = errors.New("no fighter selected")
var ErrUnauthorized = errors.New("session not authorized")
var ErrAlreadyStarted = errors.New("duel already started")
var ErrNotStarted = errors.New("duel not started")
var ErrDuelConcluded = errors.New("duel already concluded")
var ErrSelectionLocked = errors.New("selection locked")
var ErrAlreadyResolved = errors.New("outcome already resolved")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Side string

const (
	SideRed  Side = "red"
	SideBlue Side = "blue"
)

func (s Side) Valid() bool {
	return s == SideRed || s == SideBlue
}

func (s Side) Opponent() Side {
	switch s {
	case SideRed:
		return SideBlue
	case SideBlue:
		return SideRed
	default:
		return ""
	}
}

func ParseSide(side string) (Side, bool) {
	switch side {
	case "red":
		return SideRed, true
	case "blue":
		return SideBlue, true
	default:
		return "", false
	}
}

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseFighting  Phase = "fighting"
	PhaseConcluded Phase = "concluded"
)

// Rules holds the per-duel constants. Durations are measured on the duel's
// own clock, not wall time.
type Rules struct {
	MaxHealth      int
	AttackDuration time.Duration
	AttackTick     time.Duration
	DamageMin      int
	DamageMax      int
	HitWindowStart float64
	HitWindowEnd   float64
	Prizes         []int
}

func DefaultRules() Rules {
	return Rules{
		MaxHealth:      100,
		AttackDuration: 500 * time.Millisecond,
		AttackTick:     900 * time.Millisecond,
		DamageMin:      5,
		DamageMax:      20,
		HitWindowStart: 0.4,
		HitWindowEnd:   0.6,
		Prizes:         []int{3000, 5000, 8000},
	}
}

// Authorization is the gate a start command must pass. Token is opaque to
// the engine and only travels with the result.
type Authorization struct {
	Authorized bool
	Token      string
}

type CommandType string

const (
	CmdSelectSide CommandType = "SelectSide"
	CmdStartDuel  CommandType = "StartDuel"
)

/*
	CmdSelectSide -> EvtSideSelected
	CmdStartDuel  -> EvtDuelStarted (Side = first attacker)

	Trigger (scheduler tick) -> EvtAttackStarted | EvtAttackIgnored -> EvtTurnAdvanced
	Update (frame)           -> EvtHitLanded? -> EvtAttackFinished? -> EvtKnockout -> EvtDuelConcluded
*/

type Command struct {
	Type CommandType
	Side Side
	Auth Authorization
}

type EventType string

const (
	EvtSideSelected   EventType = "SideSelected"
	EvtDuelStarted    EventType = "DuelStarted"
	EvtAttackStarted  EventType = "AttackStarted"
	EvtAttackIgnored  EventType = "AttackIgnored"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtHitLanded      EventType = "HitLanded"
	EvtAttackFinished EventType = "AttackFinished"
	EvtKnockout       EventType = "Knockout"
	EvtDuelConcluded  EventType = "DuelConcluded"
)

// Event describes one state change. Side is the acting fighter, except for
// EvtTurnAdvanced (next attacker), EvtKnockout (the fallen fighter) and
// EvtDuelConcluded (the winner).
type Event struct {
	Type    EventType
	Side    Side
	Damage  int
	Health  int
	At      time.Duration
	Outcome *Outcome
}

// Apply routes an external command to the duel.
func (d *Duel) Apply(cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdSelectSide:
		return d.SelectSide(cmd.Side)
	case CmdStartDuel:
		return d.Start(cmd.Auth)
	default:
		return nil, ErrUnsupportedCommand
	}
}
