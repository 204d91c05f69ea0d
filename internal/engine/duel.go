package engine

import "time"

type Duel struct {
	ID           string
	Phase        Phase
	Turn         Side
	PlayerChoice Side
	Red          Fighter
	Blue         Fighter
	Result       *Outcome
	Triggers     int

	rules    Rules
	rng      Rand
	auth     Authorization
	resolved bool
}

func NewDuel(id string, rules Rules, rng Rand) *Duel {
	return &Duel{
		ID:    id,
		Phase: PhaseIdle,
		Red:   NewFighter(SideRed, rules.MaxHealth),
		Blue:  NewFighter(SideBlue, rules.MaxHealth),
		rules: rules,
		rng:   rng,
	}
}

func (d *Duel) Rules() Rules                 { return d.rules }
func (d *Duel) Authorization() Authorization { return d.auth }

func (d *Duel) Fighter(side Side) *Fighter {
	switch side {
	case SideRed:
		return &d.Red
	case SideBlue:
		return &d.Blue
	default:
		return nil
	}
}

func (d *Duel) SelectSide(side Side) ([]Event, error) {
	if !side.Valid() {
		return nil, ErrInvalidSide
	}
	switch d.Phase {
	case PhaseConcluded:
		return nil, ErrDuelConcluded
	case PhaseFighting:
		return nil, ErrSelectionLocked
	}
	d.PlayerChoice = side
	return []Event{{Type: EvtSideSelected, Side: side}}, nil
}

// CanStart reports whether Start would accept auth, without changing the duel.
func (d *Duel) CanStart(auth Authorization) error {
	switch d.Phase {
	case PhaseConcluded:
		return ErrDuelConcluded
	case PhaseFighting:
		return ErrAlreadyStarted
	}
	if !d.PlayerChoice.Valid() {
		return ErrNoSelection
	}
	if !auth.Authorized {
		return ErrUnauthorized
	}
	return nil
}

// Start moves an idle duel into fighting and draws the first attacker.
// On error the duel is left untouched.
func (d *Duel) Start(auth Authorization) ([]Event, error) {
	if err := d.CanStart(auth); err != nil {
		return nil, err
	}

	d.auth = auth
	d.Phase = PhaseFighting
	d.Turn = SideRed
	if d.rng.IntN(2) == 1 {
		d.Turn = SideBlue
	}
	return []Event{{Type: EvtDuelStarted, Side: d.Turn}}, nil
}

// Trigger is one scheduler tick: the side on turn attacks and the turn
// flips, even when the attacker is still busy with its previous attack.
// Trigger never touches health.
func (d *Duel) Trigger(now time.Duration) []Event {
	if d.Phase != PhaseFighting {
		return nil
	}

	attacker := d.Fighter(d.Turn)
	var events []Event
	if attacker.startAttack(now) {
		events = append(events, Event{Type: EvtAttackStarted, Side: attacker.Side, At: now})
	} else {
		events = append(events, Event{Type: EvtAttackIgnored, Side: attacker.Side, At: now})
	}

	d.Turn = d.Turn.Opponent()
	d.Triggers++
	events = append(events, Event{Type: EvtTurnAdvanced, Side: d.Turn, At: now})
	return events
}

// Update is one frame: every attacking fighter is sampled at now, then the
// duel concludes if someone was knocked out.
func (d *Duel) Update(now time.Duration) []Event {
	if d.Phase != PhaseFighting {
		return nil
	}

	var events []Event
	for _, attacker := range d.evaluationOrder() {
		defender := d.Fighter(attacker.Side.Opponent())
		events = append(events, ResolveAttack(attacker, defender, now, d.rules, d.rng)...)
	}

	for _, f := range []*Fighter{&d.Red, &d.Blue} {
		if f.KnockedOut() {
			concluded, err := d.Conclude(f.Side.Opponent())
			if err == nil {
				events = append(events, Event{Type: EvtKnockout, Side: f.Side, At: now})
				events = append(events, concluded...)
			}
			break
		}
	}
	return events
}

// evaluationOrder samples the fighter whose attack started first before the
// other one, red first on ties. Together with the knocked-out check in
// ResolveAttack this makes the first blow of a frame the deciding one.
func (d *Duel) evaluationOrder() [2]*Fighter {
	if d.Blue.IsAttacking && d.Red.IsAttacking && d.Blue.AttackStartTime < d.Red.AttackStartTime {
		return [2]*Fighter{&d.Blue, &d.Red}
	}
	return [2]*Fighter{&d.Red, &d.Blue}
}

// Conclude ends a fighting duel with winner and resolves the reward. It runs
// at most once per duel; later calls return ErrAlreadyResolved and change
// nothing.
func (d *Duel) Conclude(winner Side) ([]Event, error) {
	if d.resolved {
		return nil, ErrAlreadyResolved
	}
	if d.Phase != PhaseFighting {
		return nil, ErrNotStarted
	}
	if !winner.Valid() {
		return nil, ErrInvalidSide
	}

	d.resolved = true
	d.Phase = PhaseConcluded
	out := ResolveOutcome(winner, d.PlayerChoice, d.rules.Prizes, d.rng)
	d.Result = &out
	return []Event{{Type: EvtDuelConcluded, Side: winner, Outcome: &out}}, nil
}
