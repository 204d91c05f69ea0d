package engine

import "time"

type Fighter struct {
	Side            Side
	Health          int
	MaxHealth       int
	IsAttacking     bool
	AttackStartTime time.Duration
	HitApplied      bool
}

func NewFighter(side Side, maxHealth int) Fighter {
	return Fighter{Side: side, Health: maxHealth, MaxHealth: maxHealth}
}

// startAttack begins a new attack instance at now. A fighter already
// attacking keeps its current attack untouched.
func (f *Fighter) startAttack(now time.Duration) bool {
	if f.IsAttacking {
		return false
	}
	f.IsAttacking = true
	f.AttackStartTime = now
	f.HitApplied = false
	return true
}

func (f *Fighter) takeDamage(damage int) {
	f.Health = max(0, f.Health-damage)
}

func (f *Fighter) KnockedOut() bool {
	return f.Health == 0
}
