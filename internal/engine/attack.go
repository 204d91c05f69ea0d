package engine

import "time"

// Progress is the fraction of an attack elapsed, clamped to [0, 1].
func Progress(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1.0
	}
	if elapsed < 0 {
		return 0
	}
	return min(float64(elapsed)/float64(duration), 1.0)
}

// RollDamage draws uniformly from [lo, hi].
func RollDamage(rng Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

func (r Rules) inHitWindow(progress float64) bool {
	return progress > r.HitWindowStart && progress < r.HitWindowEnd
}

// ResolveAttack samples the attacker's current attack at now. Damage lands
// once, on the first sample strictly inside the hit window; the attack ends
// once progress reaches 1 whether or not it ever hit. A fighter that is
// already knocked out cannot land its hit.
func ResolveAttack(attacker, defender *Fighter, now time.Duration, rules Rules, rng Rand) []Event {
	if !attacker.IsAttacking {
		return nil
	}

	progress := Progress(now-attacker.AttackStartTime, rules.AttackDuration)
	var events []Event

	if !attacker.HitApplied && rules.inHitWindow(progress) && !attacker.KnockedOut() {
		damage := RollDamage(rng, rules.DamageMin, rules.DamageMax)
		defender.takeDamage(damage)
		attacker.HitApplied = true
		events = append(events, Event{
			Type:   EvtHitLanded,
			Side:   attacker.Side,
			Damage: damage,
			Health: defender.Health,
			At:     now,
		})
	}

	if progress >= 1.0 {
		attacker.IsAttacking = false
		events = append(events, Event{Type: EvtAttackFinished, Side: attacker.Side, At: now})
	}
	return events
}
