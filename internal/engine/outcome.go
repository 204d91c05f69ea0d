package engine

type Outcome struct {
	Winner    Side `json:"winner"`
	PlayerWon bool `json:"player_won"`
	Reward    int  `json:"reward"`
}

// ResolveOutcome pays a random prize when the backed side won and nothing
// otherwise. The only side effect is the draw from rng.
func ResolveOutcome(winner, playerChoice Side, prizes []int, rng Rand) Outcome {
	out := Outcome{Winner: winner, PlayerWon: playerChoice == winner}
	if out.PlayerWon && len(prizes) > 0 {
		out.Reward = prizes[rng.IntN(len(prizes))]
	}
	return out
}
