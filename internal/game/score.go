package game

import (
	"math"

	"github.com/sippey/fog-city-dispatch-sub000/internal/story"
)

// FinalScore is the end-of-shift tally
type FinalScore struct {
	BaseScore     int      `json:"base_score"`
	Bonus         int      `json:"bonus"`
	Total         int      `json:"total"`
	CompletedArcs []string `json:"completed_arcs"`
}

// Finalize applies the multiplier bonus of every completed arc to the base score.
// Each arc contributes round(base * (multiplier - 1)), so bonuses add rather than compound.
func Finalize(base int, progress story.Progress) FinalScore {
	result := FinalScore{
		BaseScore:     base,
		CompletedArcs: []string{},
	}

	for _, name := range progress.Names() {
		arc := progress[name]
		if !arc.IsCompleted {
			continue
		}
		result.CompletedArcs = append(result.CompletedArcs, name)
		result.Bonus += int(math.Round(float64(base) * (arc.Multiplier - 1)))
	}

	result.Total = base + result.Bonus
	return result
}
