// Package scoring converts completion events into point deltas. All
// functions are pure; the policy struct only carries configuration.
package scoring

// Policy holds the scoring knobs for a workshop.
type Policy struct {
	FlagBonus        int // flat award for capturing a flag
	QuestBonus       int // flat award for completing a quest
	SolutionPenalty  int // subtracted when the full solution was revealed
	FirstHintPenalty int // cost of revealing hint 0
	ExtraHintPenalty int // cost of each hint after the first
	RetryPenalty     int // cost per failed attempt before the successful one
}

// DefaultPolicy returns the standard workshop scoring configuration.
func DefaultPolicy() Policy {
	return Policy{
		FlagBonus:        25,
		QuestBonus:       50,
		SolutionPenalty:  5,
		FirstHintPenalty: 1,
		ExtraHintPenalty: 2,
		RetryPenalty:     2,
	}
}

// Award computes the points earned for a step completion. Attempts is the
// total attempt count including the successful one (so attempts == 1 means
// first try). Hint and retry penalties are subtractive against a shared
// floor of basePoints/2: when penalties stack, the floor binds rather than
// the sum. Revealing the solution applies a flat penalty against the same
// floor and absorbs any hint penalties already incurred. Results never go
// below zero.
func (p Policy) Award(basePoints, attempts, hintsRevealed int, solutionRevealed bool) int {
	if basePoints <= 0 {
		return 0
	}
	floor := basePoints / 2

	if solutionRevealed {
		return clamp(basePoints-p.SolutionPenalty, floor)
	}

	earned := basePoints - p.hintPenalty(hintsRevealed)
	if attempts > 1 {
		earned -= (attempts - 1) * p.RetryPenalty
	}
	return clamp(earned, floor)
}

// FlagAward returns the flat bonus for a flag capture. A flag may carry its
// own point value; zero means use the policy default. Bonuses are not
// subject to attempt or hint decay.
func (p Policy) FlagAward(flagPoints int) int {
	if flagPoints > 0 {
		return flagPoints
	}
	return p.FlagBonus
}

// QuestAward returns the flat bonus for completing a quest.
func (p Policy) QuestAward() int {
	return p.QuestBonus
}

func (p Policy) hintPenalty(hintsRevealed int) int {
	if hintsRevealed <= 0 {
		return 0
	}
	return p.FirstHintPenalty + (hintsRevealed-1)*p.ExtraHintPenalty
}

func clamp(earned, floor int) int {
	if earned < floor {
		earned = floor
	}
	if earned < 0 {
		return 0
	}
	return earned
}
