// File: internal/healer/score.go
// Description: The session scoring function. Pure and deterministic: the
// same inputs always grade to the same score.
package healer

import (
	"math"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

// Fixed scoring weights. Not tunable per session.
const (
	fixTermWeight     = 60
	testsPassedBonus  = 20
	fastAttemptsBonus = 10
	okAttemptsBonus   = 5
	speedBonusPoints  = 10
	speedBonusWindow  = 300.0 // seconds
	commitBudget      = 20
)

// ScoreInput carries the facts the scoring function grades.
type ScoreInput struct {
	TotalBugs      int
	BugsFixed      int
	TestsPassed    bool
	AttemptsUsed   int
	TotalCommits   int
	ElapsedSeconds float64
}

// ComputeScore grades a finished session on a 0-100 scale. The fix term is
// worth 60 points, scaled by the fixed fraction; a session with no detected
// bugs and a green suite earns the full fix term, since there was nothing
// left to fix. Passing tests add 20, finishing within two attempts adds 10
// (5 within three). A run under five minutes earns a speed bonus; each
// commit beyond twenty costs a point.
func ComputeScore(in ScoreInput) schemas.Score {
	s := schemas.Score{
		TotalBugs:      in.TotalBugs,
		BugsFixed:      in.BugsFixed,
		TestsPassed:    in.TestsPassed,
		AttemptsUsed:   in.AttemptsUsed,
		TotalCommits:   in.TotalCommits,
		ElapsedSeconds: in.ElapsedSeconds,
	}

	base := 0
	switch {
	case in.TotalBugs > 0:
		base = int(math.Round(float64(in.BugsFixed) / float64(in.TotalBugs) * fixTermWeight))
	case in.TestsPassed:
		base = fixTermWeight
	}

	if in.TestsPassed {
		base += testsPassedBonus
	}
	switch {
	case in.AttemptsUsed <= 2:
		base += fastAttemptsBonus
	case in.AttemptsUsed <= 3:
		base += okAttemptsBonus
	}

	if in.ElapsedSeconds < speedBonusWindow {
		s.SpeedBonus = speedBonusPoints
	}
	if in.TotalCommits > commitBudget {
		s.CommitPenalty = in.TotalCommits - commitBudget
	}

	s.Final = clamp(base+s.SpeedBonus-s.CommitPenalty, 0, 100)
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
