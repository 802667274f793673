// File: internal/healer/score_test.go
package healer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeScoreCleanRepo(t *testing.T) {
	// Tests green on the first run, nothing to fix.
	score := ComputeScore(ScoreInput{
		TotalBugs:      0,
		BugsFixed:      0,
		TestsPassed:    true,
		AttemptsUsed:   1,
		TotalCommits:   1,
		ElapsedSeconds: 42,
	})

	assert.Equal(t, 10, score.SpeedBonus)
	assert.Equal(t, 0, score.CommitPenalty)
	assert.GreaterOrEqual(t, score.Final, 80)
	assert.Equal(t, 100, score.Final)
}

func TestComputeScorePartialFix(t *testing.T) {
	// 2 of 3 fixed, tests still red after 3 attempts.
	score := ComputeScore(ScoreInput{
		TotalBugs:      3,
		BugsFixed:      2,
		TestsPassed:    false,
		AttemptsUsed:   3,
		TotalCommits:   3,
		ElapsedSeconds: 200,
	})

	// round(2/3*60)=40, +5 attempts<=3, +10 speed.
	assert.Equal(t, 55, score.Final)
	assert.Equal(t, 2, score.BugsFixed)
	assert.Equal(t, 3, score.TotalBugs)
}

func TestComputeScoreFullFix(t *testing.T) {
	score := ComputeScore(ScoreInput{
		TotalBugs:      4,
		BugsFixed:      4,
		TestsPassed:    true,
		AttemptsUsed:   2,
		TotalCommits:   2,
		ElapsedSeconds: 120,
	})
	// 60 + 20 + 10 + 10 speed = 100.
	assert.Equal(t, 100, score.Final)
}

func TestComputeScoreZeroBugsRedTests(t *testing.T) {
	// Nothing identified and nothing passing earns nothing.
	score := ComputeScore(ScoreInput{
		TotalBugs:      0,
		BugsFixed:      0,
		TestsPassed:    false,
		AttemptsUsed:   5,
		TotalCommits:   0,
		ElapsedSeconds: 400,
	})
	assert.Equal(t, 0, score.Final)
}

func TestComputeScoreMonotonicInBugsFixed(t *testing.T) {
	base := ScoreInput{
		TotalBugs:      10,
		TestsPassed:    false,
		AttemptsUsed:   4,
		TotalCommits:   4,
		ElapsedSeconds: 500,
	}

	prev := -1
	for fixed := 0; fixed <= 10; fixed++ {
		in := base
		in.BugsFixed = fixed
		final := ComputeScore(in).Final
		assert.GreaterOrEqual(t, final, prev, "score must not decrease as bugsFixed grows (fixed=%d)", fixed)
		prev = final
	}
}

func TestComputeScoreClamping(t *testing.T) {
	t.Run("pathological commit count clamps at zero", func(t *testing.T) {
		score := ComputeScore(ScoreInput{
			TotalBugs:      0,
			BugsFixed:      0,
			TestsPassed:    false,
			AttemptsUsed:   5,
			TotalCommits:   1000,
			ElapsedSeconds: 10,
		})
		assert.Equal(t, 0, score.Final)
		assert.Equal(t, 980, score.CommitPenalty)
	})

	t.Run("never exceeds 100", func(t *testing.T) {
		score := ComputeScore(ScoreInput{
			TotalBugs:      1,
			BugsFixed:      1,
			TestsPassed:    true,
			AttemptsUsed:   1,
			TotalCommits:   0,
			ElapsedSeconds: 1,
		})
		assert.LessOrEqual(t, score.Final, 100)
		assert.GreaterOrEqual(t, score.Final, 0)
	})
}

func TestComputeScoreCommitPenaltyOnlyAboveBudget(t *testing.T) {
	at := func(commits int) int {
		return ComputeScore(ScoreInput{
			TotalBugs: 2, BugsFixed: 2, TestsPassed: true,
			AttemptsUsed: 2, TotalCommits: commits, ElapsedSeconds: 400,
		}).CommitPenalty
	}
	assert.Equal(t, 0, at(20))
	assert.Equal(t, 1, at(21))
	assert.Equal(t, 0, at(0))
}
