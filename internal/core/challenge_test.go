package core

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewChallengeAnswersAreConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for difficulty := MinChallengeDifficulty; difficulty <= MaxChallengeDifficulty; difficulty++ {
		for i := 0; i < 100; i++ {
			c := NewChallenge(difficulty, rng)

			var want int
			switch c.Op {
			case "+":
				want = c.A + c.B
			case "-":
				want = c.A - c.B
			case "*":
				want = c.A * c.B
			default:
				t.Fatalf("unexpected operator %q", c.Op)
			}

			assert.Equal(t, want, c.Answer())
			assert.True(t, c.Check(want))
			assert.False(t, c.Check(want+1))
		}
	}
}

func TestNewChallengeDifficultyShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		c := NewChallenge(1, rng)
		assert.Equal(t, "+", c.Op)
		assert.LessOrEqual(t, c.A, 9)
		assert.LessOrEqual(t, c.B, 9)
	}

	for i := 0; i < 100; i++ {
		c := NewChallenge(2, rng)
		assert.Contains(t, []string{"+", "-"}, c.Op)
		assert.GreaterOrEqual(t, c.Answer(), 0, "subtraction must not go negative")
	}

	for i := 0; i < 100; i++ {
		c := NewChallenge(3, rng)
		assert.Equal(t, "*", c.Op)
		assert.LessOrEqual(t, c.A, 12)
		assert.LessOrEqual(t, c.B, 12)
	}
}

func TestNewChallengeClampsDifficulty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	low := NewChallenge(-3, rng)
	assert.Equal(t, "+", low.Op)

	high := NewChallenge(99, rng)
	assert.Equal(t, "*", high.Op)
}

func TestChallengeQuestion(t *testing.T) {
	c := Challenge{A: 7, B: 4, Op: "+", answer: 11}
	assert.Equal(t, fmt.Sprintf("%d + %d = ?", 7, 4), c.Question())
}
