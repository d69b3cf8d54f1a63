package core

import (
	"fmt"
	"math/rand"
)

// Challenge is a generated arithmetic problem. A correct answer lets the
// user extend an expired session without a parent present.
type Challenge struct {
	A      int
	B      int
	Op     string
	answer int
}

// Difficulty bounds; values outside the range are clamped.
const (
	MinChallengeDifficulty = 1
	MaxChallengeDifficulty = 3
)

// NewChallenge generates an arithmetic problem for the given difficulty.
// The caller owns the random source so tests can use a fixed seed.
//
// Difficulty 1: single-digit addition.
// Difficulty 2: addition or subtraction up to 50 (no negative results).
// Difficulty 3: multiplication up to 12x12.
func NewChallenge(difficulty int, rng *rand.Rand) Challenge {
	if difficulty < MinChallengeDifficulty {
		difficulty = MinChallengeDifficulty
	}
	if difficulty > MaxChallengeDifficulty {
		difficulty = MaxChallengeDifficulty
	}

	switch difficulty {
	case 1:
		a, b := rng.Intn(9)+1, rng.Intn(9)+1
		return Challenge{A: a, B: b, Op: "+", answer: a + b}
	case 2:
		a, b := rng.Intn(50)+1, rng.Intn(50)+1
		if rng.Intn(2) == 0 {
			return Challenge{A: a, B: b, Op: "+", answer: a + b}
		}
		if b > a {
			a, b = b, a
		}
		return Challenge{A: a, B: b, Op: "-", answer: a - b}
	default:
		a, b := rng.Intn(12)+1, rng.Intn(12)+1
		return Challenge{A: a, B: b, Op: "*", answer: a * b}
	}
}

// Question returns the problem as display text, e.g. "7 + 4 = ?".
func (c Challenge) Question() string {
	return fmt.Sprintf("%d %s %d = ?", c.A, c.Op, c.B)
}

// Check reports whether the submitted answer is correct.
func (c Challenge) Check(answer int) bool {
	return answer == c.answer
}

// Answer returns the correct answer (for logging and tests).
func (c Challenge) Answer() int {
	return c.answer
}
