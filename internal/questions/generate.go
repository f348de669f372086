package questions

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/braintease/quizlink/internal/domain"
)

// Generate produces a deterministic question set from a board seed. The same
// seed, difficulty and count always yield the same sequence, which is what
// makes scores comparable across players of one match. Used by the
// development store server and as an offline provider in tests.
func Generate(seed int64, difficulty domain.Difficulty, n int) []domain.Question {
	rng := rand.New(rand.NewSource(seed))

	lo, hi := operandRange(difficulty)
	qs := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		a := lo + rng.Intn(hi-lo)
		b := lo + rng.Intn(hi-lo)
		answer := a + b

		// Three distractors offset from the answer, then a seeded shuffle.
		opts := []int{answer, answer + 1 + rng.Intn(3), answer - 1 - rng.Intn(3), answer + 4 + rng.Intn(5)}
		rng.Shuffle(len(opts), func(x, y int) { opts[x], opts[y] = opts[y], opts[x] })

		q := domain.Question{
			QuestionID:   fmt.Sprintf("q%d", i+1),
			QuestionText: fmt.Sprintf("What is %d + %d?", a, b),
			CorrectIndex: -1,
		}
		for j, o := range opts {
			q.Options = append(q.Options, domain.Option{
				OptionID:   fmt.Sprintf("q%d-%d", i+1, j),
				OptionText: fmt.Sprintf("%d", o),
			})
			if o == answer && q.CorrectIndex < 0 {
				q.CorrectIndex = j
			}
		}

		qs = append(qs, q)
	}

	return qs
}

// GeneratorProvider serves generated questions locally, without a backend.
type GeneratorProvider struct{}

func (GeneratorProvider) Load(_ context.Context, req LoadRequest) ([]domain.Question, error) {
	return Generate(req.BoardSeed, req.Difficulty, req.TotalQuestions), nil
}

func operandRange(d domain.Difficulty) (lo, hi int) {
	switch d {
	case domain.DifficultyMedium:
		return 10, 100
	case domain.DifficultyHard:
		return 100, 1000
	default:
		return 1, 10
	}
}
