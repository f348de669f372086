package domain

import "github.com/braintease/quizlink/internal/errors"

// ValidateSettings checks match configuration against the supported ranges.
// Both the client (before any network call) and the store enforce it.
func ValidateSettings(numberOfPlayers int, difficulty Difficulty, totalQuestions int) error {
	if numberOfPlayers < MinPlayers || numberOfPlayers > MaxPlayers {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("number of players must be between %d and %d, got %d",
				MinPlayers, MaxPlayers, numberOfPlayers))
	}
	if totalQuestions < MinQuestions || totalQuestions > MaxQuestions {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("total questions must be between %d and %d, got %d",
				MinQuestions, MaxQuestions, totalQuestions))
	}
	if !difficulty.Valid() {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown difficulty %q", difficulty))
	}
	return nil
}
