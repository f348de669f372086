package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braintease/quizlink/internal/domain"
)

func TestNewRanking(t *testing.T) {
	tests := map[string]struct {
		session   *domain.Session
		wantOrder []string
	}{
		"orders by score descending": {
			session: finished(
				[]string{"a", "b", "c"},
				map[string]domain.PlayerScore{
					"a": {Score: 3},
					"b": {Score: 9},
					"c": {Score: 5},
				},
			),
			wantOrder: []string{"b", "c", "a"},
		},
		"equal scores break on lower time taken": {
			session: finished(
				[]string{"a", "b"},
				map[string]domain.PlayerScore{
					"a": {Score: 5, TimeTakenSeconds: 90},
					"b": {Score: 5, TimeTakenSeconds: 60},
				},
			),
			wantOrder: []string{"b", "a"},
		},
		"equal scores and times break on higher correct count": {
			session: finished(
				[]string{"a", "b"},
				map[string]domain.PlayerScore{
					"a": {Score: 5, TimeTakenSeconds: 60, CorrectCount: 4},
					"b": {Score: 5, TimeTakenSeconds: 60, CorrectCount: 5},
				},
			),
			wantOrder: []string{"b", "a"},
		},
		"full ties fall back to join order": {
			session: finished(
				[]string{"a", "b", "c"},
				map[string]domain.PlayerScore{
					"a": {Score: 5, TimeTakenSeconds: 60, CorrectCount: 5},
					"b": {Score: 5, TimeTakenSeconds: 60, CorrectCount: 5},
					"c": {Score: 5, TimeTakenSeconds: 60, CorrectCount: 5},
				},
			),
			wantOrder: []string{"a", "b", "c"},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := domain.NewRanking(tt.session, "")
			require.Len(t, r.Entries, len(tt.wantOrder))

			var got []string
			for _, e := range r.Entries {
				got = append(got, e.UserID)
			}
			assert.Equal(t, tt.wantOrder, got)
		})
	}
}

func TestNewRanking_Annotations(t *testing.T) {
	s := finished(
		[]string{"a", "b"},
		map[string]domain.PlayerScore{
			"a": {Score: 4, CorrectCount: 4, TotalQuestions: 5},
			"b": {Score: 2, CorrectCount: 2, TotalQuestions: 5},
		},
	)
	s.Winners = []string{"a"}

	r := domain.NewRanking(s, "b")
	require.Len(t, r.Entries, 2)

	assert.True(t, r.Entries[0].Winner)
	assert.False(t, r.Entries[0].Self)
	assert.False(t, r.Entries[1].Winner)
	assert.True(t, r.Entries[1].Self)

	assert.True(t, r.Entries[0].Accuracy.Equal(decimal.RequireFromString("0.8")))
	assert.True(t, r.Entries[1].Accuracy.Equal(decimal.RequireFromString("0.4")))
}

func TestNewRanking_ZeroQuestionsAccuracy(t *testing.T) {
	s := finished(
		[]string{"a"},
		map[string]domain.PlayerScore{"a": {Score: 0}},
	)

	r := domain.NewRanking(s, "a")
	require.Len(t, r.Entries, 1)
	assert.True(t, r.Entries[0].Accuracy.IsZero())
}

func TestStatus_After(t *testing.T) {
	assert.True(t, domain.StatusActive.After(domain.StatusWaiting))
	assert.True(t, domain.StatusFinished.After(domain.StatusActive))
	assert.False(t, domain.StatusWaiting.After(domain.StatusWaiting))
	assert.False(t, domain.StatusWaiting.After(domain.StatusFinished))
}

func TestSession_Helpers(t *testing.T) {
	s := &domain.Session{
		NumberOfPlayers: 4,
		CurrentPlayers:  3,
		Players:         []string{"host", "g1", "g2"},
		Winners:         []string{"g1"},
		PlayerScores:    map[string]domain.PlayerScore{"host": {Score: 1}},
	}

	assert.Equal(t, "host", s.Host())
	assert.True(t, s.HasPlayer("g2"))
	assert.False(t, s.HasPlayer("stranger"))
	assert.True(t, s.HasScore("host"))
	assert.False(t, s.HasScore("g1"))
	assert.True(t, s.IsWinner("g1"))
	assert.Equal(t, 1, s.PlayersNeeded())
}

func finished(players []string, scores map[string]domain.PlayerScore) *domain.Session {
	return &domain.Session{
		SessionID:       "s1",
		Status:          domain.StatusFinished,
		NumberOfPlayers: len(players),
		CurrentPlayers:  len(players),
		Players:         players,
		PlayerScores:    scores,
	}
}
