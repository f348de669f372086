package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Ranking is the shared final ordering of a finished session. Entries are
// sorted by score descending; ties are broken by lower time taken, then
// higher correct count, then join order.
type Ranking struct {
	SessionID string
	Entries   []RankingEntry
}

type RankingEntry struct {
	UserID           string
	DisplayName      string
	Score            int
	CorrectCount     int
	TotalQuestions   int
	TimeTakenSeconds int
	Accuracy         decimal.Decimal
	Winner           bool
	Self             bool
}

// NewRanking builds the ranking for a finished session, marking the calling
// user's own row and the members of Winners.
func NewRanking(s *Session, selfID string) *Ranking {
	joinOrder := make(map[string]int, len(s.Players))
	for i, p := range s.Players {
		joinOrder[p] = i
	}

	entries := make([]RankingEntry, 0, len(s.PlayerScores))
	for userID, ps := range s.PlayerScores {
		entries = append(entries, RankingEntry{
			UserID:           userID,
			DisplayName:      ps.DisplayName,
			Score:            ps.Score,
			CorrectCount:     ps.CorrectCount,
			TotalQuestions:   ps.TotalQuestions,
			TimeTakenSeconds: ps.TimeTakenSeconds,
			Accuracy:         accuracy(ps),
			Winner:           s.IsWinner(userID),
			Self:             userID == selfID,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TimeTakenSeconds != b.TimeTakenSeconds {
			return a.TimeTakenSeconds < b.TimeTakenSeconds
		}
		if a.CorrectCount != b.CorrectCount {
			return a.CorrectCount > b.CorrectCount
		}
		return joinOrder[a.UserID] < joinOrder[b.UserID]
	})

	return &Ranking{
		SessionID: s.SessionID,
		Entries:   entries,
	}
}

func accuracy(ps PlayerScore) decimal.Decimal {
	if ps.TotalQuestions == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(ps.CorrectCount)).
		Div(decimal.NewFromInt(int64(ps.TotalQuestions))).
		Round(4)
}
