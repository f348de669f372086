package domain

import "time"

// Status of a multiplayer session. Transitions are strictly forward:
// waiting -> active -> finished.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// After reports whether s is a later lifecycle stage than other.
func (s Status) After(other Status) bool {
	return rank(s) > rank(other)
}

func rank(s Status) int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

const (
	MinPlayers = 2
	MaxPlayers = 10

	MinQuestions = 5
	MaxQuestions = 50

	JoinCodeLen = 6
)

// Session is one multiplayer match's shared coordination record. The backend
// session store is the sole owner; clients hold snapshots fetched by polling
// and must tolerate staleness.
type Session struct {
	SessionID       string                 `json:"session_id"`
	JoinCode        string                 `json:"join_code"`
	Status          Status                 `json:"status"`
	NumberOfPlayers int                    `json:"number_of_players"`
	CurrentPlayers  int                    `json:"current_players"`
	Players         []string               `json:"players"`
	Difficulty      Difficulty             `json:"difficulty"`
	TotalQuestions  int                    `json:"total_questions"`
	BoardSeed       int64                  `json:"board_seed"`
	PlayerScores    map[string]PlayerScore `json:"player_scores,omitempty"`
	Winners         []string               `json:"winners,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// PlayerScore is one player's submitted result, write-once per session.
type PlayerScore struct {
	Score            int       `json:"score"`
	CorrectCount     int       `json:"correct_count"`
	TotalQuestions   int       `json:"total_questions"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	DisplayName      string    `json:"display_name,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Host is the first entrant, by join order.
func (s *Session) Host() string {
	if len(s.Players) == 0 {
		return ""
	}
	return s.Players[0]
}

func (s *Session) HasPlayer(userID string) bool {
	for _, p := range s.Players {
		if p == userID {
			return true
		}
	}
	return false
}

func (s *Session) HasScore(userID string) bool {
	_, ok := s.PlayerScores[userID]
	return ok
}

func (s *Session) IsWinner(userID string) bool {
	for _, w := range s.Winners {
		if w == userID {
			return true
		}
	}
	return false
}

// PlayersNeeded is how many more joins are required before the session
// becomes active.
func (s *Session) PlayersNeeded() int {
	n := s.NumberOfPlayers - s.CurrentPlayers
	if n < 0 {
		return 0
	}
	return n
}

type Question struct {
	QuestionID   string
	QuestionText string
	Options      []Option
	CorrectIndex int
}

type Option struct {
	OptionID   string
	OptionText string
}
