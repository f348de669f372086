// Package store is an authoritative in-memory session store implementing the
// backend's coordination semantics: capacity-gated activation, write-once
// score entries, and winner computation on finish. It backs the development
// server and the package tests; production clients talk to the real backend.
package store

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/errors"
)

type Config struct {
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Store struct {
	now func() time.Time

	mu     sync.Mutex
	byID   map[string]*domain.Session
	byCode map[string]string // join code -> session id, open sessions only
}

func New(c Config) *Store {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		now:    now,
		byID:   make(map[string]*domain.Session),
		byCode: make(map[string]string),
	}
}

type CreateParams struct {
	UserID          string
	DisplayName     string
	NumberOfPlayers int
	Difficulty      domain.Difficulty
	TotalQuestions  int
}

// Create allocates a new session in waiting status with the creator as sole
// member and a join code unique among open sessions.
func (s *Store) Create(p CreateParams) (*domain.Session, error) {
	if p.UserID == "" {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing user"))
	}
	if err := domain.ValidateSettings(p.NumberOfPlayers, p.Difficulty, p.TotalQuestions); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.allocateCodeLocked()
	if err != nil {
		return nil, err
	}

	ss := &domain.Session{
		SessionID:       id.String(),
		JoinCode:        code,
		Status:          domain.StatusWaiting,
		NumberOfPlayers: p.NumberOfPlayers,
		CurrentPlayers:  1,
		Players:         []string{p.UserID},
		Difficulty:      p.Difficulty,
		TotalQuestions:  p.TotalQuestions,
		BoardSeed:       randomSeed(),
		PlayerScores:    make(map[string]domain.PlayerScore),
		CreatedAt:       s.now(),
	}

	s.byID[ss.SessionID] = ss
	s.byCode[code] = ss.SessionID

	return snapshot(ss), nil
}

// Join appends the user to the session the code resolves to. Rejoining by an
// existing member returns the current snapshot unchanged. Filling the last
// slot flips the session to active as part of this call.
func (s *Store) Join(joinCode, userID, displayName string) (*domain.Session, error) {
	if userID == "" {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing user"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ss, err := s.openSessionLocked(joinCode)
	if err != nil {
		return nil, err
	}

	if ss.HasPlayer(userID) {
		return snapshot(ss), nil
	}

	if ss.CurrentPlayers >= ss.NumberOfPlayers {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session is full: %d/%d players", ss.CurrentPlayers, ss.NumberOfPlayers))
	}

	ss.Players = append(ss.Players, userID)
	ss.CurrentPlayers = len(ss.Players)
	if ss.CurrentPlayers == ss.NumberOfPlayers {
		ss.Status = domain.StatusActive
	}

	return snapshot(ss), nil
}

// GetByCode resolves a snapshot by join code. Codes resolve only while the
// session is open.
func (s *Store) GetByCode(joinCode string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, err := s.openSessionLocked(joinCode)
	if err != nil {
		return nil, err
	}

	return snapshot(ss), nil
}

func (s *Store) GetByID(sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.byID[sessionID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: id=%s", sessionID))
	}

	return snapshot(ss), nil
}

type SubmitParams struct {
	SessionID        string
	UserID           string
	DisplayName      string
	Score            int
	CorrectCount     int
	TimeTakenSeconds int
}

// Submit records a player's result, write-once. The last outstanding
// submission computes winners and flips the session to finished atomically.
func (s *Store) Submit(p SubmitParams) (*domain.Session, error) {
	if p.UserID == "" {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing user"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.byID[p.SessionID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: id=%s", p.SessionID))
	}

	if !ss.HasPlayer(p.UserID) {
		return nil, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("user is not a member of session %s", p.SessionID))
	}

	if ss.Status == domain.StatusWaiting {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session has not started: %d/%d players", ss.CurrentPlayers, ss.NumberOfPlayers))
	}

	if ss.HasScore(p.UserID) {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("score already submitted: session=%s user=%s", p.SessionID, p.UserID))
	}

	ss.PlayerScores[p.UserID] = domain.PlayerScore{
		Score:            p.Score,
		CorrectCount:     p.CorrectCount,
		TotalQuestions:   ss.TotalQuestions,
		TimeTakenSeconds: p.TimeTakenSeconds,
		DisplayName:      p.DisplayName,
		SubmittedAt:      s.now(),
	}

	if len(ss.PlayerScores) == ss.NumberOfPlayers {
		ss.Winners = winners(ss)
		ss.Status = domain.StatusFinished
		delete(s.byCode, ss.JoinCode)
	}

	return snapshot(ss), nil
}

func (s *Store) openSessionLocked(joinCode string) (*domain.Session, error) {
	id, ok := s.byCode[joinCode]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("no open session for code %s", joinCode))
	}

	return s.byID[id], nil
}

// winners returns the players tied for the maximum score, in join order.
func winners(ss *domain.Session) []string {
	max := -1
	for _, sc := range ss.PlayerScores {
		if sc.Score > max {
			max = sc.Score
		}
	}

	var ws []string
	for _, p := range ss.Players {
		if sc, ok := ss.PlayerScores[p]; ok && sc.Score == max {
			ws = append(ws, p)
		}
	}

	return ws
}

func snapshot(ss *domain.Session) *domain.Session {
	cp := *ss
	cp.Players = append([]string(nil), ss.Players...)
	cp.Winners = append([]string(nil), ss.Winners...)
	cp.PlayerScores = make(map[string]domain.PlayerScore, len(ss.PlayerScores))
	for k, v := range ss.PlayerScores {
		cp.PlayerScores[k] = v
	}

	return &cp
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (s *Store) allocateCodeLocked() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.byCode[code]; !taken {
			return code, nil
		}
	}

	return "", errors.New(errors.CodeInternal, errors.WithMessagef("join code space exhausted"))
}

func randomCode() (string, error) {
	b := make([]byte, domain.JoinCodeLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate join code: %w", err)
	}

	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}

	return string(b), nil
}

func randomSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}

	seed := int64(binary.BigEndian.Uint64(b[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
