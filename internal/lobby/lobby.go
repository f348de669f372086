// Package lobby drives session creation and joining. A successful create or
// join produces a Handoff for the waiting room.
package lobby

import (
	"context"
	"log/slog"
	"sync"

	"github.com/braintease/quizlink/internal/cache"
	"github.com/braintease/quizlink/internal/client"
	"github.com/braintease/quizlink/internal/domain"
)

type State string

const (
	StateMenu     State = "menu"
	StateCreating State = "creating"
	StateCreated  State = "created"
	StateJoining  State = "joining"
	StateJoined   State = "joined"
)

// SessionAPI is the slice of the session client the lobby needs.
type SessionAPI interface {
	CreateSession(ctx context.Context, req client.CreateSessionRequest) (*domain.Session, error)
	JoinSession(ctx context.Context, req client.JoinSessionRequest) (*domain.Session, error)
}

type Config struct {
	Client SessionAPI
	Cache  cache.Store
}

type Controller struct {
	api   SessionAPI
	cache cache.Store

	mu    sync.Mutex
	state State
}

func NewController(c Config) *Controller {
	return &Controller{
		api:   c.Client,
		cache: c.Cache,
		state: StateMenu,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Handoff is the session reference passed to the waiting room. The waiting
// controller must also tolerate being invoked without one.
type Handoff struct {
	Session  *domain.Session
	JoinCode string
}

type CreateRequest struct {
	NumberOfPlayers int
	Difficulty      domain.Difficulty
	TotalQuestions  int
}

// Create validates the form inputs locally, creates the session, and caches
// the snapshot for reload recovery. The returned join code is what the host
// shares out of band.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (*Handoff, error) {
	if err := domain.ValidateSettings(req.NumberOfPlayers, req.Difficulty, req.TotalQuestions); err != nil {
		return nil, err
	}

	c.setState(StateCreating)

	ss, err := c.api.CreateSession(ctx, client.CreateSessionRequest{
		NumberOfPlayers: req.NumberOfPlayers,
		Difficulty:      req.Difficulty,
		TotalQuestions:  req.TotalQuestions,
	})
	if err != nil {
		c.setState(StateMenu)
		return nil, err
	}

	c.remember(ctx, ss, cache.KeyCreatedSession, cache.KeyCreatedCode)
	c.remember(ctx, ss, cache.KeyCurrentSession, cache.KeyCurrentCode)
	c.setState(StateCreated)

	return &Handoff{Session: ss, JoinCode: ss.JoinCode}, nil
}

// Join normalizes the code and joins the session. On a not-found or
// session-full error the controller stays in the joining state so the user
// can retry with another code.
func (c *Controller) Join(ctx context.Context, joinCode string) (*Handoff, error) {
	code, err := client.NormalizeJoinCode(joinCode)
	if err != nil {
		return nil, err
	}

	c.setState(StateJoining)

	ss, err := c.api.JoinSession(ctx, client.JoinSessionRequest{JoinCode: code})
	if err != nil {
		return nil, err
	}

	c.remember(ctx, ss, cache.KeyCurrentSession, cache.KeyCurrentCode)
	c.setState(StateJoined)

	return &Handoff{Session: ss, JoinCode: ss.JoinCode}, nil
}

// remember caches a snapshot. Cache failures are logged, not surfaced; the
// cache is an optimization for reload recovery only.
func (c *Controller) remember(ctx context.Context, ss *domain.Session, sessionKey, codeKey string) {
	if c.cache == nil {
		return
	}

	if err := c.cache.PutSession(ctx, sessionKey, ss); err != nil {
		slog.WarnContext(ctx, "lobby: cache session failed", "key", sessionKey, "error", err)
	}
	if err := c.cache.PutCode(ctx, codeKey, ss.JoinCode); err != nil {
		slog.WarnContext(ctx, "lobby: cache join code failed", "key", codeKey, "error", err)
	}
}
