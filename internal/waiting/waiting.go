// Package waiting holds a player in the waiting room until enough players
// have joined, polling the session store until the match turns active.
package waiting

import (
	"context"
	"log/slog"
	"time"

	"github.com/braintease/quizlink/internal/cache"
	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/errors"
	"github.com/braintease/quizlink/internal/poll"
)

// ErrUnresolvableSession is terminal: the user must navigate back to the
// lobby, there is no session to observe.
var ErrUnresolvableSession = errors.New(errors.CodeFailedPrecondition,
	errors.WithMessagef("waiting: cannot resolve a session from handoff, cache, id, or join code"))

// SessionReader is the read-only slice of the session client the waiting
// room needs.
type SessionReader interface {
	FetchByID(ctx context.Context, sessionID string) (*domain.Session, error)
	FetchByCode(ctx context.Context, joinCode string) (*domain.Session, error)
}

type Config struct {
	Client   SessionReader
	Cache    cache.Store
	Interval time.Duration
	// NewTickerFunc overrides the clock, for tests.
	NewTickerFunc func(d time.Duration) poll.Ticker
	// OnUpdate is invoked with every fresh snapshot while waiting, so the
	// surrounding view can show join progress.
	OnUpdate func(s *domain.Session)
}

type Controller struct {
	c Config
}

func NewController(c Config) *Controller {
	return &Controller{c: c}
}

// Ref identifies the session to wait on. Fields are tried in priority order:
// the handoff snapshot, the local cache, fetch by id, fetch by code.
type Ref struct {
	Session   *domain.Session
	SessionID string
	JoinCode  string
}

// Resolve finds the session to observe, or fails with
// ErrUnresolvableSession when every source comes up empty.
func (w *Controller) Resolve(ctx context.Context, ref Ref) (*domain.Session, error) {
	if ref.Session != nil {
		return ref.Session, nil
	}

	if ss := w.fromCache(ctx); ss != nil {
		return ss, nil
	}

	if ref.SessionID != "" {
		ss, err := w.c.Client.FetchByID(ctx, ref.SessionID)
		if err == nil {
			return ss, nil
		}
		slog.WarnContext(ctx, "waiting: resolve by id failed", "session_id", ref.SessionID, "error", err)
	}

	for _, code := range w.candidateCodes(ctx, ref) {
		ss, err := w.c.Client.FetchByCode(ctx, code)
		if err == nil {
			return ss, nil
		}
		slog.WarnContext(ctx, "waiting: resolve by code failed", "join_code", code, "error", err)
	}

	return nil, ErrUnresolvableSession
}

// Wait resolves the session and polls until a snapshot shows the match has
// left the waiting state. The returned snapshot is active (or already
// finished); cancelling ctx tears the poll down and stops all further
// network calls.
func (w *Controller) Wait(ctx context.Context, ref Ref) (*domain.Session, error) {
	ss, err := w.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	w.notify(ctx, ss)
	if ss.Status != domain.StatusWaiting {
		return ss, nil
	}

	latest := ss
	err = poll.Run(ctx, poll.Config{
		Loop:          "waiting",
		Interval:      w.c.Interval,
		NewTickerFunc: w.c.NewTickerFunc,
	}, func(ctx context.Context) (bool, error) {
		fresh, err := w.fetch(ctx, latest)
		if err != nil {
			return false, err
		}

		latest = fresh
		w.notify(ctx, fresh)
		return fresh.Status != domain.StatusWaiting, nil
	})
	if err != nil {
		return nil, err
	}

	return latest, nil
}

// fetch prefers the id lookup; the code lookup stops resolving once the
// session leaves the open states.
func (w *Controller) fetch(ctx context.Context, last *domain.Session) (*domain.Session, error) {
	if last.SessionID != "" {
		return w.c.Client.FetchByID(ctx, last.SessionID)
	}
	return w.c.Client.FetchByCode(ctx, last.JoinCode)
}

func (w *Controller) fromCache(ctx context.Context) *domain.Session {
	if w.c.Cache == nil {
		return nil
	}

	for _, key := range []string{cache.KeyCurrentSession, cache.KeyCreatedSession} {
		ss, ok, err := w.c.Cache.GetSession(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "waiting: cache read failed", "key", key, "error", err)
			continue
		}
		if ok {
			return ss
		}
	}

	return nil
}

func (w *Controller) candidateCodes(ctx context.Context, ref Ref) []string {
	var codes []string
	if ref.JoinCode != "" {
		codes = append(codes, ref.JoinCode)
	}

	if w.c.Cache == nil {
		return codes
	}

	for _, key := range []string{cache.KeyCurrentCode, cache.KeyCreatedCode} {
		code, ok, err := w.c.Cache.GetCode(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "waiting: cache read failed", "key", key, "error", err)
			continue
		}
		if ok && code != "" && !contains(codes, code) {
			codes = append(codes, code)
		}
	}

	return codes
}

func (w *Controller) notify(ctx context.Context, ss *domain.Session) {
	if w.c.Cache != nil {
		if err := w.c.Cache.PutSession(ctx, cache.KeyCurrentSession, ss); err != nil {
			slog.WarnContext(ctx, "waiting: cache session failed", "error", err)
		}
	}

	if w.c.OnUpdate != nil {
		w.c.OnUpdate(ss)
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
