// Package results waits for every player's submission to land, then builds
// the shared final ranking. Pure observer: it never mutates the session.
package results

import (
	"context"
	"log/slog"
	"time"

	"github.com/braintease/quizlink/internal/cache"
	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/poll"
)

// SessionReader is the read-only slice of the session client convergence
// needs.
type SessionReader interface {
	FetchByID(ctx context.Context, sessionID string) (*domain.Session, error)
}

type Config struct {
	Client SessionReader
	Cache  cache.Store
	// SelfID annotates the calling user's own row in the ranking.
	SelfID   string
	Interval time.Duration
	// NewTickerFunc overrides the clock, for tests.
	NewTickerFunc func(d time.Duration) poll.Ticker
	// OnUpdate receives every fresh snapshot while waiting for stragglers.
	OnUpdate func(s *domain.Session)
}

type Controller struct {
	c Config
}

func NewController(c Config) *Controller {
	return &Controller{c: c}
}

// Converge polls until the session is finished, then returns the final
// ranking. A cached or handed-off snapshot is never trusted for the
// finished decision; a fresh fetch always confirms it first. Cancelling ctx
// stops the poll and all further network calls.
func (r *Controller) Converge(ctx context.Context, sessionID string) (*domain.Ranking, error) {
	ss, err := r.c.Client.FetchByID(ctx, sessionID)
	if err == nil {
		r.notify(ctx, ss)
		if ss.Status == domain.StatusFinished {
			return domain.NewRanking(ss, r.c.SelfID), nil
		}
	} else {
		slog.WarnContext(ctx, "results: initial fetch failed, will poll", "session_id", sessionID, "error", err)
	}

	var finished *domain.Session
	err = poll.Run(ctx, poll.Config{
		Loop:          "results",
		Interval:      r.c.Interval,
		NewTickerFunc: r.c.NewTickerFunc,
	}, func(ctx context.Context) (bool, error) {
		fresh, err := r.c.Client.FetchByID(ctx, sessionID)
		if err != nil {
			return false, err
		}

		r.notify(ctx, fresh)
		if fresh.Status == domain.StatusFinished {
			finished = fresh
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	return domain.NewRanking(finished, r.c.SelfID), nil
}

func (r *Controller) notify(ctx context.Context, ss *domain.Session) {
	if r.c.Cache != nil {
		if err := r.c.Cache.PutSession(ctx, cache.KeyCurrentSession, ss); err != nil {
			slog.WarnContext(ctx, "results: cache session failed", "error", err)
		}
	}

	if r.c.OnUpdate != nil {
		r.c.OnUpdate(ss)
	}
}
