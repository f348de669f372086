package results_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braintease/quizlink/internal/cache"
	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/errors"
	"github.com/braintease/quizlink/internal/poll"
	"github.com/braintease/quizlink/internal/results"
)

type fakeTicker struct {
	ch chan time.Time
}

func newFakeTicker() *fakeTicker { return &fakeTicker{ch: make(chan time.Time, 1)} }

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}
func (f *fakeTicker) tick()               { f.ch <- time.Time{} }

// scriptedReader serves its errors first, then its snapshots in order,
// repeating the last one.
type scriptedReader struct {
	snaps  []*domain.Session
	errs   []error
	calls  int
	served int
}

func (s *scriptedReader) FetchByID(context.Context, string) (*domain.Session, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}

	i := s.served
	if i >= len(s.snaps) {
		i = len(s.snaps) - 1
	}
	s.served++
	return s.snaps[i], nil
}

func finishedSession() *domain.Session {
	return &domain.Session{
		SessionID:      "s1",
		Status:         domain.StatusFinished,
		TotalQuestions: 5,
		Players:        []string{"alice", "bob"},
		PlayerScores: map[string]domain.PlayerScore{
			"alice": {Score: 5, CorrectCount: 5, TotalQuestions: 5},
			"bob":   {Score: 3, CorrectCount: 3, TotalQuestions: 5},
		},
		Winners: []string{"alice"},
	}
}

func TestController_Converge(t *testing.T) {
	t.Run("returns at once when the fresh snapshot is already finished", func(t *testing.T) {
		reader := &scriptedReader{snaps: []*domain.Session{finishedSession()}}
		rc := results.NewController(results.Config{Client: reader, SelfID: "bob"})

		ranking, err := rc.Converge(context.Background(), "s1")
		require.NoError(t, err)
		require.Len(t, ranking.Entries, 2)

		assert.Equal(t, "alice", ranking.Entries[0].UserID)
		assert.True(t, ranking.Entries[0].Winner)
		assert.False(t, ranking.Entries[0].Self)
		assert.True(t, ranking.Entries[1].Self)
		assert.Equal(t, 1, reader.calls)
	})

	t.Run("polls until every submission has landed", func(t *testing.T) {
		active := finishedSession()
		active.Status = domain.StatusActive
		active.Winners = nil

		reader := &scriptedReader{snaps: []*domain.Session{active, active, finishedSession()}}
		ft := newFakeTicker()

		var observed []domain.Status
		rc := results.NewController(results.Config{
			Client:        reader,
			SelfID:        "alice",
			NewTickerFunc: func(time.Duration) poll.Ticker { return ft },
			OnUpdate: func(ss *domain.Session) {
				observed = append(observed, ss.Status)
			},
		})

		done := make(chan struct{})
		var ranking *domain.Ranking
		var err error
		go func() {
			defer close(done)
			ranking, err = rc.Converge(context.Background(), "s1")
		}()

		ft.tick()
		ft.tick()
		<-done

		require.NoError(t, err)
		assert.Equal(t, []domain.Status{domain.StatusActive, domain.StatusActive, domain.StatusFinished}, observed)
		assert.Equal(t, []string{"alice"}, winners(ranking))
	})

	t.Run("a failed initial fetch falls back to polling", func(t *testing.T) {
		reader := &scriptedReader{
			errs:  []error{errors.New(errors.CodeUnavailable, errors.WithMessagef("connection reset"))},
			snaps: []*domain.Session{finishedSession()},
		}
		ft := newFakeTicker()

		rc := results.NewController(results.Config{
			Client:        reader,
			SelfID:        "alice",
			NewTickerFunc: func(time.Duration) poll.Ticker { return ft },
		})

		done := make(chan struct{})
		var ranking *domain.Ranking
		var err error
		go func() {
			defer close(done)
			ranking, err = rc.Converge(context.Background(), "s1")
		}()

		ft.tick()
		<-done

		require.NoError(t, err)
		require.Len(t, ranking.Entries, 2)
	})

	t.Run("mirrors the final snapshot into the cache", func(t *testing.T) {
		reader := &scriptedReader{snaps: []*domain.Session{finishedSession()}}
		c := cache.NewMemory()

		rc := results.NewController(results.Config{Client: reader, Cache: c, SelfID: "alice"})

		_, err := rc.Converge(context.Background(), "s1")
		require.NoError(t, err)

		got, ok, err := c.GetSession(context.Background(), cache.KeyCurrentSession)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, domain.StatusFinished, got.Status)
	})

	t.Run("cancellation stops the convergence poll", func(t *testing.T) {
		active := finishedSession()
		active.Status = domain.StatusActive

		reader := &scriptedReader{snaps: []*domain.Session{active}}
		ft := newFakeTicker()
		ctx, cancel := context.WithCancel(context.Background())

		updates := make(chan struct{}, 8)
		rc := results.NewController(results.Config{
			Client:        reader,
			SelfID:        "alice",
			NewTickerFunc: func(time.Duration) poll.Ticker { return ft },
			OnUpdate:      func(*domain.Session) { updates <- struct{}{} },
		})

		done := make(chan error, 1)
		go func() {
			_, err := rc.Converge(ctx, "s1")
			done <- err
		}()

		<-updates // initial fetch
		ft.tick()
		<-updates
		cancel()

		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func winners(r *domain.Ranking) []string {
	var out []string
	for _, e := range r.Entries {
		if e.Winner {
			out = append(out, e.UserID)
		}
	}
	return out
}
