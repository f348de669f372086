package game_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braintease/quizlink/internal/client"
	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/errors"
	"github.com/braintease/quizlink/internal/game"
	"github.com/braintease/quizlink/internal/questions"
)

// fixedProvider returns a three-question set where option 0 is always right.
type fixedProvider struct {
	loads []questions.LoadRequest
}

func (p *fixedProvider) Load(_ context.Context, req questions.LoadRequest) ([]domain.Question, error) {
	p.loads = append(p.loads, req)

	qs := make([]domain.Question, 3)
	for i := range qs {
		qs[i] = domain.Question{
			QuestionID:   "q" + string(rune('1'+i)),
			QuestionText: "?",
			Options: []domain.Option{
				{OptionID: "a", OptionText: "right"},
				{OptionID: "b", OptionText: "wrong"},
				{OptionID: "c", OptionText: "wrong"},
			},
			CorrectIndex: 0,
		}
	}
	return qs, nil
}

// fakeWriter records submissions and serves a scripted error sequence before
// succeeding.
type fakeWriter struct {
	errs    []error
	submits []client.SubmitScoreRequest
	fetches int
	result  *domain.Session
}

func (f *fakeWriter) SubmitScore(_ context.Context, req client.SubmitScoreRequest) (*domain.Session, error) {
	f.submits = append(f.submits, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.result, nil
}

func (f *fakeWriter) FetchByID(context.Context, string) (*domain.Session, error) {
	f.fetches++
	return f.result, nil
}

func activeSession() *domain.Session {
	return &domain.Session{
		SessionID:      "s1",
		Status:         domain.StatusActive,
		Difficulty:     domain.DifficultyEasy,
		TotalQuestions: 3,
		BoardSeed:      42,
	}
}

func makeRunner(t *testing.T, w *fakeWriter) (*game.Runner, *fixedProvider) {
	t.Helper()

	p := &fixedProvider{}
	r := game.NewRunner(game.Config{
		Questions:    p,
		Client:       w,
		Now:          func() time.Time { return time.Unix(1000, 0) },
		RetryBackoff: time.Millisecond,
	})

	require.NoError(t, r.Start(context.Background(), activeSession()))
	return r, p
}

func TestRunner_Start(t *testing.T) {
	t.Run("rejects a session that has not started", func(t *testing.T) {
		r := game.NewRunner(game.Config{Questions: &fixedProvider{}, Client: &fakeWriter{}})

		ss := activeSession()
		ss.Status = domain.StatusWaiting

		err := r.Start(context.Background(), ss)
		require.Error(t, err)
		assert.Equal(t, errors.CodeFailedPrecondition, errors.CodeOf(err))
		assert.Equal(t, game.StateLoading, r.State())
	})

	t.Run("loads the board with the session's seed and settings", func(t *testing.T) {
		r, p := makeRunner(t, &fakeWriter{})

		require.Len(t, p.loads, 1)
		assert.Equal(t, int64(42), p.loads[0].BoardSeed)
		assert.Equal(t, domain.DifficultyEasy, p.loads[0].Difficulty)
		assert.Equal(t, 3, p.loads[0].TotalQuestions)
		assert.Equal(t, game.StatePlaying, r.State())
	})
}

func TestRunner_Answer(t *testing.T) {
	t.Run("scores correct answers and advances through the board", func(t *testing.T) {
		r, _ := makeRunner(t, &fakeWriter{})

		correct, finished, err := r.Answer(0)
		require.NoError(t, err)
		assert.True(t, correct)
		assert.False(t, finished)

		correct, finished, err = r.Answer(1)
		require.NoError(t, err)
		assert.False(t, correct)
		assert.False(t, finished)

		correct, finished, err = r.Answer(0)
		require.NoError(t, err)
		assert.True(t, correct)
		assert.True(t, finished)

		assert.Equal(t, game.StateSubmitting, r.State())
		p := r.Progress()
		assert.Equal(t, 2, p.Score)
		assert.Equal(t, 2, p.CorrectCount)
	})

	t.Run("rejects an out-of-range option without advancing", func(t *testing.T) {
		r, _ := makeRunner(t, &fakeWriter{})

		_, _, err := r.Answer(7)
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidArgument, errors.CodeOf(err))
		assert.Equal(t, 0, r.Progress().Index)
	})

	t.Run("no answers are accepted after the board is exhausted", func(t *testing.T) {
		r, _ := makeRunner(t, &fakeWriter{})
		finishBoard(t, r)

		_, _, err := r.Answer(0)
		require.Error(t, err)
		assert.Equal(t, errors.CodeFailedPrecondition, errors.CodeOf(err))

		_, ok := r.Question()
		assert.False(t, ok)
	})
}

func TestRunner_Submit(t *testing.T) {
	t.Run("submits the final score once and returns the snapshot", func(t *testing.T) {
		w := &fakeWriter{result: &domain.Session{SessionID: "s1", Status: domain.StatusFinished}}
		r, _ := makeRunner(t, w)
		finishBoard(t, r)

		ss, err := r.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFinished, ss.Status)
		assert.Equal(t, game.StateDone, r.State())

		require.Len(t, w.submits, 1)
		assert.Equal(t, 3, w.submits[0].Score)
		assert.Equal(t, 3, w.submits[0].CorrectCount)
	})

	t.Run("repeated submit calls return the first outcome without resending", func(t *testing.T) {
		w := &fakeWriter{result: &domain.Session{SessionID: "s1", Status: domain.StatusActive}}
		r, _ := makeRunner(t, w)
		finishBoard(t, r)

		first, err := r.Submit(context.Background())
		require.NoError(t, err)

		second, err := r.Submit(context.Background())
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Len(t, w.submits, 1)
	})

	t.Run("rejects submission while questions remain", func(t *testing.T) {
		r, _ := makeRunner(t, &fakeWriter{})

		_, err := r.Submit(context.Background())
		require.Error(t, err)
		assert.Equal(t, errors.CodeFailedPrecondition, errors.CodeOf(err))
	})

	t.Run("a transport failure is retried and can still land", func(t *testing.T) {
		w := &fakeWriter{
			errs:   []error{errors.New(errors.CodeUnavailable, errors.WithMessagef("connection reset"))},
			result: &domain.Session{SessionID: "s1", Status: domain.StatusFinished},
		}
		r, _ := makeRunner(t, w)
		finishBoard(t, r)

		ss, err := r.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFinished, ss.Status)
		assert.Len(t, w.submits, 2)
	})

	t.Run("a duplicate response means the first attempt landed", func(t *testing.T) {
		w := &fakeWriter{
			errs: []error{
				errors.New(errors.CodeUnavailable, errors.WithMessagef("connection reset")),
				errors.New(errors.CodeAlreadyExists, errors.WithMessagef("score already submitted")),
			},
			result: &domain.Session{SessionID: "s1", Status: domain.StatusFinished},
		}
		r, _ := makeRunner(t, w)
		finishBoard(t, r)

		ss, err := r.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFinished, ss.Status)
		assert.Equal(t, 1, w.fetches)
	})

	t.Run("a rejection that is not retryable surfaces immediately", func(t *testing.T) {
		w := &fakeWriter{
			errs: []error{errors.New(errors.CodePermissionDenied, errors.WithMessagef("not a member"))},
		}
		r, _ := makeRunner(t, w)
		finishBoard(t, r)

		_, err := r.Submit(context.Background())
		require.Error(t, err)
		assert.Equal(t, errors.CodePermissionDenied, errors.CodeOf(err))
		assert.Len(t, w.submits, 1)
	})

	t.Run("retries give up after the configured bound", func(t *testing.T) {
		unavailable := func() error {
			return errors.New(errors.CodeUnavailable, errors.WithMessagef("connection reset"))
		}
		w := &fakeWriter{errs: []error{unavailable(), unavailable(), unavailable(), unavailable()}}
		r, _ := makeRunner(t, w)
		finishBoard(t, r)

		_, err := r.Submit(context.Background())
		require.Error(t, err)
		assert.Equal(t, errors.CodeUnavailable, errors.CodeOf(err))
		assert.Len(t, w.submits, 3) // initial attempt + default retries
	})
}

func finishBoard(t *testing.T, r *game.Runner) {
	t.Helper()

	for {
		_, ok := r.Question()
		if !ok {
			break
		}
		_, finished, err := r.Answer(0)
		require.NoError(t, err)
		if finished {
			break
		}
	}
}
