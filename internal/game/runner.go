// Package game runs one player's question loop. Players progress
// independently once a match is active; the only synchronization point is
// the single score submission at the end.
package game

import (
	"context"
	"time"

	"github.com/braintease/quizlink/internal/client"
	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/errors"
	"github.com/braintease/quizlink/internal/questions"
)

type State string

const (
	StateLoading    State = "loading"
	StatePlaying    State = "playing"
	StateSubmitting State = "submitting"
	StateDone       State = "done"
)

// SessionWriter is the slice of the session client the runner needs.
type SessionWriter interface {
	SubmitScore(ctx context.Context, req client.SubmitScoreRequest) (*domain.Session, error)
	FetchByID(ctx context.Context, sessionID string) (*domain.Session, error)
}

type Config struct {
	Questions questions.Provider
	Client    SessionWriter
	// Now overrides the clock, for tests.
	Now func() time.Time
	// SubmitRetries bounds retries of a submission that failed at the
	// transport level. Retrying is safe: the store is write-once per player,
	// and a duplicate response means the first attempt landed.
	SubmitRetries int
	RetryBackoff  time.Duration
}

// Runner holds one play-through's local ephemeral state. It is
// single-threaded by design and not safe for concurrent use.
type Runner struct {
	c   Config
	now func() time.Time

	state     State
	session   *domain.Session
	questions []domain.Question
	index     int
	score     int
	correct   int
	startedAt time.Time

	submitted bool
	result    *domain.Session
}

const (
	defaultSubmitRetries = 2
	defaultRetryBackoff  = 500 * time.Millisecond
)

func NewRunner(c Config) *Runner {
	if c.SubmitRetries < 0 {
		c.SubmitRetries = 0
	} else if c.SubmitRetries == 0 {
		c.SubmitRetries = defaultSubmitRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}

	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		c:     c,
		now:   now,
		state: StateLoading,
	}
}

func (r *Runner) State() State { return r.state }

// Start loads the question set for the match. The board seed makes the
// sequence identical for every player, which is what keeps scores
// comparable.
func (r *Runner) Start(ctx context.Context, ss *domain.Session) error {
	if ss.Status == domain.StatusWaiting {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game: session has not started"))
	}

	qs, err := r.c.Questions.Load(ctx, questions.LoadRequest{
		Difficulty:     ss.Difficulty,
		TotalQuestions: ss.TotalQuestions,
		BoardSeed:      ss.BoardSeed,
	})
	if err != nil {
		return err
	}

	r.session = ss
	r.questions = qs
	r.index = 0
	r.score = 0
	r.correct = 0
	r.startedAt = r.now()
	r.state = StatePlaying

	return nil
}

// Question returns the current question, or false once the set is exhausted.
func (r *Runner) Question() (*domain.Question, bool) {
	if r.state != StatePlaying || r.index >= len(r.questions) {
		return nil, false
	}
	return &r.questions[r.index], true
}

type Progress struct {
	Index          int
	TotalQuestions int
	Score          int
	CorrectCount   int
}

func (r *Runner) Progress() Progress {
	return Progress{
		Index:          r.index,
		TotalQuestions: len(r.questions),
		Score:          r.score,
		CorrectCount:   r.correct,
	}
}

// Answer records the player's choice for the current question and advances.
// Answering the last question moves the runner to the submitting state.
func (r *Runner) Answer(option int) (correct bool, finished bool, err error) {
	if r.state != StatePlaying {
		return false, false, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game: not playing, state=%s", r.state))
	}

	q := r.questions[r.index]
	if option < 0 || option >= len(q.Options) {
		return false, false, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("game: option %d out of range", option))
	}

	correct = option == q.CorrectIndex
	if correct {
		r.score++
		r.correct++
	}

	r.index++
	if r.index >= len(r.questions) {
		r.state = StateSubmitting
		return correct, true, nil
	}

	return correct, false, nil
}

// Submit sends the final score exactly once; repeated calls (double click,
// re-render) return the first outcome. The returned snapshot's status tells
// the caller where to go next: finished means straight to results, anything
// else means wait for the remaining players.
func (r *Runner) Submit(ctx context.Context) (*domain.Session, error) {
	if r.state == StatePlaying || r.state == StateLoading {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game: play-through not complete, state=%s", r.state))
	}

	if r.submitted {
		return r.result, nil
	}

	req := client.SubmitScoreRequest{
		SessionID:        r.session.SessionID,
		Score:            r.score,
		CorrectCount:     r.correct,
		TimeTakenSeconds: int(r.now().Sub(r.startedAt) / time.Second),
	}

	ss, err := r.submitWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	r.submitted = true
	r.result = ss
	r.state = StateDone

	return ss, nil
}

func (r *Runner) submitWithRetry(ctx context.Context, req client.SubmitScoreRequest) (*domain.Session, error) {
	var lastErr error
	for attempt := 0; attempt <= r.c.SubmitRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.c.RetryBackoff):
			}
		}

		ss, err := r.c.Client.SubmitScore(ctx, req)
		if err == nil {
			return ss, nil
		}

		switch errors.CodeOf(err) {
		case errors.CodeAlreadyExists:
			// A retried request whose first attempt landed. The recorded
			// score stands; fetch the snapshot it produced.
			return r.c.Client.FetchByID(ctx, req.SessionID)
		case errors.CodeUnavailable:
			lastErr = err
		default:
			return nil, err
		}
	}

	return nil, lastErr
}
