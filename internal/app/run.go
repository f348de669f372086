package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/errors"
	"github.com/braintease/quizlink/internal/game"
	"github.com/braintease/quizlink/internal/lobby"
	"github.com/braintease/quizlink/internal/results"
	"github.com/braintease/quizlink/internal/waiting"
)

// Run drives the lobby menu until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintf(a.out, "Signed in as %s\n", a.displayName())

	for {
		fmt.Fprintln(a.out, "\n[c] create match  [j] join match  [q] quit")
		choice, err := a.prompt(ctx, "> ")
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		switch strings.ToLower(choice) {
		case "c":
			err = a.createAndPlay(ctx)
		case "j":
			err = a.joinAndPlay(ctx)
		case "q", "":
			return nil
		default:
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			if errors.CodeOf(err) == errors.CodeUnauthenticated {
				fmt.Fprintln(a.out, "Your sign-in expired. Please restart and sign in again.")
				return err
			}
			// Surface and return to the menu; a failed match is not fatal.
			fmt.Fprintf(a.out, "Error: %s\n", errors.Convert(err).Message)
		}
	}
}

func (a *App) createAndPlay(ctx context.Context) error {
	players, err := a.promptInt(ctx, fmt.Sprintf("Players (%d-%d): ", domain.MinPlayers, domain.MaxPlayers))
	if err != nil {
		return err
	}
	diff, err := a.prompt(ctx, "Difficulty (easy/medium/hard): ")
	if err != nil {
		return err
	}
	total, err := a.promptInt(ctx, fmt.Sprintf("Questions (%d-%d): ", domain.MinQuestions, domain.MaxQuestions))
	if err != nil {
		return err
	}

	lc := lobby.NewController(lobby.Config{Client: a.session, Cache: a.infra.cache})
	h, err := lc.Create(ctx, lobby.CreateRequest{
		NumberOfPlayers: players,
		Difficulty:      domain.Difficulty(strings.ToLower(diff)),
		TotalQuestions:  total,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "\nMatch created. Share this code: %s\n", h.JoinCode)
	return a.play(ctx, h)
}

func (a *App) joinAndPlay(ctx context.Context) error {
	code, err := a.prompt(ctx, "Join code: ")
	if err != nil {
		return err
	}

	lc := lobby.NewController(lobby.Config{Client: a.session, Cache: a.infra.cache})
	h, err := lc.Join(ctx, code)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Joined match %s\n", h.JoinCode)
	return a.play(ctx, h)
}

// play takes a lobby handoff through waiting, the question loop, submission,
// and results convergence.
func (a *App) play(ctx context.Context, h *lobby.Handoff) error {
	wc := waiting.NewController(waiting.Config{
		Client:   a.session,
		Cache:    a.infra.cache,
		Interval: a.pollInterval(),
		OnUpdate: func(ss *domain.Session) {
			fmt.Fprintf(a.out, "Waiting for players... %d/%d joined\n", ss.CurrentPlayers, ss.NumberOfPlayers)
		},
	})

	ss, err := wc.Wait(ctx, waiting.Ref{Session: h.Session, JoinCode: h.JoinCode})
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "\nAll players joined. Starting!")

	runner := game.NewRunner(game.Config{
		Questions: a.questions,
		Client:    a.session,
	})
	if err := runner.Start(ctx, ss); err != nil {
		return err
	}

	if err := a.questionLoop(ctx, runner); err != nil {
		return err
	}

	final, err := runner.Submit(ctx)
	if err != nil {
		// Forward progress over retry-blocking: report it and still move to
		// the results view, which keeps polling the authoritative state.
		fmt.Fprintf(a.out, "Score submission failed: %s\n", errors.Convert(err).Message)
		final = ss
	}

	if final.Status != domain.StatusFinished {
		fmt.Fprintln(a.out, "\nWaiting for the other players to finish...")
	}

	rc := results.NewController(results.Config{
		Client:   a.session,
		Cache:    a.infra.cache,
		SelfID:   a.identity.UserID,
		Interval: a.pollInterval(),
	})

	ranking, err := rc.Converge(ctx, ss.SessionID)
	if err != nil {
		return err
	}

	a.printRanking(ranking)

	// The match is over; stale snapshots must not resolve on the next run.
	if err := a.infra.cache.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "app: clear cache failed", "error", err)
	}

	return nil
}

func (a *App) questionLoop(ctx context.Context, runner *game.Runner) error {
	for {
		q, ok := runner.Question()
		if !ok {
			return nil
		}

		p := runner.Progress()
		fmt.Fprintf(a.out, "\nQuestion %d/%d (score %d)\n%s\n", p.Index+1, p.TotalQuestions, p.Score, q.QuestionText)
		for i, o := range q.Options {
			fmt.Fprintf(a.out, "  %d) %s\n", i+1, o.OptionText)
		}

		choice, err := a.promptInt(ctx, "Answer: ")
		if err != nil {
			return err
		}

		correct, finished, err := runner.Answer(choice - 1)
		switch {
		case err != nil:
			fmt.Fprintf(a.out, "%s\n", errors.Convert(err).Message)
			continue
		case correct:
			fmt.Fprintln(a.out, "Correct!")
		default:
			fmt.Fprintln(a.out, "Wrong.")
		}

		if finished {
			return nil
		}
	}
}

func (a *App) printRanking(r *domain.Ranking) {
	fmt.Fprintln(a.out, "\nFinal ranking:")
	for i, e := range r.Entries {
		marks := ""
		if e.Winner {
			marks += " [winner]"
		}
		if e.Self {
			marks += " (you)"
		}

		name := e.DisplayName
		if name == "" {
			name = shorten(e.UserID)
		}

		fmt.Fprintf(a.out, "%2d. %-20s score=%d correct=%d/%d time=%ds%s\n",
			i+1, name, e.Score, e.CorrectCount, e.TotalQuestions, e.TimeTakenSeconds, marks)
	}
}

func (a *App) displayName() string {
	if a.identity.DisplayName != "" {
		return a.identity.DisplayName
	}
	return shorten(a.identity.UserID)
}

func (a *App) prompt(ctx context.Context, label string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		if err := a.in.Err(); err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	return strings.TrimSpace(a.in.Text()), nil
}

func (a *App) promptInt(ctx context.Context, label string) (int, error) {
	for {
		s, err := a.prompt(ctx, label)
		if err != nil {
			return 0, err
		}

		n, err := strconv.Atoi(s)
		if err == nil {
			return n, nil
		}
		fmt.Fprintln(a.out, "Please enter a number.")
	}
}

func shorten(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
