// Package questions loads the question set for a match. The content pipeline
// is an external collaborator; the only property the client relies on is that
// the same board seed yields the same question sequence for every player.
package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/braintease/quizlink/internal/auth"
	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/errors"
)

type LoadRequest struct {
	Difficulty     domain.Difficulty
	TotalQuestions int
	BoardSeed      int64
}

// Provider yields the ordered question set for a match.
type Provider interface {
	Load(ctx context.Context, req LoadRequest) ([]domain.Question, error)
}

type Config struct {
	BaseURL    string
	Identity   *auth.Identity
	HTTPClient *http.Client
}

// HTTPProvider fetches questions from the backend's start-game endpoint.
type HTTPProvider struct {
	baseURL  string
	identity *auth.Identity
	hc       *http.Client
}

func NewHTTPProvider(c Config) *HTTPProvider {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}

	return &HTTPProvider{
		baseURL:  c.BaseURL,
		identity: c.Identity,
		hc:       hc,
	}
}

type startGameRequest struct {
	Difficulty     domain.Difficulty `json:"difficulty"`
	TotalQuestions int               `json:"total_questions"`
	BoardSeed      int64             `json:"board_seed,omitempty"`
	Categories     []string          `json:"categories"`
}

type startGameResponse struct {
	Questions []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	QuestionID      string   `json:"question_id"`
	Question        string   `json:"question"`
	ShuffledAnswers []string `json:"shuffled_answers"`
	CorrectAnswer   string   `json:"correct_answer"`
}

func (p *HTTPProvider) Load(ctx context.Context, req LoadRequest) ([]domain.Question, error) {
	body, err := json.Marshal(startGameRequest{
		Difficulty:     req.Difficulty,
		TotalQuestions: req.TotalQuestions,
		BoardSeed:      req.BoardSeed,
		Categories:     []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("questions: marshal request: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/start-game", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("questions: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	token, err := p.identity.Token(ctx)
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.hc.Do(hreq)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.FromHTTPStatus(resp.StatusCode),
			errors.WithMessagef("questions: start game: status %d", resp.StatusCode))
	}

	var out startGameResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("questions: decode response: %w", err)
	}

	qs := make([]domain.Question, 0, len(out.Questions))
	for i, wq := range out.Questions {
		q, err := convert(i, wq)
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}

	if len(qs) == 0 {
		return nil, errors.New(errors.CodeInternal, errors.WithMessagef("questions: empty question set"))
	}

	return qs, nil
}

func convert(i int, wq wireQuestion) (domain.Question, error) {
	q := domain.Question{
		QuestionID:   wq.QuestionID,
		QuestionText: wq.Question,
		CorrectIndex: -1,
	}
	if q.QuestionID == "" {
		q.QuestionID = fmt.Sprintf("q%d", i+1)
	}

	for j, a := range wq.ShuffledAnswers {
		q.Options = append(q.Options, domain.Option{
			OptionID:   fmt.Sprintf("%s-%d", q.QuestionID, j),
			OptionText: a,
		})
		if a == wq.CorrectAnswer {
			q.CorrectIndex = j
		}
	}

	if q.CorrectIndex < 0 {
		return domain.Question{}, fmt.Errorf("questions: question %s: correct answer missing from options", q.QuestionID)
	}

	return q, nil
}
