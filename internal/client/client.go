// Package client is the sole gateway to the backend session store. It shapes
// requests and decodes responses; all business rules live server-side.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/braintease/quizlink/internal/auth"
	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/errors"
	"github.com/braintease/quizlink/internal/telemetry"
)

type Config struct {
	BaseURL    string
	Identity   *auth.Identity
	HTTPClient *http.Client
}

type Client struct {
	baseURL  string
	identity *auth.Identity
	hc       *http.Client
}

func New(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL:  c.BaseURL,
		identity: c.Identity,
		hc:       hc,
	}
}

// Identity returns the auth context this client attributes its writes to.
func (c *Client) Identity() *auth.Identity {
	return c.identity
}

// CreateSessionRequest configures a new multiplayer match. The caller becomes
// the sole member of the created session.
type CreateSessionRequest struct {
	NumberOfPlayers int               `json:"number_of_players"`
	Difficulty      domain.Difficulty `json:"difficulty"`
	TotalQuestions  int               `json:"total_questions"`
}

func (r CreateSessionRequest) validate() error {
	return domain.ValidateSettings(r.NumberOfPlayers, r.Difficulty, r.TotalQuestions)
}

// CreateSession allocates a new session in waiting status with the calling
// user as sole member.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	return c.do(ctx, "create", http.MethodPost, "/multiplayer/create", req)
}

type JoinSessionRequest struct {
	JoinCode string `json:"join_code"`
}

// JoinSession appends the calling user to the session matching the code. A
// rejoin by an existing member is idempotent and returns the current
// snapshot. If this join fills the session, the returned snapshot is already
// active.
func (c *Client) JoinSession(ctx context.Context, req JoinSessionRequest) (*domain.Session, error) {
	code, err := NormalizeJoinCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, "join", http.MethodPost, "/multiplayer/join", JoinSessionRequest{JoinCode: code})
}

// FetchByCode returns a read-only snapshot of the session the code resolves
// to. Codes only resolve while the session is still open.
func (c *Client) FetchByCode(ctx context.Context, joinCode string) (*domain.Session, error) {
	code, err := NormalizeJoinCode(joinCode)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, "fetch_by_code", http.MethodGet, "/multiplayer/by-code?join_code="+url.QueryEscape(code), nil)
}

// FetchByID returns a read-only snapshot of the session.
func (c *Client) FetchByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("session id is required"))
	}

	return c.do(ctx, "fetch_by_id", http.MethodGet, "/multiplayer/"+url.PathEscape(sessionID), nil)
}

type SubmitScoreRequest struct {
	SessionID        string `json:"session_id"`
	Score            int    `json:"score"`
	CorrectCount     int    `json:"correct_count"`
	TimeTakenSeconds int    `json:"time_taken_seconds"`
}

// SubmitScore records the caller's final result, write-once per session. If
// this is the last outstanding player, the returned snapshot is finished and
// carries winners.
func (c *Client) SubmitScore(ctx context.Context, req SubmitScoreRequest) (*domain.Session, error) {
	if req.SessionID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("session id is required"))
	}
	if req.Score < 0 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("score must not be negative"))
	}

	return c.do(ctx, "submit", http.MethodPost, "/multiplayer/submit", req)
}

func (c *Client) do(ctx context.Context, op, method, path string, in any) (*domain.Session, error) {
	start := time.Now()
	ss, err := c.send(ctx, method, path, in)
	telemetry.SessionRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	telemetry.SessionRequests.WithLabelValues(op, strconv.Itoa(int(errors.CodeOf(err)))).Inc()

	if err != nil {
		return nil, fmt.Errorf("session %s: %w", op, err)
	}

	return ss, nil
}

func (c *Client) send(ctx context.Context, method, path string, in any) (*domain.Session, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	token, err := c.identity.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, decodeError(resp)
	}

	var ss domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&ss); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &ss, nil
}

// decodeError turns the backend's error envelope back into a typed error.
// Envelopes without a recognizable code fall back to the HTTP status.
func decodeError(resp *http.Response) error {
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return errors.New(errors.FromHTTPStatus(resp.StatusCode),
			errors.WithMessagef("status %d", resp.StatusCode))
	}

	var e errors.Error
	if err := json.Unmarshal(b, &e); err == nil && e.Code != 0 {
		return &e
	}

	return errors.New(errors.FromHTTPStatus(resp.StatusCode),
		errors.WithMessagef("status %d: %s", resp.StatusCode, bytes.TrimSpace(b)))
}

// NormalizeJoinCode uppercases the code, strips everything that is not a
// letter or digit, and requires exactly six characters.
func NormalizeJoinCode(code string) (string, error) {
	norm := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case ch >= 'a' && ch <= 'z':
			norm = append(norm, ch-'a'+'A')
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			norm = append(norm, ch)
		}
	}

	if len(norm) != domain.JoinCodeLen {
		return "", errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("join code must be %d characters", domain.JoinCodeLen))
	}

	return string(norm), nil
}
