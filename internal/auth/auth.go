// Package auth obtains and refreshes identity tokens from the external
// identity provider. The rest of the client treats the resulting user ID as
// an opaque key and never self-asserts it to the backend.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/braintease/quizlink/internal/errors"
)

// TokenSource yields a bearer token to attach to a request. Implementations
// must return a token that is valid at call time.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Identity is the authenticated caller's context, threaded explicitly into
// every component that talks to the backend.
type Identity struct {
	UserID      string
	DisplayName string

	source TokenSource
}

func NewIdentity(userID, displayName string, src TokenSource) *Identity {
	return &Identity{
		UserID:      userID,
		DisplayName: displayName,
		source:      src,
	}
}

func (i *Identity) Token(ctx context.Context) (string, error) {
	if i == nil || i.source == nil {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("auth: no token source"))
	}

	return i.source.Token(ctx)
}

// StaticTokenSource returns a source that always yields the given token.
// Useful for tests and pre-issued tokens.
func StaticTokenSource(token string) TokenSource {
	return staticSource(token)
}

type staticSource string

func (s staticSource) Token(context.Context) (string, error) {
	return string(s), nil
}

type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Client signs users in against the identity provider's REST surface and
// keeps the issued token fresh.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewClient(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL: c.BaseURL,
		apiKey:  c.APIKey,
		hc:      hc,
	}
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type tokenResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	DisplayName  string `json:"displayName"`
}

// SignIn exchanges credentials for an Identity whose token source refreshes
// itself before expiry.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	var resp tokenResponse
	err := c.post(ctx, "/v1/accounts:signInWithPassword", signInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("auth: sign in: %w", err)
	}

	userID := resp.LocalID
	if userID == "" {
		userID, _ = UserIDFromToken(resp.IDToken)
	}

	src := &refreshingSource{
		client:  c,
		token:   resp.IDToken,
		refresh: resp.RefreshToken,
		expiry:  expiryFrom(resp.ExpiresIn),
	}

	return NewIdentity(userID, resp.DisplayName, src), nil
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

func (c *Client) refreshToken(ctx context.Context, refresh string) (*refreshResponse, error) {
	var resp refreshResponse
	err := c.post(ctx, "/v1/token", refreshRequest{
		GrantType:    "refresh_token",
		RefreshToken: refresh,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("auth: refresh token: %w", err)
	}

	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + path
	if c.apiKey != "" {
		url += "?key=" + c.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("identity provider rejected request: status=%d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// refreshingSource serves the cached token until shortly before expiry, then
// refreshes under a lock.
type refreshingSource struct {
	client *Client

	mu      sync.Mutex
	token   string
	refresh string
	expiry  time.Time
}

const expirySlack = 30 * time.Second

func (s *refreshingSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Until(s.expiry) > expirySlack {
		return s.token, nil
	}

	resp, err := s.client.refreshToken(ctx, s.refresh)
	if err != nil {
		return "", err
	}

	s.token = resp.IDToken
	if resp.RefreshToken != "" {
		s.refresh = resp.RefreshToken
	}
	s.expiry = expiryFrom(resp.ExpiresIn)

	return s.token, nil
}

func expiryFrom(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return time.Now().Add(time.Duration(secs) * time.Second)
}

// UserIDFromToken extracts the subject user ID from an identity token without
// verifying the signature. Verification is the backend's job; the client only
// needs the ID to annotate its own rows locally.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}

	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}

	return "", fmt.Errorf("auth: token has no user id claim")
}
