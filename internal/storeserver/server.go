// Package storeserver exposes the in-memory session store over the same REST
// surface the production backend serves, so the client can be exercised
// end-to-end without it.
package storeserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/braintease/quizlink/internal/domain"
	"github.com/braintease/quizlink/internal/errors"
	"github.com/braintease/quizlink/internal/questions"
	"github.com/braintease/quizlink/internal/store"
)

type Config struct {
	Engine *gin.Engine
	Store  *store.Store
}

type API struct {
	store *store.Store
}

func New(c Config) *API {
	a := &API{store: c.Store}

	g := c.Engine.Group("/multiplayer", a.authenticate)
	g.POST("/create", a.createSession)
	g.POST("/join", a.joinSession)
	g.GET("/by-code", a.fetchByCode)
	g.GET("/:session_id", a.fetchByID)
	g.POST("/submit", a.submitScore)

	c.Engine.POST("/start-game", a.authenticate, a.startGame)

	return a
}

type caller struct {
	userID      string
	displayName string
}

const callerKey = "quizlink.caller"

// authenticate derives the caller from the bearer token. ID tokens are
// parsed without verification (the development store trusts its callers);
// anything that is not a JWT is treated as a raw user id for convenience.
func (a *API) authenticate(c *gin.Context) {
	h := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing bearer token")))
		return
	}

	cl := caller{userID: token}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if uid, ok := claims["user_id"].(string); ok && uid != "" {
			cl.userID = uid
		} else if sub, ok := claims["sub"].(string); ok && sub != "" {
			cl.userID = sub
		}
		if name, ok := claims["name"].(string); ok {
			cl.displayName = name
		}
	}

	c.Set(callerKey, cl)
	c.Next()
}

func callerFrom(c *gin.Context) caller {
	v, _ := c.Get(callerKey)
	cl, _ := v.(caller)
	return cl
}

type createRequest struct {
	NumberOfPlayers int               `json:"number_of_players"`
	Difficulty      domain.Difficulty `json:"difficulty"`
	TotalQuestions  int               `json:"total_questions"`
}

func (a *API) createSession(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	cl := callerFrom(c)
	ss, err := a.store.Create(store.CreateParams{
		UserID:          cl.userID,
		DisplayName:     cl.displayName,
		NumberOfPlayers: req.NumberOfPlayers,
		Difficulty:      req.Difficulty,
		TotalQuestions:  req.TotalQuestions,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, ss)
}

type joinRequest struct {
	JoinCode string `json:"join_code"`
}

func (a *API) joinSession(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	cl := callerFrom(c)
	ss, err := a.store.Join(strings.ToUpper(req.JoinCode), cl.userID, cl.displayName)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ss)
}

func (a *API) fetchByCode(c *gin.Context) {
	code := strings.ToUpper(c.Query("join_code"))
	if code == "" {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("join_code is required")))
		return
	}

	ss, err := a.store.GetByCode(code)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ss)
}

func (a *API) fetchByID(c *gin.Context) {
	ss, err := a.store.GetByID(c.Param("session_id"))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ss)
}

type submitRequest struct {
	SessionID        string `json:"session_id"`
	Score            int    `json:"score"`
	CorrectCount     int    `json:"correct_count"`
	TimeTakenSeconds int    `json:"time_taken_seconds"`
}

func (a *API) submitScore(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	cl := callerFrom(c)
	ss, err := a.store.Submit(store.SubmitParams{
		SessionID:        req.SessionID,
		UserID:           cl.userID,
		DisplayName:      cl.displayName,
		Score:            req.Score,
		CorrectCount:     req.CorrectCount,
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ss)
}

type startGameRequest struct {
	Difficulty     domain.Difficulty `json:"difficulty"`
	TotalQuestions int               `json:"total_questions"`
	BoardSeed      int64             `json:"board_seed"`
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

// startGame serves a deterministic question set for the given board seed, in
// the same wire shape as the production question endpoint.
func (a *API) startGame(c *gin.Context) {
	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	if !req.Difficulty.Valid() {
		req.Difficulty = domain.DifficultyEasy
	}
	if req.TotalQuestions <= 0 {
		req.TotalQuestions = domain.MinQuestions
	}

	qs := questions.Generate(req.BoardSeed, req.Difficulty, req.TotalQuestions)

	resp := startGameResponse{Questions: make([]wireQuestion, 0, len(qs))}
	for _, q := range qs {
		wq := wireQuestion{
			QuestionID:    q.QuestionID,
			Question:      q.QuestionText,
			CorrectAnswer: q.Options[q.CorrectIndex].OptionText,
		}
		for _, o := range q.Options {
			wq.ShuffledAnswers = append(wq.ShuffledAnswers, o.OptionText)
		}
		resp.Questions = append(resp.Questions, wq)
	}

	c.JSON(http.StatusOK, resp)
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
