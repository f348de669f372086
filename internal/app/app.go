// Package app wires the terminal client: identity, snapshot cache, session
// client, controllers, and the optional debug listener.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/braintease/quizlink/internal/auth"
	"github.com/braintease/quizlink/internal/cache"
	"github.com/braintease/quizlink/internal/client"
	"github.com/braintease/quizlink/internal/questions"
	"github.com/braintease/quizlink/internal/telemetry"
)

type Config struct {
	API struct {
		BaseURL string
	}

	Auth struct {
		BaseURL  string
		APIKey   string
		Email    string
		Password string
		// Token is a pre-issued identity token; set it to skip sign-in.
		Token string
	}

	Redis struct {
		// Addrs enables the Redis snapshot cache; empty means in-memory.
		Addrs  []string
		Pass   string
		Prefix string
	}

	Debug struct {
		// Port exposes /metrics and /debug/pprof; 0 disables the listener.
		Port int32
	}

	Poll struct {
		IntervalSeconds int
	}
}

func DefaultConfig() Config {
	var c Config
	c.API.BaseURL = "http://127.0.0.1:8080"
	c.Redis.Prefix = "quizlink"
	c.Poll.IntervalSeconds = 2
	return c
}

type App struct {
	c Config

	identity *auth.Identity
	authc    *auth.Client

	infra struct {
		redis redis.UniversalClient
		cache cache.Store
	}

	session   *client.Client
	questions questions.Provider

	debug *http.Server

	in  *bufio.Scanner
	out io.Writer
}

func Init(ctx context.Context, c Config) (*App, error) {
	a := &App{
		c:   c,
		in:  bufio.NewScanner(os.Stdin),
		out: os.Stdout,
	}

	if err := a.initIdentity(ctx); err != nil {
		return nil, fmt.Errorf("app: init identity: %w", err)
	}

	if err := a.initInfra(ctx); err != nil {
		return nil, fmt.Errorf("app: init infra: %w", err)
	}

	a.initClients()
	a.initDebug()

	return a, nil
}

func (a *App) initIdentity(ctx context.Context) error {
	a.authc = auth.NewClient(auth.Config{
		BaseURL: a.c.Auth.BaseURL,
		APIKey:  a.c.Auth.APIKey,
	})

	if a.c.Auth.Token != "" {
		uid, err := auth.UserIDFromToken(a.c.Auth.Token)
		if err != nil {
			// Opaque tokens still work against dev stores.
			uid = a.c.Auth.Token
		}
		a.identity = auth.NewIdentity(uid, "", auth.StaticTokenSource(a.c.Auth.Token))
		return nil
	}

	if a.c.Auth.Email == "" {
		return fmt.Errorf("no auth token and no credentials configured")
	}

	id, err := a.authc.SignIn(ctx, a.c.Auth.Email, a.c.Auth.Password)
	if err != nil {
		return err
	}

	a.identity = id
	return nil
}

func (a *App) initInfra(ctx context.Context) error {
	if len(a.c.Redis.Addrs) == 0 {
		a.infra.cache = cache.NewMemory()
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    a.c.Redis.Addrs,
		Password: a.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := r.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}

	a.infra.redis = r
	a.infra.cache = cache.NewRedis(cache.RedisConfig{
		Redis:  r,
		Prefix: fmt.Sprintf("%s:%s", a.c.Redis.Prefix, a.identity.UserID),
	})

	return nil
}

func (a *App) initClients() {
	a.session = client.New(client.Config{
		BaseURL:  a.c.API.BaseURL,
		Identity: a.identity,
	})

	a.questions = questions.NewHTTPProvider(questions.Config{
		BaseURL:  a.c.API.BaseURL,
		Identity: a.identity,
	})
}

func (a *App) initDebug() {
	if a.c.Debug.Port == 0 {
		return
	}

	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	a.debug = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.c.Debug.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info(fmt.Sprintf("app: debug listening on port %d", a.c.Debug.Port))
		if err := a.debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("app: debug listener failed", "error", err)
		}
	}()
}

func (a *App) pollInterval() time.Duration {
	if a.c.Poll.IntervalSeconds <= 0 {
		return 0 // poll package default
	}
	return time.Duration(a.c.Poll.IntervalSeconds) * time.Second
}

func (a *App) Close() {
	if a.debug != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.debug.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "app: shutdown debug listener failed", "error", err)
		}
	}

	if a.infra.redis != nil {
		if err := a.infra.redis.Close(); err != nil {
			slog.Error("app: close redis failed", "error", err)
		}
	}
}
