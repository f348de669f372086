// Command storedev runs a development session store implementing the same
// REST surface as the production backend, for local play and demos.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/braintease/quizlink/internal/config"
	"github.com/braintease/quizlink/internal/store"
	"github.com/braintease/quizlink/internal/storeserver"
)

type Config struct {
	HTTP struct {
		Port int32
	}
}

func main() {
	c := Config{}
	c.HTTP.Port = 8080

	if p := os.Getenv("CONFIG_PATH"); p != "" {
		if err := config.Load(p, &c); err != nil {
			log.Fatalf("Load config failed: %v", err)
		}
	}

	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	storeserver.New(storeserver.Config{
		Engine: e,
		Store:  store.New(store.Config{}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	go func() {
		slog.Info(fmt.Sprintf("storedev: listening on port %d", c.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("storedev: serve failed", "error", err)
		}
	}()

	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "storedev: shutdown failed", "error", err)
	}

	slog.InfoContext(ctx, "storedev: shutdown completed")
}
