// Command quizlink is a terminal client for the trivia backend's multiplayer
// mode: create or join a match, wait for players, answer the shared question
// board, and converge on the final ranking.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/braintease/quizlink/internal/app"
	"github.com/braintease/quizlink/internal/config"
)

func main() {
	c := app.DefaultConfig()

	if p := os.Getenv("CONFIG_PATH"); p != "" {
		if err := config.Load(p, &c); err != nil {
			log.Fatalf("Load config failed: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	a, err := app.Init(ctx, c)
	if err != nil {
		log.Fatalf("Init failed: %v", err)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "quizlink: %v\n", err)
		os.Exit(1)
	}

	// Give the debug listener a moment to flush on interrupt.
	if ctx.Err() != nil {
		time.Sleep(100 * time.Millisecond)
	}
}
