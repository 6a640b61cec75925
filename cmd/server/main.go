package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/app"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/config"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/flow"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/session"
	httptransport "github.com/iliamunaev/Payment-Flow-Orchestration/internal/transport/http"
)

const shutdownGrace = 35 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run loads the config, serves the payment API until SIGINT or SIGTERM and
// then drains: the listener stops accepting, requests in progress finish
// and submissions already posted are given time to settle.
func run() error {
	configPath := flag.String("config", "", "YAML config file")
	envPath := flag.String("env", ".env", "env file loaded before the environment")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := httptransport.NewStore(cfg.SessionTTL)
	srv := newServer(a, store)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		store.Run(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := a.Tracker.Drain(sctx); err != nil {
			a.Log.WithField("in_flight", a.Tracker.Running()).Warn("submissions still in flight at exit")
		}
		store.CloseAll()
		return nil
	})
	return g.Wait()
}

// newServer returns the API server. Write timeouts cover the longest
// long-poll a client can ask for.
func newServer(a *app.App, store *httptransport.Store) *http.Server {
	factory := func(src session.TokenSource) *flow.Flow { return a.NewFlow(src, nil) }
	h := httptransport.New(factory, store, a.Config.SubmitTimeout+a.Config.MinProcessing, a.Log)

	return &http.Server{
		Addr:              a.Config.Addr,
		Handler:           h.Router(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      a.Config.SubmitTimeout + a.Config.MinProcessing + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
