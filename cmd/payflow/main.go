// Command payflow is an interactive terminal client for the payment flow.
//
//	payflow -token $TOKEN [-link 'acc=1234567890&amt=100'] [-camera ./frames]
//	payflow -cookies ./signin-cookies.txt
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/app"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/cli"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/config"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/result"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file")
	envPath := flag.String("env", ".env", "env file loaded before the environment")
	token := flag.String("token", "", "bearer token (overrides PAYFLOW_AUTH_TOKEN)")
	cookies := flag.String("cookies", "", "file of Set-Cookie lines carrying the authToken cookie")
	link := flag.String("link", "", "deep link query, e.g. 'acc=1234567890&amt=100&note=tea'")
	cameraDir := flag.String("camera", "", "directory of image frames used as the camera")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		return err
	}
	if *token != "" {
		cfg.AuthToken = *token
	}
	if *cameraDir != "" {
		cfg.CameraDir = *cameraDir
	}
	// Info lines would interleave with the prompts.
	if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := &syncWriter{w: os.Stdout}
	color := !*noColor
	var src session.TokenSource = session.Static(cfg.AuthToken)
	if *cookies != "" && *token == "" {
		if src, err = cookieTokens(*cookies, cfg.BaseURL); err != nil {
			return err
		}
	}
	f := a.NewFlow(src, func(b result.Burst) { cli.Burst(out, b) })
	defer f.Close()

	c := newClient(f, os.Stdin, out, color)
	if *link != "" {
		q, err := url.ParseQuery(*link)
		if err != nil {
			return err
		}
		if err := f.Start(ctx, model.ParseDeepLink(q)); err != nil {
			c.printErr(err)
		}
	}
	return c.loop(ctx)
}

// syncWriter serializes writes from the prompt loop and the celebration.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
