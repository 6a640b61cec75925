// Package app wires the payment services from a Config.
package app

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/backend"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/config"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/flow"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/logging"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/camera"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/payment"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/pool"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/result"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/tracker"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/session"
)

// App holds the services shared by every flow of one process.
type App struct {
	Config   config.Config
	Log      *logrus.Logger
	Backend  *backend.Client
	Payments *payment.Service
	Tracker  *tracker.Tracker
	// Camera is nil unless Config.CameraDir is set.
	Camera *camera.Camera
}

// New validates cfg and builds the shared services.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	client, err := backend.New(backend.Config{
		BaseURL:       cfg.BaseURL,
		VerifyTimeout: cfg.VerifyTimeout,
		SubmitTimeout: cfg.SubmitTimeout,
		VerifyRPS:     cfg.VerifyRPS,
		VerifyBurst:   cfg.VerifyBurst,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	minDisplay := cfg.MinProcessing
	if minDisplay == 0 {
		minDisplay = -1
	}
	tr := &tracker.Tracker{}
	a := &App{
		Config:  cfg,
		Log:     log,
		Backend: client,
		Payments: payment.New(tr, payment.Config{
			Timeout:    cfg.SubmitTimeout,
			MinDisplay: minDisplay,
			Logger:     log,
		}),
		Tracker: tr,
	}
	if cfg.CameraDir != "" {
		dir := camera.Directory{Root: cfg.CameraDir}
		a.Camera = camera.New(dir, dir, camera.PreferBack, pool.New(1))
	}
	return a, nil
}

// NewFlow builds a flow for the user whose tokens src yields. sink, when
// not nil, receives the celebration bursts of a successful payment.
func (a *App) NewFlow(src session.TokenSource, sink func(result.Burst)) *flow.Flow {
	opts := []flow.Option{
		flow.WithShake(a.Config.ShakeDuration),
		flow.WithDemoPayload(a.Config.DemoPayload),
		flow.WithProgressInterval(a.Config.ProgressInterval),
		flow.WithLocation(time.Local),
	}
	if sink != nil {
		opts = append(opts, flow.WithCelebration(a.Config.CelebrationDuration, sink))
	}
	s := session.New(src)
	return flow.New(flow.Deps{
		Backend:  a.Backend.For(s),
		Payments: a.Payments,
		Camera:   a.Camera,
		Sender:   s,
		Logger:   a.Log,
	}, opts...)
}
