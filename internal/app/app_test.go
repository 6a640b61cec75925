package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/config"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/session"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.CameraDir = t.TempDir()
	a, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, a.Camera)

	f := a.NewFlow(session.Static("tok"), nil)
	t.Cleanup(f.Close)
	require.Equal(t, model.StepSelectMethod, f.Step())
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.BaseURL = "not a url"
	_, err := New(cfg)
	require.Error(t, err)
}
