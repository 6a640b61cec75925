package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug", "json")
	require.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("step", "enter_pin").Info("transition")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "enter_pin", entry["step"])
	require.Equal(t, "transition", entry["msg"])
}

func TestNewWithWriter_UnknownLevel(t *testing.T) {
	t.Parallel()

	l := NewWithWriter(&bytes.Buffer{}, "chatty", "text")
	require.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, ok := l.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
}

func TestOrDiscard(t *testing.T) {
	t.Parallel()

	require.NotNil(t, OrDiscard(nil))

	l := Discard()
	require.Same(t, l, OrDiscard(l))
}
