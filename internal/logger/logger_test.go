package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.TraceLevel, logger.ParseLevel("trace"))
	require.Equal(t, zerolog.DebugLevel, logger.ParseLevel(" DEBUG "))
	require.Equal(t, zerolog.WarnLevel, logger.ParseLevel("warning"))
	require.Equal(t, zerolog.ErrorLevel, logger.ParseLevel("error"))
	require.Equal(t, zerolog.InfoLevel, logger.ParseLevel("bogus"))
}

func TestNew_WritesJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Options{Level: "debug", Output: &buf, Component: "authcli"})
	l.Info().Str("k", "v").Msg("hello")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	require.Equal(t, "hello", event["message"])
	require.Equal(t, "authcli", event["component"])
	require.Equal(t, "v", event["k"])

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}
