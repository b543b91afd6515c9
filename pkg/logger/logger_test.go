package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.ParseLevel(tt.in))
		})
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewWithWriter(logger.Config{Level: "info"}, &buf)

	componentLogger := logger.Component(base, "ratings")
	componentLogger.Info().Msg("ready")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ratings", entry["component"])
	assert.Equal(t, "handicapper", entry["service"])
	assert.Equal(t, "ready", entry["message"])
}
