package cmd

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/webitel/im-presence-service/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestProvideLogger_FollowsLevelVar(t *testing.T) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)

	logger := ProvideLogger(&config.Config{Log: config.LogConfig{Format: "text"}}, level)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))

	level.Set(slog.LevelDebug)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}
