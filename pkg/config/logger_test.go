package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("honors level", func(t *testing.T) {
		logger, err := NewLogger(LoggerConfig{Level: "warn", Env: "dev"})
		require.NoError(t, err)

		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("prod config builds", func(t *testing.T) {
		logger, err := NewLogger(LoggerConfig{Level: "info", Env: "prod"})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("invalid level errors", func(t *testing.T) {
		_, err := NewLogger(LoggerConfig{Level: "loud", Env: "dev"})
		assert.Error(t, err)
	})
}
