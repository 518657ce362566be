package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/user"
)

func TestZapLogger(t *testing.T) {
	zcore, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLoggerFrom(zap.New(zcore))

	usr := user.User{ID: "u1", Username: "ann"}
	logger.Warn("saving attendance", errors.New("boom"), map[string]interface{}{"section": "7A"}, usr, 42)
	logger.Debug("roster synced")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "saving attendance", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "7A", fields["section"])
	assert.Equal(t, "u1", fields["user.id"])
	assert.Equal(t, "ann", fields["user.username"])
	assert.EqualValues(t, 42, fields["arg3"])
}

func TestRollbarLogger_Disabled(t *testing.T) {
	zcore, logs := observer.New(zapcore.InfoLevel)
	conf := &core.Config{Env: "TEST", TestMode: true, RollbarToken: "token"}
	logger := NewRollbarLogger(NewZapLoggerFrom(zap.New(zcore)), conf)

	logger.Error("report failed", errors.New("boom"), user.User{ID: "u1"})
	logger.Info("started")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "u1", logs.All()[0].ContextMap()["user.id"])
}
