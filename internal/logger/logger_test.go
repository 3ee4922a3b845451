package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultIsNop(t *testing.T) {
	require.NotNil(t, Logger)
	Logger.Infow("discarded", FieldHandle, "I1")
}

func TestOr(t *testing.T) {
	l := zap.NewExample().Sugar()
	assert.Same(t, l, Or(l))
	assert.Same(t, Logger, Or(nil))
}

func TestInitialize(t *testing.T) {
	saved := Logger
	t.Cleanup(func() { Logger = saved })

	require.NoError(t, Initialize(false, true))
	assert.True(t, Logger.Desugar().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Initialize(true, false))
	assert.False(t, Logger.Desugar().Core().Enabled(zap.DebugLevel))
}
