package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetDebug(t *testing.T) {
	t.Cleanup(func() { SetDebug(false) })

	l := GetLogger("test")
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))

	SetDebug(true)
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))

	SetDebug(false)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}
