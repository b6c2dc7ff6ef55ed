package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	assert.True(t, New("debug", "svc").Core().Enabled(zap.DebugLevel))
	assert.False(t, New("info", "svc").Core().Enabled(zap.DebugLevel))
	assert.False(t, New("warn", "svc").Core().Enabled(zap.InfoLevel))
	assert.True(t, New("bogus", "svc").Core().Enabled(zap.InfoLevel))
}
