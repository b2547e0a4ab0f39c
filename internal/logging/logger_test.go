package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		production, debug bool
		debugEnabled      bool
	}{
		{production: true, debug: false, debugEnabled: false},
		{production: true, debug: true, debugEnabled: true},
		{production: false, debug: false, debugEnabled: false},
		{production: false, debug: true, debugEnabled: true},
	}
	for _, tc := range cases {
		logger, err := New(tc.production, tc.debug)
		require.NoError(t, err)
		assert.Equal(t, tc.debugEnabled, logger.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	}
}
