// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/partnerform/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       types.LoggingConfig
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{name: "default", cfg: types.LoggingConfig{}, wantLevel: zapcore.InfoLevel},
		{name: "warn", cfg: types.LoggingConfig{Level: "warn"}, wantLevel: zapcore.WarnLevel},
		{name: "debug flag wins", cfg: types.LoggingConfig{Debug: true, Level: "error"}, wantLevel: zapcore.DebugLevel},
		{name: "bad level", cfg: types.LoggingConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.wantLevel))
			if tt.wantLevel > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.wantLevel-1))
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l, err := New(types.LoggingConfig{})
	require.NoError(t, err)
	assert.Same(t, l, OrNop(l))
}
