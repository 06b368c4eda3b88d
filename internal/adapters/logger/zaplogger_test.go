package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestZapLogger_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core))
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	l.Info(ctx, "fetched", map[string]interface{}{"pair": "BTC/USDT", "rows": 10})
	l.Error(ctx, errors.New("boom"), "failed")

	require.Equal(t, 2, logs.Len())
	entries := logs.All()

	assert.Equal(t, "fetched", entries[0].Message)
	ctxMap := entries[0].ContextMap()
	assert.Equal(t, "BTC/USDT", ctxMap["pair"])
	assert.EqualValues(t, 10, ctxMap["rows"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNew(t *testing.T) {
	l, err := New(LevelWarn, "json")
	require.NoError(t, err)
	assert.NotNil(t, l)
}
