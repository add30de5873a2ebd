package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogger(t *testing.T) {
	assert.NotNil(t, Default())

	var buf bytes.Buffer
	original := *Default()
	t.Cleanup(func() { SetDefault(original) })

	SetDefault(zerolog.New(&buf).Level(zerolog.InfoLevel))
	Info().Str("kind", "orgunit").Msg("read units")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "read units", entry["message"])
	assert.Equal(t, "orgunit", entry["kind"])
}

func TestContextLogger(t *testing.T) {
	tl := NewTestLogger(t)
	ctx := WithLogger(context.Background(), tl.Logger)

	ctx = WithRun(ctx, "run-1")
	ctx = WithEntity(ctx, "user", "u-1")
	ctx = WithOperation(ctx, "upsert")
	FromContext(ctx).Info().Msg("applied")

	assert.True(t, tl.ContainsAll(`"run_id":"run-1"`, `"kind":"user"`, `"entity_id":"u-1"`, `"operation":"upsert"`))
	events := tl.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "applied", events[0]["message"])
	assert.Equal(t, "run-1", RunID(ctx))
	assert.Empty(t, RunID(context.Background()))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))
	//nolint:staticcheck // nil context is handled explicitly
	assert.Same(t, Default(), Ctx(nil))
}

func TestWithError(t *testing.T) {
	tl := NewTestLogger(t)
	ctx := WithLogger(context.Background(), tl.Logger)

	assert.Equal(t, ctx, WithError(ctx, nil))

	ctx = WithError(ctx, assert.AnError)
	FromContext(ctx).Warn().Msg("skipped")
	assert.True(t, tl.Contains(assert.AnError.Error()))
}

func TestConfiguration(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNewLoggerFromConfig(t *testing.T) {
	oldLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(oldLevel) })

	logger := NewLoggerFromConfig(&Config{
		Level:  "warn",
		Format: "json",
		Output: "discard",
		Fields: map[string]any{"service": "orgsync"},
	})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger = NewLoggerFromConfig(nil)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestParseTimeFormat(t *testing.T) {
	assert.Equal(t, "3:04PM", parseTimeFormat("kitchen"))
	assert.Equal(t, "2006-01-02", parseTimeFormat("2006-01-02"))
	assert.Empty(t, parseTimeFormat("unix"))
	assert.Equal(t, "3:04PM", parseTimeFormat("nonsense"))
}

func TestTestLogger(t *testing.T) {
	tl := CaptureLoggingForTest(t)
	Warn().Msg("first")
	Error().Msg("second")

	assert.Len(t, tl.Lines(), 2)
	assert.True(t, tl.ContainsAny("second", "third"))
	assert.False(t, tl.Contains("third"))
}
