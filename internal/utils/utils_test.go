package utils

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	assert.Equal(t, "", Summarize(nil, 10))
	assert.Equal(t, "short error", Summarize(errors.New("short\n  error"), 10+20))

	long := errors.New(strings.Repeat("x", 500))
	got := Summarize(long, MaxErrorSummary)
	assert.Len(t, []rune(got), MaxErrorSummary)
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Len(t, Summarize(long, 0), MaxErrorSummary)
}

func TestAppErrorUnwraps(t *testing.T) {
	base := errors.New("disk full")
	err := NewAppError("store.reading", "insert failed", base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "store.reading: insert failed: disk full", err.Error())
	assert.Equal(t, "op: msg", NewAppError("op", "msg", nil).Error())
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	for _, in := range []string{"2025-06-01T12:30:00Z", "2025-06-01T14:30:00+02:00", "2025-06-01T12:30:00", "2025-06-01 12:30:00", "1748781000"} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s -> %s", in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := ParseTimestamp("")
	assert.Error(t, err)
	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
