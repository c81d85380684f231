package wlog

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMsgWritesLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DebugLevel)
	l.Info().Msg("catalog boot complete")

	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "catalog boot complete")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestMsgfFormats(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DebugLevel)
	l.Warn().Msgf("dropped %d bytes of overflow", 42)

	assert.Contains(t, buf.String(), "dropped 42 bytes of overflow")
	assert.Contains(t, buf.String(), "WARN")
}

func TestErrAppendsErrorText(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DebugLevel)
	l.Error().Err(errors.New("boom")).Msg("internal error")

	line := buf.String()
	assert.Contains(t, line, "internal error")
	assert.Contains(t, line, "error: boom")
}

func TestLevelFilteringSuppressesBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WarnLevel)
	l.Debug().Msg("should not appear")
	l.Info().Msg("should not appear either")

	assert.Empty(t, buf.String())
}

func TestLevelFilteringAllowsAtOrAboveThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WarnLevel)
	l.Warn().Msg("at threshold")
	l.Error().Msg("above threshold")

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestNilEventFromFilteredLevelIsSafeToChain(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, ErrorLevel)

	assert.NotPanics(t, func() {
		l.Info().Err(errors.New("ignored")).Msgf("value=%d", 1)
	})
	assert.Empty(t, buf.String())
}

func TestFatalAlwaysEmitsRegardlessOfLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, FatalLevel+1)
	l.Fatal().Msg("unreachable state")

	assert.Contains(t, buf.String(), "FATAL")
}

func TestSetLevelChangesThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, ErrorLevel)
	l.Warn().Msg("suppressed")
	assert.Empty(t, buf.String())

	l.SetLevel(WarnLevel)
	l.Warn().Msg("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestNewWithNilWriterDefaultsToStdout(t *testing.T) {
	l := New(nil, InfoLevel)
	assert.NotNil(t, l)
}

func TestLevelStringUnknownValue(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Contains(t, Level(99).String(), "LEVEL")
}

func TestPackageDefaultLoggerIsUsable(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DebugLevel)
	Info().Msg("package level event")

	assert.Contains(t, buf.String(), "package level event")
}

func TestAppendTimestampIsFixedWidth(t *testing.T) {
	ts := time.Date(2024, time.March, 7, 9, 5, 3, 0, time.UTC)
	line := string(appendTimestamp(nil, ts))
	assert.Equal(t, "2024-03-07 09:05:03", line)
}
