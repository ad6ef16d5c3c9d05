package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInitLevels(t *testing.T) {
	t.Cleanup(func() { Log = zerolog.Nop() })

	var buf bytes.Buffer
	InitWriter(&buf, false, true)
	assert.Equal(t, zerolog.WarnLevel, Log.GetLevel())

	Debug().Msg("hidden")
	Warn().Str("path", "utils/math.ts").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "utils/math.ts")

	buf.Reset()
	InitWriter(&buf, true, true)
	assert.Equal(t, zerolog.DebugLevel, Log.GetLevel())
	Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNopBeforeInit(t *testing.T) {
	l := zerolog.Nop()
	assert.Equal(t, zerolog.Disabled, l.GetLevel())
	// Must not panic.
	Error().Msg("discarded")
}
