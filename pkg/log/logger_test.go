package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetLevel(1)

	SetLevel(1)
	buf.Reset()
	Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetLevel(0)
	buf.Reset()
	Debugf("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, strings.ToLower(buf.String()), "[debug]")
	assert.Equal(t, 0, Level())
}

func TestFormatDoesNotReinterpretPercent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Infof("funding %s", "100%")
	assert.Contains(t, buf.String(), "funding 100%")
	assert.NotContains(t, buf.String(), "%!")
}
