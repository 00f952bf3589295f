package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithOutputLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("pyazdoc", "warn", &buf)

	log.Info("hidden")
	log.Warn("shown", "slot", "demo-key")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "slot=demo-key")
	assert.Contains(t, buf.String(), "pyazdoc")
}

func TestNewWithOutputUnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("pyazdoc", "loud", &buf)

	log.Debug("hidden")
	log.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
