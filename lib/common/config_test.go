package common

import (
	"io"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.True(t, c.VerifyGoroutine)
	assert.True(t, c.SaveOnClose)
	assert.Empty(t, c.DataFile)
	assert.Contains(t, c.String(), "(in memory)")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"debug level", func(c *Config) { c.LogLevel = "DEBUG" }, false},
		{"warning alias", func(c *Config) { c.LogLevel = "warning" }, false},
		{"unknown level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"empty level", func(c *Config) { c.LogLevel = "" }, true},
		{"data file", func(c *Config) { c.DataFile = "data/store.dobj" }, false},
		{"padded data file", func(c *Config) { c.DataFile = " store.dobj" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	c := DefaultConfig()
	c.DataFile = "store.dobj"
	c.LogLevel = "info"
	s := c.String()
	for _, want := range []string{"SESSIONS", "STORAGE", "LOGGING", "store.dobj", "info"} {
		assert.Contains(t, s, want)
	}
}

func TestParseLogLevel(t *testing.T) {
	levels := map[string]logger.LogLevel{
		"debug": logger.DEBUG,
		"Info":  logger.INFO,
		"warn":  logger.WARNING,
		"error": logger.ERROR,
	}
	for in, want := range levels {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}

func TestInitLoggers(t *testing.T) {
	// an invalid level falls back to warn instead of failing
	assert.NotPanics(t, func() {
		InitLoggersTo(Config{LogLevel: "nope"}, io.Discard)
		InitLoggersTo(Config{LogLevel: "debug"}, io.Discard)
	})

	l := CreateLogger("test").(*dObjLogger)
	assert.Equal(t, logger.WARNING, l.level)
	l.SetLevel(logger.ERROR)
	assert.Equal(t, logger.ERROR, l.level)
}
