package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Configuration struct
// --------------------------------------------------------------------------

// Config holds the runtime configuration of a store and its sessions.
type Config struct {
	// Logging configuration (debug, info, warn, error)
	LogLevel string

	// whether sessions check that they are only used from the goroutine that opened them
	VerifyGoroutine bool

	// optional file the store loads on open and saves to
	DataFile string

	// whether the store saves to DataFile on close
	SaveOnClose bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		LogLevel:        "warn",
		VerifyGoroutine: true,
		SaveOnClose:     true,
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(c.DataFile) != c.DataFile {
		return fmt.Errorf("data file %q has leading or trailing whitespace", c.DataFile)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Sessions")
	addField("Verify Goroutine", fmt.Sprintf("%t", c.VerifyGoroutine))

	addSection("Storage")
	if c.DataFile == "" {
		addField("Data File", "(in memory)")
	} else {
		addField("Data File", c.DataFile)
	}
	addField("Save On Close", fmt.Sprintf("%t", c.SaveOnClose))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
