package util

import (
	"strings"

	"github.com/ValentinKolb/dObj/lib/common"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple"
	"github.com/ValentinKolb/dObj/lib/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupConfigFlags adds the flags of common.Config to a command
func SetupConfigFlags(cmd *cobra.Command) {
	defaults := common.DefaultConfig()

	key := "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "data-file"
	cmd.PersistentFlags().String(key, defaults.DataFile, WrapString("The file the store is loaded from and saved to. Leave empty to keep everything in memory"))

	key = "save-on-close"
	cmd.PersistentFlags().Bool(key, defaults.SaveOnClose, WrapString("Whether the store is saved to the data file when it is closed"))

	key = "verify-goroutine"
	cmd.PersistentFlags().Bool(key, defaults.VerifyGoroutine, WrapString("Whether sessions check that they are only used from the goroutine that opened them"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dobj")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the store configuration from viper
func GetConfig() common.Config {
	return common.Config{
		LogLevel:        viper.GetString("log-level"),
		VerifyGoroutine: viper.GetBool("verify-goroutine"),
		DataFile:        viper.GetString("data-file"),
		SaveOnClose:     viper.GetBool("save-on-close"),
	}
}

// BindCommandFlags binds a command's flags to viper, it can be used as PreRunE
func BindCommandFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// MapleFactory creates the groups of the command line tools
func MapleFactory() db.Group {
	return maple.NewMapleGroup(nil)
}

// OpenStore validates the config, initializes the loggers and opens a store on the maple engine
func OpenStore(config common.Config) (*store.Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	common.InitLoggers(config)
	return store.Open(MapleFactory, config)
}
