package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. In debug mode output goes through
// the console writer; otherwise plain JSON lines are written to stdout. level
// overrides the default (debug or info) when it names a zerolog level.
func Init(serviceName string, debug bool, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "message"

	var output io.Writer = os.Stdout
	lvl := zerolog.InfoLevel
	if debug {
		lvl = zerolog.DebugLevel
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				return fmt.Sprintf("| %-6s|", i)
			},
			FormatMessage: func(i interface{}) string {
				return fmt.Sprintf("| %s", i)
			},
			FormatFieldName: func(i interface{}) string {
				return fmt.Sprintf("%s:", i)
			},
		}
	}
	var badLevel error
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err == nil {
			lvl = parsed
		} else {
			badLevel = err
		}
	}

	log.Logger = zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	if badLevel != nil {
		log.Warn().Err(badLevel).Str("level", level).Msg("Unknown log level, keeping default")
	}
	log.Info().Bool("debug", debug).Str("level", lvl.String()).Msg("Logger initialized")
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// ForUser tags events with the Telegram user they concern.
func ForUser(userID int64) zerolog.Logger {
	return log.Logger.With().Int64("user_id", userID).Logger()
}

// ForConfession tags events with a confession and the user acting on it.
func ForConfession(confessionID string, userID int64) zerolog.Logger {
	return log.Logger.With().Str("confession_id", confessionID).Int64("user_id", userID).Logger()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Error() *zerolog.Event {
	return log.Error()
}
