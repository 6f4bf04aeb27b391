package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logFile *lumberjack.Logger
	mu      sync.Mutex
	isSetup bool
)

// Config holds logger settings
type Config struct {
	Level   string // debug, info, warn, error
	LogFile string // optional file path, appended to and rotated at 10 MB
	Console bool   // human readable console output instead of JSON on stderr
}

// SetupLogger initializes the global logger with the given configuration
func SetupLogger(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var stderr io.Writer = os.Stderr
	if cfg.Console {
		stderr = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	writers := []io.Writer{stderr}

	if cfg.LogFile != "" {
		if dir := filepath.Dir(cfg.LogFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}
		logFile = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		writers = append(writers, logFile)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()

	log.Debug().Msgf("--- PhotoFinder log started at %s ---", time.Now().Format(time.RFC3339))

	isSetup = true
	return nil
}

// CloseLogger closes the log file
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		log.Debug().Msgf("--- PhotoFinder log closed at %s ---", time.Now().Format(time.RFC3339))
		logFile.Close()
		logFile = nil
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	isSetup = false
}

// Component returns a logger tagged with the given component name, for
// injection into stores, groupers and managers.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// Nop returns a disabled logger, used by tests and optional dependencies
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	log.Info().Msgf(format, args...)
}

// DebugLog logs a message at debug level
func DebugLog(format string, args ...interface{}) {
	log.Debug().Msgf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	log.Error().Msgf(format, args...)
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	log.Warn().Msgf(format, args...)
}

// LogImageProcessed logs when an image is processed
func LogImageProcessed(path string, success bool, errMsg string) {
	if success {
		log.Debug().Str("path", path).Msg("processed")
	} else {
		log.Warn().Str("path", path).Str("error", errMsg).Msg("failed")
	}
}
