package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mickamy/forumdb/internal/config"
)

const timeFormat = "2006-01-02 15:04:05"

// Apply sets the global log level and output writers: console, plus a
// rotating file when cfg.File is set. It returns the configured logger,
// which is also installed as log.Logger.
func Apply(cfg config.LoggingConfig, console io.Writer) zerolog.Logger {
	applyLevel(cfg.Level)

	if console == nil {
		console = os.Stderr
	}
	consoleOutput := zerolog.ConsoleWriter{Out: console, TimeFormat: timeFormat}
	log.Logger = zerolog.New(consoleOutput).With().Timestamp().Logger()

	if cfg.File == "" {
		return log.Logger
	}

	if err := ensureLogDir(cfg.File); err != nil {
		log.Error().Err(err).Str("path", cfg.File).Msg("Failed to prepare log directory; logging to console only")
		return log.Logger
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	fileConsole := zerolog.ConsoleWriter{
		Out:        fileWriter,
		TimeFormat: timeFormat,
		NoColor:    true,
	}

	multi := zerolog.MultiLevelWriter(consoleOutput, fileConsole)
	log.Logger = zerolog.New(multi).With().Timestamp().Logger()
	return log.Logger
}

func applyLevel(level string) {
	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// QueryLogger writes every executed statement at debug level. A logger
// attached to the context with zerolog's WithContext takes precedence.
// It satisfies orm.Logger.
type QueryLogger struct {
	Logger zerolog.Logger
}

func (l QueryLogger) Log(ctx context.Context, query string, args ...any) {
	logger := l.Logger
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger.GetLevel() != zerolog.Disabled {
		logger = *ctxLogger
	}
	logger.Debug().Str("query", query).Interface("args", args).Msg("executing statement")
}
