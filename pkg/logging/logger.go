package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrAlreadyInitialized is returned by Init when a logger is already set up.
var ErrAlreadyInitialized = errors.New("logger already initialized; call Close() first to reinitialize")

// LogLevel is a level name as it appears in the [log] config section.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// Config selects the destination and encoding of the process logger.
type Config struct {
	Level      LogLevel
	OutputPath string    // empty means stderr
	Format     string    // "json" or "text"
	Writer     io.Writer // wins over OutputPath; used by tests
}

// ParseLevel converts a case-insensitive level name from configuration.
// Unknown names fall back to INFO.
func ParseLevel(name string) LogLevel {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := slogLevels[level]; ok {
		return level
	}
	return LevelInfo
}

// state is the single process logger plus the file it may own.
var state struct {
	sync.RWMutex
	logger *slog.Logger
	file   *os.File
}

// Init installs the process logger. A second call without Close in between
// fails with ErrAlreadyInitialized.
//
//	logging.Init(logging.Config{Level: logging.LevelInfo, OutputPath: "data/cipherdb.log", Format: "json"})
func Init(config Config) error {
	state.Lock()
	defer state.Unlock()

	if state.logger != nil {
		return ErrAlreadyInitialized
	}

	writer, file, err := openWriter(config)
	if err != nil {
		return err
	}

	level, ok := slogLevels[config.Level]
	if !ok {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(writer, opts)
	if config.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	}

	state.logger = slog.New(handler)
	state.file = file
	return nil
}

func openWriter(config Config) (io.Writer, *os.File, error) {
	if config.Writer != nil {
		return config.Writer, nil, nil
	}
	if config.OutputPath == "" {
		return os.Stderr, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0o750); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return file, file, nil
}

// Close drops the process logger and closes its file, if any. Init may be
// called again afterwards.
func Close() error {
	state.Lock()
	defer state.Unlock()

	var err error
	if state.file != nil {
		err = state.file.Close()
	}
	state.logger, state.file = nil, nil
	return err
}

// GetLogger returns the process logger, installing an INFO text logger on
// stderr when Init has not run.
func GetLogger() *slog.Logger {
	state.RLock()
	logger := state.logger
	state.RUnlock()
	if logger != nil {
		return logger
	}

	state.Lock()
	defer state.Unlock()
	if state.logger == nil {
		state.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return state.logger
}

func Debug(msg string, args ...any) { GetLogger().Debug(msg, args...) }
func Info(msg string, args ...any)  { GetLogger().Info(msg, args...) }
func Warn(msg string, args ...any)  { GetLogger().Warn(msg, args...) }
func Error(msg string, args ...any) { GetLogger().Error(msg, args...) }
