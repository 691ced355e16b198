package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/chargectl/internal/errors"
	"github.com/rs/zerolog"
)

var (
	mu        sync.RWMutex
	log       = zerolog.New(os.Stdout).With().Timestamp().Logger()
	isService bool
)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger with the given level name and output mode.
func Init(level string, service bool) {
	mu.Lock()
	isService = service
	mu.Unlock()

	SetOutput(os.Stdout)
	SetLogLevel(ParseLevel(level))
}

// SetOutput redirects log output, keeping the console formatting.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()
}

// ParseLevel maps a configured level name to a LogLevel. Unknown names map
// to InfoLevel; config validation rejects them before this point.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warning", "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{current().Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{current().Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{current().Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{current().Error()}
}

// ErrorWithCode logs an error message with its error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{current().Error().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{current().Fatal()}
}

// FatalWithCode logs a fatal message with its error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{current().Fatal().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

type packageLogger struct{}

// Default returns a Logger backed by the package-level logger.
func Default() Logger {
	return packageLogger{}
}

func (packageLogger) Debug() *LogEvent { return Debug() }
func (packageLogger) Info() *LogEvent  { return Info() }
func (packageLogger) Warn() *LogEvent  { return Warn() }
func (packageLogger) Error() *LogEvent { return Error() }

func (packageLogger) ErrorWithCode(err errors.Error) *LogEvent { return ErrorWithCode(err) }

type zeroLogger struct {
	l zerolog.Logger
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return FromZerolog(zerolog.Nop())
}

// FromZerolog returns a Logger writing to l instead of the package-level
// logger.
func FromZerolog(l zerolog.Logger) Logger {
	return zeroLogger{l: l}
}

func (z zeroLogger) Debug() *LogEvent { return &LogEvent{z.l.Debug()} }
func (z zeroLogger) Info() *LogEvent  { return &LogEvent{z.l.Info()} }
func (z zeroLogger) Warn() *LogEvent  { return &LogEvent{z.l.Warn()} }
func (z zeroLogger) Error() *LogEvent { return &LogEvent{z.l.Error()} }

func (z zeroLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{z.l.Error().Str("error_code", string(err.Code()))}
}
