package observability

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Verbosity levels accepted on the command line.
const (
	LevelQuiet   = -1
	LevelError   = 0
	LevelWarning = 1
	LevelInfo    = 2
)

const (
	ansiRed    = "\033[38;5;9m"
	ansiGreen  = "\033[38;5;10m"
	ansiYellow = "\033[38;5;11m"
	ansiBold   = "\033[1m"
	ansiReset  = "\033[0m"
)

// Logger is the run-scoped structured logger. It is built once at startup and
// handed to every component that logs.
type Logger struct {
	zerolog.Logger
	color bool
}

// NewLogger creates a console logger writing to w at the given verbosity
// (-1 quiet, 0 errors, 1 warnings, 2 info).
func NewLogger(w io.Writer, level int, color bool) (*Logger, error) {
	zlevel, err := zerologLevel(level)
	if err != nil {
		return nil, err
	}

	l := &Logger{color: color}
	output := zerolog.ConsoleWriter{
		Out:         w,
		NoColor:     !color,
		PartsOrder:  []string{zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatLevel: l.formatLevel,
	}
	l.Logger = zerolog.New(output).Level(zlevel)
	return l, nil
}

// NewStderrLogger is NewLogger bound to os.Stderr.
func NewStderrLogger(level int, color bool) (*Logger, error) {
	return NewLogger(os.Stderr, level, color)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithRunID returns a child logger tagged with a run identifier. An empty id
// generates a fresh one.
func (l *Logger) WithRunID(runID string) *Logger {
	if runID == "" {
		runID = NewRunID()
	}
	return &Logger{
		Logger: l.Logger.With().Str("run_id", runID).Logger(),
		color:  l.color,
	}
}

// NewRunID generates a new run identifier
func NewRunID() string {
	return uuid.New().String()
}

// Important logs a step header.
func (l *Logger) Important(msg string) {
	l.Info().Msg(l.paint(ansiBold, "> "+msg))
}

// Success logs the successful end of a step.
func (l *Logger) Success(msg string) {
	l.Info().Msg(l.paint(ansiGreen, "✔ "+msg))
}

func (l *Logger) paint(code, msg string) string {
	if !l.color {
		return msg
	}
	return code + msg + ansiReset
}

func (l *Logger) formatLevel(i interface{}) string {
	lvl, _ := i.(string)
	switch lvl {
	case zerolog.LevelWarnValue:
		return l.paint(ansiYellow, "⚠")
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return l.paint(ansiRed, "✖")
	default:
		// info lines carry their own marker in the message
		return ""
	}
}

func zerologLevel(level int) (zerolog.Level, error) {
	switch level {
	case LevelQuiet:
		return zerolog.Disabled, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	case LevelWarning:
		return zerolog.WarnLevel, nil
	case LevelInfo:
		return zerolog.InfoLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level %d: expected -1, 0, 1 or 2", level)
	}
}
