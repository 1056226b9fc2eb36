package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panduza/pza/pkg/errors"
	"github.com/panduza/pza/pkg/paths"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component names used with filters
const (
	ComponentBroker   = "broker"
	ComponentMQTT     = "mqtt"
	ComponentRegistry = "registry"
	ComponentConfig   = "config"
)

var (
	stateMu         sync.RWMutex
	componentLevels = map[string]zerolog.Level{}
	displayTarget   = true
)

// Builder assembles the global logger: a base level plus per component
// filters such as "broker=off" or "mqtt=debug".
type Builder struct {
	level         zerolog.Level
	filters       []string
	displayTarget bool
	logFile       string
	out           io.Writer
	caller        bool
}

// NewBuilder returns a builder at info level that displays component names
func NewBuilder() *Builder {
	return &Builder{
		level:         zerolog.InfoLevel,
		displayTarget: true,
		out:           os.Stderr,
	}
}

// WithLevel sets the base level
func (b *Builder) WithLevel(level zerolog.Level) *Builder {
	b.level = level
	return b
}

// DisplayTarget controls whether the component field is attached to records
func (b *Builder) DisplayTarget(display bool) *Builder {
	b.displayTarget = display
	return b
}

// AddFilter adds a "component=level" filter. "off" silences the component.
func (b *Builder) AddFilter(filter string) *Builder {
	b.filters = append(b.filters, filter)
	return b
}

// FilterBroker silences the embedded broker
func (b *Builder) FilterBroker() *Builder {
	return b.AddFilter(ComponentBroker + "=off")
}

// FilterMQTT silences the MQTT client wrapper
func (b *Builder) FilterMQTT() *Builder {
	return b.AddFilter(ComponentMQTT + "=off")
}

// WithLogFile tees records into path, created if missing
func (b *Builder) WithLogFile(path string) *Builder {
	b.logFile = path
	return b
}

// WithOutput replaces the console writer destination
func (b *Builder) WithOutput(w io.Writer) *Builder {
	b.out = w
	return b
}

// WithCaller adds caller information to every record
func (b *Builder) WithCaller(caller bool) *Builder {
	b.caller = caller
	return b
}

// Build installs the global logger
func (b *Builder) Build() error {
	levels := make(map[string]zerolog.Level, len(b.filters))
	for _, filter := range b.filters {
		name, lvl, err := parseFilter(filter)
		if err != nil {
			return err
		}
		levels[name] = lvl
	}

	// The global level must let through the most verbose component,
	// the base logger then narrows back to the requested level.
	global := b.level
	for _, lvl := range levels {
		if lvl != zerolog.Disabled && lvl < global {
			global = lvl
		}
	}
	zerolog.SetGlobalLevel(global)

	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:          b.out,
		NoColor:      b.out != os.Stderr,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}}

	var fileErr error
	if b.logFile != "" {
		f, err := setupLogFile(b.logFile)
		if err != nil {
			fileErr = err
		} else {
			writers = append(writers, f)
		}
	}

	ctx := zerolog.New(io.MultiWriter(writers...)).Level(b.level).With().Timestamp()
	if b.caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	stateMu.Lock()
	componentLevels = levels
	displayTarget = b.displayTarget
	stateMu.Unlock()

	if fileErr != nil {
		log.Warn().Err(fileErr).Str("path", b.logFile).Msg("Failed to create log file, logging to console only")
	}
	return nil
}

// SetupLogger configures the global logger based on verbosity level
// It sets up dual output to both console and a log file
func SetupLogger(verbosity int) {
	b := NewBuilder().
		WithLevel(VerbosityLevel(verbosity)).
		WithLogFile(paths.DefaultLogFilePath()).
		WithCaller(verbosity >= 2)

	// no filters, Build cannot fail
	_ = b.Build()

	log.Debug().Int("verbosity", verbosity).Str("logFile", b.logFile).Msg("Logger initialized")
}

// VerbosityLevel maps a -v count to a level
func VerbosityLevel(verbosity int) zerolog.Level {
	switch verbosity {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	case 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// ParseLevel parses error, warn, info, debug, trace or off
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "disabled":
		return zerolog.Disabled, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "":
		return zerolog.InfoLevel, nil
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, errors.Newf(errors.ErrInvalidInput, "unknown log level %q", s)
	}
	return lvl, nil
}

func parseFilter(filter string) (string, zerolog.Level, error) {
	name, levelStr, ok := strings.Cut(filter, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", zerolog.NoLevel, errors.Newf(errors.ErrInvalidInput, "invalid log filter %q, want component=level", filter)
	}

	lvl, err := ParseLevel(levelStr)
	if err != nil {
		return "", zerolog.NoLevel, err
	}
	return name, lvl, nil
}

// ComponentLevel returns the level a component logs at
func ComponentLevel(name string) zerolog.Level {
	stateMu.RLock()
	defer stateMu.RUnlock()

	if lvl, ok := componentLevels[name]; ok {
		return lvl
	}
	return log.Logger.GetLevel()
}

// IsSilenced reports whether a component was filtered off
func IsSilenced(name string) bool {
	return ComponentLevel(name) == zerolog.Disabled
}

// GetLogger returns a contextualized logger with the given name
func GetLogger(name string) zerolog.Logger {
	stateMu.RLock()
	lvl, filtered := componentLevels[name]
	display := displayTarget
	stateMu.RUnlock()

	logger := log.Logger
	if display {
		logger = logger.With().Str("component", name).Logger()
	}
	if filtered {
		logger = logger.Level(lvl)
	}
	return logger
}

// WithFields returns a logger with additional fields
func WithFields(fields map[string]interface{}) zerolog.Logger {
	logger := log.Logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return logger
}

// setupLogFile creates the log file and its parent directories
func setupLogFile(logPath string) (*os.File, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return file, nil
}

// Must logs a fatal error and exits if err is not nil
func Must(err error, msg string) {
	if err != nil {
		log.Fatal().Err(err).Msg(msg)
	}
}

// LogOperationStart logs the start of an operation and returns a function to log its completion
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().
		Str("operation", operation).
		Msg("Operation started")

	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}
