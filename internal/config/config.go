// Package config loads mokit settings from MOKIT_* environment variables and an optional
// .mokit.yaml file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configBaseName = ".mokit"
	configFileName = configBaseName + ".yaml"

	envPrefix = "MOKIT"

	debugKey         = "debug"
	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"
	generatorNameKey = "generate.name"
	generatorOutKey  = "generate.output"

	defaultLogLevel      = "info"
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
	defaultGeneratorName = "MokitModule"
	defaultGeneratorOut  = "generated_mokit_module.go"
)

// Config holds the resolved settings.
type Config struct {
	// Debug turns on debug logging of bind, reset and validate events.
	Debug bool
	// Log configures where and how much is logged.
	Log Log
	// Generate holds defaults for the module table generator.
	Generate Generate
}

// Logger builds a logger from the configuration. With a log file configured, output goes to
// a rotating file; otherwise it goes to fallback. Without debug and without a file, the logger
// discards everything.
func (c Config) Logger(fallback io.Writer) *slog.Logger {
	level := ParseLevel(c.Log.Level, slog.LevelInfo)
	if c.Debug {
		level = slog.LevelDebug
	}

	var writer io.Writer

	switch {
	case strings.TrimSpace(c.Log.Filename) != "":
		writer = c.Log.Writer()
	case c.Debug && fallback != nil:
		writer = fallback
	default:
		return slog.New(slog.DiscardHandler)
	}

	return slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}))
}

// Generate holds generator defaults.
type Generate struct {
	// Name is the variable the generated module table is assigned to.
	Name string
	// Output is the generated file name.
	Output string
}

// Log configures logging. Filename, when set, selects a rotating log file.
type Log struct {
	Filename   string
	Level      string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Writer returns the rotating writer for l.Filename. Every call for the same file returns the
// same writer, so one process holds one descriptor and one rotator per log file. The rotation
// settings of the first call win.
func (l Log) Writer() io.Writer {
	path := l.Filename
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	fileWritersMu.Lock()
	defer fileWritersMu.Unlock()

	if writer, ok := fileWriters[path]; ok {
		return writer
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
	}
	fileWriters[path] = writer

	return writer
}

// Default returns the configuration of the working directory, loaded once per process.
// A malformed config file yields the defaults.
func Default() Config {
	return loadDefault()
}

// Load reads the environment and, if present, dir/.mokit.yaml.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName(configBaseName)
	v.SetConfigType("yaml")
	v.SetConfigFile(filepath.Join(dir, configFileName))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(debugKey, false)
	v.SetDefault(logFilenameKey, "")
	v.SetDefault(logLevelKey, defaultLogLevel)
	v.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	v.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	v.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	v.SetDefault(logCompressKey, defaultLogCompress)
	v.SetDefault(generatorNameKey, defaultGeneratorName)
	v.SetDefault(generatorOutKey, defaultGeneratorOut)

	if err := v.ReadInConfig(); err != nil && !isMissingConfig(err) {
		return fromViper(v), fmt.Errorf("reading %s: %w", configFileName, err)
	}

	return fromViper(v), nil
}

// ParseLevel parses a level name (debug, info, warn, error) or a numeric slog level.
func ParseLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))

	switch level {
	case "":
		return defaultLevel
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// unexported variables.
var (
	//nolint:gochecknoglobals // one rotator per log file for the whole process
	fileWriters = make(map[string]*lumberjack.Logger)
	//nolint:gochecknoglobals // guards fileWriters
	fileWritersMu sync.Mutex
	//nolint:gochecknoglobals // process-wide configuration, read once
	loadDefault = sync.OnceValue(func() Config {
		cfg, _ := Load(".")

		return cfg
	})
)

func fromViper(v *viper.Viper) Config {
	return Config{
		Debug: v.GetBool(debugKey),
		Log: Log{
			Filename:   v.GetString(logFilenameKey),
			Level:      v.GetString(logLevelKey),
			MaxSize:    v.GetInt(logMaxSizeKey),
			MaxBackups: v.GetInt(logMaxBackupsKey),
			MaxAge:     v.GetInt(logMaxAgeKey),
			Compress:   v.GetBool(logCompressKey),
		},
		Generate: Generate{
			Name:   v.GetString(generatorNameKey),
			Output: v.GetString(generatorOutKey),
		},
	}
}

func isMissingConfig(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}

	// SetConfigFile bypasses the search, so a missing file surfaces as a path error.
	return errors.Is(err, fs.ErrNotExist)
}
