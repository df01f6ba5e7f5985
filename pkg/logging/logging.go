// Package logging builds the zap logger shared by all codepack commands.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// Setup builds a logger for the requested verbosity level.
// Verbosity 0 logs at Info with production encoding, 1 (-v) switches to Debug,
// and 2 (-vv) additionally uses the development config for human-readable
// per-path trace output. When logFile is non-empty, all log output is also
// written to that file.
func Setup(verbosity int, logFile string) (*zap.Logger, error) {
	var cfg zap.Config

	if verbosity >= 2 {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		if verbosity >= 1 {
			cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
	}

	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, logFile)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}

// SafeSync flushes the logger, suppressing the spurious "invalid argument"
// error zap returns when stderr is neither a terminal nor a regular file.
func SafeSync(logger *zap.Logger) {
	if logger == nil {
		return
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) && !isRegularFile(os.Stderr) {
		return
	}
	if err := logger.Sync(); err != nil {
		if !strings.Contains(strings.ToLower(err.Error()), "invalid argument") {
			logger.Error("logger sync failed", zap.Error(err))
		}
	}
}

// isRegularFile checks if the given file is a regular file.
func isRegularFile(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return fileInfo.Mode().IsRegular()
}
