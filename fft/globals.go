package internal

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

var (
	DefaultAppName        = "fft"
	DefaultAppCMDShortCut = "fft"
	// DefaultConfigPath is the per-user config directory
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultSystemConfig   = filepath.Join("/etc", DefaultAppName)
	DefaultConfigName     = "config"
	DefaultEnvPrefix      = "FFT"
	DefaultOutputPath     = "fast_file_tracker.sqlite3"
	DefaultRootDir        = "."
	DefaultLogLevel       = "info"
	DefaultHashPolicy     = "skip"
	DefaultReadBufferSize = 8 * 1024
	DefaultPathCapacity   = 1_500_000

	// Default Database settings
	DefaultDatabaseDSN  = "file::memory:" // one connection, so no shared cache needed
	DefaultDatabaseType = "libsql"
)

// DefaultHashWorkers is the hashing worker count used when none is configured.
func DefaultHashWorkers() int {
	return runtime.NumCPU()
}

// DefaultWalkWorkers is the per-level directory reader count: CPU cores * 2
// for I/O bound reads, clamped to [4, 32].
func DefaultWalkWorkers() int {
	return min(max(runtime.NumCPU()*2, 4), 32)
}

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// NewLogger returns a timestamped logger writing to w at the given level.
// Unknown or empty levels fall back to info.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
