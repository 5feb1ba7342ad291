package cardio

import (
	"log"
	"os"
	"sync"

	"github.com/natefinch/lumberjack"
)

// LogConfig is the [logging] table of the server TOML configuration.  Sizes are in
// megabytes and ages in days.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"`
	MaxAge  int `toml:"max_log_age"`
}

var (
	logFileMu sync.Mutex
	logFile   *lumberjack.Logger
)

// SetLogger switches log output to a rotated file if one is configured.
func (c *LogConfig) SetLogger() {
	if c == nil || c.Logfile == "" {
		Infof("No log file configured, logging to stderr.\n")
		return
	}
	rotated := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize,
		MaxAge:   c.MaxAge,
	}
	Infof("Switching log output to %s\n", c.Logfile)

	logFileMu.Lock()
	prev := logFile
	logFile = rotated
	log.SetOutput(rotated)
	logFileMu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// Shutdown closes the log file, if any, and returns output to stderr.
func Shutdown() {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile == nil {
		return
	}
	Infof("Closing log file %s\n", logFile.Filename)
	log.SetOutput(os.Stderr)
	logFile.Close()
	logFile = nil
}
