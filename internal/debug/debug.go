package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/lcs/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// Component tags used across the code base.
const (
	ComponentSearch  = "SEARCH"
	ComponentHost    = "HOST"
	ComponentSession = "SESSION"
	ComponentWatch   = "WATCH"
	ComponentConfig  = "CONFIG"
)

var (
	// quietMode suppresses every write while a full-screen UI owns the terminal
	quietMode bool

	debugOutput io.Writer = os.Stderr
	debugFile   *os.File
	debugMutex  sync.Mutex
)

// SetQuietMode enables or disables quiet mode. In quiet mode nothing is
// written, regardless of the debug switches.
func SetQuietMode(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	quietMode = enabled
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile redirects debug output to a timestamped file in the temp
// directory and returns its path. Call CloseDebugLog when done.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "lcs-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled reports whether debug output is switched on, either by the
// build flag or by DEBUG=1 / DEBUG=true in the environment.
func IsDebugEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

// writer returns the current debug writer, or nil when nothing should be written.
func writer() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	if quietMode {
		return nil
	}
	return debugOutput
}

// Log writes a component-tagged debug line.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	fmt.Fprintf(w, "[DEBUG:%s] %s", component, msg)
}

// LogSearch logs executor and pattern matcher activity.
func LogSearch(format string, args ...interface{}) {
	Log(ComponentSearch, format, args...)
}

// LogHost logs connection handling in the host process.
func LogHost(format string, args ...interface{}) {
	Log(ComponentHost, format, args...)
}

// LogSession logs session controller activity.
func LogSession(format string, args ...interface{}) {
	Log(ComponentSession, format, args...)
}

// LogWatch logs file watcher activity.
func LogWatch(format string, args ...interface{}) {
	Log(ComponentWatch, format, args...)
}

// LogConfig logs configuration loading.
func LogConfig(format string, args ...interface{}) {
	Log(ComponentConfig, format, args...)
}

// Warn writes a warning regardless of the debug switches. Quiet mode still
// suppresses it.
func Warn(format string, args ...interface{}) {
	w := writer()
	if w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	fmt.Fprintf(w, "[WARN] %s", msg)
}
