package logging

import (
	"os"
	"path/filepath"
)

// LogFileName is the name of the active log file inside a log directory.
const LogFileName = "artifactidx.log"

// DefaultLogDir returns the default log directory (~/.artifactidx/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".artifactidx", "logs")
	}
	return filepath.Join(home, ".artifactidx", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), LogFileName)
}
