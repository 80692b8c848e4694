package receiver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// commLength is the executable name length kept by the Linux process table.
const commLength = 15

// currentProcessName returns the base name of the running executable.
func currentProcessName() string {
	path, err := os.Executable()
	if err != nil {
		path = os.Args[0]
	}

	return filepath.Base(path)
}

// peerProcessRunning reports whether a process other than this one runs an
// executable called name.
func peerProcessRunning(name string) bool {
	if name == "" {
		return false
	}

	processList, err := ps.Processes()
	if err != nil {
		return false
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if matchesExecutable(process.Executable(), name) {
			return true
		}
	}

	return false
}

// matchesExecutable compares a process table name with an executable name,
// allowing for the truncated names Linux reports.
func matchesExecutable(processName, name string) bool {
	name = strings.TrimSuffix(name, ".exe")
	processName = strings.TrimSuffix(processName, ".exe")

	if processName == name {
		return true
	}

	return len(name) > commLength && len(processName) == commLength && strings.HasPrefix(name, processName)
}
