package process

import (
	"fmt"
	"strings"
)

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID   ProcessID    // Process ID
	PPID  ProcessID    // Parent Process ID
	Name  string       // Process name (comm on Linux, image name on Windows)
	Exe   string       // Path to the executable, may be empty
	State ProcessState // Process state (R, S, D, Z, etc.), empty when the OS does not report one
}

// Module describes a loaded image inside a process
type Module struct {
	Name string
	Base ProcessMemoryAddress
	Size ProcessMemorySize
}

func (m Module) String() string {
	return fmt.Sprintf("%s base=%s size=%s", m.Name, m.Base.ToString(), m.Size.ToString())
}

// Contains reports whether addr lies inside the module image
func (m Module) Contains(addr ProcessMemoryAddress) bool {
	return addr >= m.Base && uint64(addr) < uint64(m.Base)+uint64(m.Size)
}

// MatchName compares process or module names the way Windows does, ignoring case.
// Linux truncates comm to 15 bytes, so a comm that is a prefix of a longer name also matches.
func MatchName(candidate, name string) bool {
	if candidate == "" || name == "" {
		return false
	}
	if strings.EqualFold(candidate, name) {
		return true
	}
	const commLen = 15
	return len(candidate) == commLen && len(name) > commLen && strings.EqualFold(candidate, name[:commLen])
}
