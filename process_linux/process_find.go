//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gamemem/process"
)

// FindProcessByName finds processes whose comm or executable base name matches name.
// Matching ignores case. The result is ordered by PID so the lowest PID comes first.
func (l *LinuxPlatform) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty process name", process.ErrProcessNotFound)
	}

	entries, err := os.ReadDir(l.procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.procRoot, err)
	}

	selfPID := os.Getpid()
	var results []process.ProcessInfo

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			// Not a PID directory
			continue
		}
		if pid == selfPID {
			continue
		}

		info, err := l.getProcessInfo(process.ProcessID(pid))
		if err != nil {
			// Process may have terminated while we were reading
			continue
		}

		if matchesProcess(info, name) {
			results = append(results, *info)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PID < results[j].PID
	})

	return results, nil
}

// IsRunning reconfirms pid is alive, not a zombie, and still carries the expected name.
func (l *LinuxPlatform) IsRunning(pid process.ProcessID, name string) bool {
	if pid <= 0 {
		return false
	}

	info, err := l.getProcessInfo(pid)
	if err != nil {
		return false
	}

	if !info.State.IsAlive() {
		return false
	}

	return matchesProcess(info, name)
}

func matchesProcess(info *process.ProcessInfo, name string) bool {
	if process.MatchName(info.Name, name) {
		return true
	}
	// comm is truncated and wine renames it, the exe link keeps the full name
	return info.Exe != "" && process.MatchName(filepath.Base(info.Exe), name)
}

// Helper function to get process information
func (l *LinuxPlatform) getProcessInfo(pid process.ProcessID) (*process.ProcessInfo, error) {
	procPath := filepath.Join(l.procRoot, strconv.Itoa(int(pid)))

	// Read process name from /proc/<pid>/comm
	nameBytes, err := os.ReadFile(filepath.Join(procPath, "comm"))
	if err != nil {
		return nil, fmt.Errorf("failed to read process name: %w", err)
	}
	name := strings.TrimSpace(string(nameBytes))

	// Read executable path from /proc/<pid>/exe symlink, may fail if zombie or permission
	exe, err := os.Readlink(filepath.Join(procPath, "exe"))
	if err != nil {
		exe = ""
	}

	var (
		ppid  process.ProcessID    = 0
		state process.ProcessState = ""
	)

	statusBytes, err := os.ReadFile(filepath.Join(procPath, "status"))
	if err == nil {
		for _, line := range strings.Split(string(statusBytes), "\n") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			switch key {
			case "PPid":
				if ppidVal, err := strconv.Atoi(value); err == nil {
					ppid = process.ProcessID(ppidVal)
				}
			case "State":
				if len(value) > 0 {
					state = process.ProcessState(value[0:1]) // First character is the state code
				}
			}
		}
	}

	return &process.ProcessInfo{
		PID:   pid,
		PPID:  ppid,
		Name:  name,
		Exe:   exe,
		State: state,
	}, nil
}
