//go:build linux

package memory_map

import (
	"os"
	"path/filepath"
	"strconv"
)

// ReadMemoryMapAt reads and parses <procRoot>/<pid>/maps, normally /proc/<pid>/maps
func ReadMemoryMapAt(procRoot string, pid int) ([]MemoryMapItem, error) {
	file, err := os.Open(filepath.Join(procRoot, strconv.Itoa(pid), "maps"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}
