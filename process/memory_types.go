package process

import (
	"fmt"
	"math"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// PointerWidth is the size in bytes of a pointer in the target process
type PointerWidth int

const (
	PointerWidth32 PointerWidth = 4
	PointerWidth64 PointerWidth = 8
)

// MaxAddress is the highest address representable with this pointer width.
func (w PointerWidth) MaxAddress() ProcessMemoryAddress {
	if w == PointerWidth32 {
		return math.MaxUint32
	}
	return math.MaxUint64
}

// MaxPlausibleAddress bounds pointers found while walking a chain. 64-bit
// targets only use the low 48 bits of the virtual address space.
func (w PointerWidth) MaxPlausibleAddress() ProcessMemoryAddress {
	if w == PointerWidth32 {
		return math.MaxUint32
	}
	return 1<<48 - 1
}

func (w PointerWidth) String() string {
	switch w {
	case PointerWidth32:
		return "32-bit"
	case PointerWidth64:
		return "64-bit"
	default:
		return fmt.Sprintf("PointerWidth(%d)", int(w))
	}
}
