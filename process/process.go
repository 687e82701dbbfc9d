// Package process provides the types, interfaces and errors shared by the
// platform specific process packages and the memory layer.
package process

import (
	"errors"
	"fmt"
)

// Types are split across files:
// - types.go: ProcessID, ProcessInfo, Module
// - process_state.go: ProcessState constants
// - memory_types.go: ProcessMemoryAddress, ProcessMemorySize, PointerWidth
// - process_interface.go: Platform and Handle interfaces

var (
	// ErrProcessNotFound is returned when no running process matches the requested name.
	ErrProcessNotFound = errors.New("process not found")

	// ErrMemoryAccess covers OS level open, read and enumeration failures.
	ErrMemoryAccess = errors.New("memory access error")

	// ErrInvalidAddress is returned for addresses outside the range the target can address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrBlockedAddress is returned for addresses inside a configured blocked region.
	ErrBlockedAddress = errors.New("address is in a blocked region")

	// ErrNotConnected is returned when an operation requiring a live connection is attempted
	// and no connection could be (re)established.
	ErrNotConnected = errors.New("not connected")

	// ErrHandleInvalid means the handle or the process behind it is gone. Reads failing with it
	// escalate to a reconnect instead of a plain retry.
	ErrHandleInvalid = fmt.Errorf("%w: handle is invalid", ErrMemoryAccess)

	// ErrShortRead is returned when the OS copied fewer bytes than requested.
	ErrShortRead = fmt.Errorf("%w: short read", ErrMemoryAccess)

	// ErrModuleNotFound is returned when module enumeration succeeds but no module matches.
	ErrModuleNotFound = fmt.Errorf("%w: module not found", ErrMemoryAccess)
)
