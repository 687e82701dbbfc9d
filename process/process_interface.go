package process

// Platform is implemented once per host OS. It finds and opens processes; the
// memory layer never touches OS APIs directly.
type Platform interface {
	// FindProcessByName returns every running process whose name matches (see MatchName)
	FindProcessByName(name string) ([]ProcessInfo, error)

	// Open opens a handle with full access rights to the process
	Open(pid ProcessID) (Handle, error)

	// IsRunning reports whether pid still refers to a live, non-zombie process named name.
	// It never fails: absence, access denial and zombies all report false.
	IsRunning(pid ProcessID, name string) bool
}

// Handle is an open, exclusively owned reference to another process.
// A Handle must tolerate Close racing with ReadMemory by returning an error
// wrapping ErrHandleInvalid from the read instead of crashing.
type Handle interface {
	// PID returns the process ID the handle was opened for
	PID() ProcessID

	// PointerWidth returns 4 when the target runs in a narrower addressing mode than the host
	PointerWidth() PointerWidth

	// FindModule enumerates loaded modules and returns the one matching name
	FindModule(name string) (Module, error)

	// ReadMemory performs exactly one device read into buf and returns the number of bytes copied
	ReadMemory(addr ProcessMemoryAddress, buf []byte) (int, error)

	// Close releases the handle. Calling it more than once is a no-op.
	Close() error
}
