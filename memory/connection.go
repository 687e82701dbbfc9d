package memory

import (
	"sync"
	"time"

	"gamemem/process"
)

// State of a Connection
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Connection is the live link to one target process. It is created by a
// Connector and reconnected in place; the Reader and Monitor share it.
type Connection struct {
	mu sync.RWMutex

	name               string
	state              State
	pid                process.ProcessID
	handle             process.Handle
	module             process.Module
	hasModule          bool
	width              process.PointerWidth
	lastConnectAttempt time.Time
	reconnecting       bool

	// generation changes on every Disconnect; a dial started under an older
	// generation must not install its handle
	generation uint64

	cache *readCache
}

// NewConnection creates a disconnected Connection for the named process.
// cacheSize bounds the number of cached reads.
func NewConnection(name string, cacheSize int) *Connection {
	return &Connection{
		name:  name,
		state: StateDisconnected,
		width: process.PointerWidth64,
		cache: newReadCache(cacheSize),
	}
}

func (c *Connection) Name() string {
	return c.name
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) Connected() bool {
	return c.State() == StateConnected
}

func (c *Connection) PID() process.ProcessID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pid
}

func (c *Connection) PointerWidth() process.PointerWidth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width
}

// BaseAddress returns the main module's load address when it was found
func (c *Connection) BaseAddress() (process.ProcessMemoryAddress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.module.Base, c.hasModule
}

// Module returns the main module when it was found
func (c *Connection) Module() (process.Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.module, c.hasModule
}

func (c *Connection) LastConnectAttempt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastConnectAttempt
}

// CacheLen reports the number of cached reads
func (c *Connection) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.len()
}

// releaseLocked closes the handle and marks the connection disconnected.
// c.mu must be held for writing.
func (c *Connection) releaseLocked() error {
	var err error
	if c.handle != nil {
		err = c.handle.Close()
		c.handle = nil
	}
	c.state = StateDisconnected
	return err
}
