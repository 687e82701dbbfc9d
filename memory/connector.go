package memory

import (
	"errors"
	"fmt"

	"gamemem/config"
	"gamemem/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Option is a function that configures a Connector
type Option func(*Connector)

// WithClock replaces the wall clock used for throttling, caching and retry delays
func WithClock(clock Clock) Option {
	return func(c *Connector) {
		c.clock = clock
	}
}

// Connector opens, releases and reopens Connections through a Platform
type Connector struct {
	platform process.Platform
	cfg      *config.Config
	clock    Clock
	log      *logger.Logger
}

// NewConnector creates a Connector. cfg is read, never modified.
func NewConnector(platform process.Platform, cfg *config.Config, options ...Option) *Connector {
	c := &Connector{
		platform: platform,
		cfg:      cfg,
		clock:    realClock{},
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "connector")),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Connector) Config() *config.Config {
	return c.cfg
}

// NewConnection creates a disconnected Connection sized by the cache configuration
func (c *Connector) NewConnection(name string) *Connection {
	return NewConnection(name, c.cfg.Cache.Size)
}

// Connect finds the named process and opens it
func (c *Connector) Connect(name string) (*Connection, error) {
	conn := c.NewConnection(name)
	if err := c.Open(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Open (re)establishes conn in place, replacing any handle it holds
func (c *Connector) Open(conn *Connection) error {
	conn.mu.Lock()
	conn.lastConnectAttempt = c.clock.Now()
	gen := conn.generation
	conn.mu.Unlock()

	return c.open(conn, gen)
}

// open runs the enumeration with no lock held and installs the result under the
// lock, unless conn was disconnected since gen was read
func (c *Connector) open(conn *Connection, gen uint64) error {
	h, mod, hasModule, err := c.dial(conn.name)
	if err != nil {
		conn.mu.Lock()
		if conn.generation == gen {
			if cerr := conn.releaseLocked(); cerr != nil {
				c.log.Warn("Failed to close stale handle: ", cerr)
			}
		}
		conn.mu.Unlock()
		return err
	}

	conn.mu.Lock()
	if conn.generation != gen {
		conn.mu.Unlock()
		if cerr := h.Close(); cerr != nil {
			c.log.Warn("Failed to close abandoned handle: ", cerr)
		}
		return fmt.Errorf("%w: %s was disconnected while connecting", process.ErrNotConnected, conn.name)
	}
	if conn.handle != nil && conn.handle != h {
		if cerr := conn.handle.Close(); cerr != nil {
			c.log.Warn("Failed to close stale handle: ", cerr)
		}
	}
	conn.handle = h
	conn.pid = h.PID()
	conn.width = h.PointerWidth()
	conn.module = mod
	conn.hasModule = hasModule
	conn.cache.clear()
	conn.state = StateConnected
	conn.mu.Unlock()

	if hasModule {
		c.log.Infoln("Connected to", conn.name, "pid", h.PID(), "base", mod.Base.ToString(), "size", mod.Size.ToString(), h.PointerWidth().String())
	} else {
		c.log.Infoln("Connected to", conn.name, "pid", h.PID(), "without module base", h.PointerWidth().String())
	}
	return nil
}

func (c *Connector) dial(name string) (process.Handle, process.Module, bool, error) {
	infos, err := c.platform.FindProcessByName(name)
	if err != nil {
		if errors.Is(err, process.ErrProcessNotFound) {
			return nil, process.Module{}, false, err
		}
		return nil, process.Module{}, false, fmt.Errorf("%w: enumerating processes: %v", process.ErrMemoryAccess, err)
	}
	if len(infos) == 0 {
		return nil, process.Module{}, false, fmt.Errorf("%w: %s", process.ErrProcessNotFound, name)
	}

	pid := infos[0].PID
	if len(infos) > 1 {
		c.log.Debugln("Multiple processes match", name, "using pid", pid)
	}

	h, err := c.platform.Open(pid)
	if err != nil {
		if errors.Is(err, process.ErrMemoryAccess) {
			return nil, process.Module{}, false, err
		}
		return nil, process.Module{}, false, fmt.Errorf("%w: opening process %d: %v", process.ErrMemoryAccess, pid, err)
	}

	mod, err := h.FindModule(name)
	if err != nil {
		c.log.Warn("Could not get module base, pointer chains will use absolute offsets: ", err)
		return h, process.Module{}, false, nil
	}
	return h, mod, true, nil
}

// Disconnect releases the handle. It never fails and may be called repeatedly.
func (c *Connector) Disconnect(conn *Connection) {
	if conn == nil {
		return
	}

	conn.mu.Lock()
	wasConnected := conn.state == StateConnected
	conn.generation++
	err := conn.releaseLocked()
	conn.mu.Unlock()

	if err != nil {
		c.log.Warn("Error closing process handle: ", err)
	}
	if wasConnected {
		c.log.Infoln("Disconnected from", conn.name)
	}
}

// IsRunning reports whether the recorded pid still names a live process called conn's name
func (c *Connector) IsRunning(conn *Connection) bool {
	if conn == nil {
		return false
	}
	pid := conn.PID()
	if pid <= 0 {
		return false
	}
	return c.platform.IsRunning(pid, conn.name)
}

// TryReconnect makes at most one connection attempt per reconnect interval. Every
// caller shares conn's throttle. It reports whether conn is connected afterwards.
func (c *Connector) TryReconnect(conn *Connection) bool {
	now := c.clock.Now()

	conn.mu.Lock()
	if conn.state == StateConnected {
		conn.mu.Unlock()
		return true
	}
	if conn.reconnecting {
		conn.mu.Unlock()
		return false
	}
	if !conn.lastConnectAttempt.IsZero() && now.Sub(conn.lastConnectAttempt) < c.cfg.Reconnect.Interval {
		conn.mu.Unlock()
		return false
	}
	conn.lastConnectAttempt = now
	conn.reconnecting = true
	gen := conn.generation
	if err := conn.releaseLocked(); err != nil {
		c.log.Warn("Failed to close stale handle: ", err)
	}
	conn.mu.Unlock()

	c.log.Debugln("Attempting to reconnect to", conn.name)
	err := c.open(conn, gen)

	conn.mu.Lock()
	conn.reconnecting = false
	conn.mu.Unlock()

	if err != nil {
		c.log.Warn("Reconnection attempt failed: ", err)
		return false
	}
	c.log.Infoln("Reconnected to", conn.name)
	return true
}

// invalidate releases conn's handle after its process or handle was found dead
func (c *Connector) invalidate(conn *Connection, cause error) {
	conn.mu.Lock()
	wasConnected := conn.state == StateConnected
	err := conn.releaseLocked()
	conn.mu.Unlock()

	if err != nil {
		c.log.Warn("Error closing process handle: ", err)
	}
	if wasConnected {
		c.log.Warn("Connection to ", conn.name, " lost: ", cause)
	}
}
