package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const monitorStopTimeout = time.Second

// Monitor watches a Connection in the background: it drops the connection when
// the process exits and reconnects once the process is back.
type Monitor struct {
	conn      *Connection
	connector *Connector
	poll      time.Duration
	check     time.Duration
	onChange  func(State)
	log       *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// MonitorOption is a function that configures a Monitor
type MonitorOption func(*Monitor)

// WithStateListener registers fn to be called after every transition the monitor makes
func WithStateListener(fn func(State)) MonitorOption {
	return func(m *Monitor) {
		m.onChange = fn
	}
}

func NewMonitor(conn *Connection, connector *Connector, options ...MonitorOption) *Monitor {
	m := &Monitor{
		conn:      conn,
		connector: connector,
		poll:      connector.cfg.Reconnect.Poll,
		check:     connector.cfg.Reconnect.Check,
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "monitor")),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Start launches the monitor goroutine. Calling it while running does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx, m.done)
	m.log.Infoln("Started reconnection monitor for", m.conn.name)
}

// Stop cancels the goroutine and waits up to one second for it to finish
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if done == nil {
		return
	}

	cancel()
	select {
	case <-done:
		m.log.Infoln("Stopped reconnection monitor")
	case <-time.After(monitorStopTimeout):
		m.log.Warn("Reconnection monitor did not stop within ", monitorStopTimeout)
	}
}

// Running reports whether the goroutine was started and not stopped
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done != nil
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	m.checkOnce()
	lastCheck := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Since(lastCheck) < m.check {
			continue
		}
		lastCheck = time.Now()
		m.checkOnce()
	}
}

// checkOnce never lets a failure stop the monitor
func (m *Monitor) checkOnce() {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("Error in reconnection monitor: ", r)
		}
	}()

	if m.conn.Connected() {
		if m.connector.IsRunning(m.conn) {
			return
		}
		m.connector.invalidate(m.conn, errors.New("process is no longer running"))
		m.notify(StateDisconnected)
		return
	}

	if m.connector.TryReconnect(m.conn) {
		m.notify(StateConnected)
	}
}

func (m *Monitor) notify(s State) {
	if m.onChange != nil {
		m.onChange(s)
	}
}
