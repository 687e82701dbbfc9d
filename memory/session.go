package memory

import (
	"context"
	"errors"

	"gamemem/config"
	"gamemem/process"
)

// Session bundles the Connector, Connection, Reader and Monitor for one target
type Session struct {
	Connector *Connector
	Conn      *Connection
	Reader    *Reader
	Monitor   *Monitor
}

func NewSession(platform process.Platform, cfg *config.Config, options ...Option) *Session {
	connector := NewConnector(platform, cfg, options...)
	conn := connector.NewConnection(cfg.ProcessName)
	return &Session{
		Connector: connector,
		Conn:      conn,
		Reader:    NewReader(conn, connector),
	}
}

// Start makes the first connection attempt and, with auto_reconnect, starts the
// monitor. A missing process is not an error when the monitor will pick it up.
// Any other failure leaves nothing running.
func (s *Session) Start(ctx context.Context, options ...MonitorOption) error {
	err := s.Connector.Open(s.Conn)
	if err != nil && !(s.Connector.cfg.AutoReconnect && errors.Is(err, process.ErrProcessNotFound)) {
		return err
	}

	if s.Connector.cfg.AutoReconnect {
		if err != nil {
			s.Connector.log.Infoln("Waiting for", s.Conn.name, "to start")
		}
		s.Monitor = NewMonitor(s.Conn, s.Connector, options...)
		s.Monitor.Start(ctx)
	}
	return nil
}

// Close stops the monitor, releases the handle and clears the cache
func (s *Session) Close() {
	if s.Monitor != nil {
		s.Monitor.Stop()
	}
	s.Connector.Disconnect(s.Conn)
	s.Reader.ClearCache()
}
