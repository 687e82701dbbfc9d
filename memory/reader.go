package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gamemem/config"
	"gamemem/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// ReadOption adjusts a single Read
type ReadOption func(*readOptions)

type readOptions struct {
	retries    int
	retryDelay time.Duration
	useCache   bool
}

// WithRetries sets the number of attempts, at least one is always made
func WithRetries(n int) ReadOption {
	return func(o *readOptions) {
		o.retries = n
	}
}

// WithRetryDelay sets the pause between attempts
func WithRetryDelay(d time.Duration) ReadOption {
	return func(o *readOptions) {
		o.retryDelay = d
	}
}

// WithoutCache forces a device read and leaves the cache untouched
func WithoutCache() ReadOption {
	return func(o *readOptions) {
		o.useCache = false
	}
}

// Reader reads typed values and resolves pointer chains through a Connection
type Reader struct {
	conn      *Connection
	connector *Connector
	cfg       *config.Config
	clock     Clock
	log       *logger.Logger
}

func NewReader(conn *Connection, connector *Connector) *Reader {
	return &Reader{
		conn:      conn,
		connector: connector,
		cfg:       connector.cfg,
		clock:     connector.clock,
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "reader")),
	}
}

func (r *Reader) Connection() *Connection {
	return r.conn
}

func (r *Reader) options(opts []ReadOption) readOptions {
	o := readOptions{
		retries:    r.cfg.Read.Retries,
		retryDelay: r.cfg.Read.RetryDelay,
		useCache:   r.cfg.Cache.Enabled,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retries < 1 {
		o.retries = 1
	}
	return o
}

// Read returns the value of type t at addr
func (r *Reader) Read(addr process.ProcessMemoryAddress, t ValueType, opts ...ReadOption) (Value, error) {
	o := r.options(opts)

	if err := r.ensureConnected(); err != nil {
		return Value{}, err
	}

	width := r.conn.PointerWidth()
	t = t.Resolve(width)
	size := t.Size()
	if size == 0 {
		return Value{}, fmt.Errorf("unsupported value type %s", t)
	}

	if r.cfg.Blocked(addr, size) {
		return Value{}, fmt.Errorf("%w: %s", process.ErrBlockedAddress, addr.ToString())
	}

	key := cacheKey{addr: addr, typ: t}
	if o.useCache {
		now := r.clock.Now()
		r.conn.mu.Lock()
		r.conn.cache.purgeOlderThan(now, r.cfg.Cache.MaxAge, r.cfg.Cache.Freshness)
		v, ok := r.conn.cache.get(key, now, r.cfg.Cache.Freshness)
		r.conn.mu.Unlock()
		if ok {
			return v, nil
		}
	}

	if err := checkRange(addr, size, width); err != nil {
		return Value{}, err
	}

	buf := make([]byte, size)
	if err := r.readWithRetry(addr, buf, o); err != nil {
		return Value{}, err
	}

	v := decodeValue(t, buf)
	if o.useCache {
		now := r.clock.Now()
		r.conn.mu.Lock()
		r.conn.cache.put(key, v, now)
		r.conn.mu.Unlock()
	}
	return v, nil
}

// ReadBytes reads size raw bytes at addr without consulting the cache
func (r *Reader) ReadBytes(addr process.ProcessMemoryAddress, size int, opts ...ReadOption) ([]byte, error) {
	o := r.options(opts)

	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", process.ErrInvalidAddress, size)
	}
	if err := r.ensureConnected(); err != nil {
		return nil, err
	}
	if r.cfg.Blocked(addr, size) {
		return nil, fmt.Errorf("%w: %s", process.ErrBlockedAddress, addr.ToString())
	}
	if err := checkRange(addr, size, r.conn.PointerWidth()); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	if err := r.readWithRetry(addr, buf, o); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) ReadINT32(addr process.ProcessMemoryAddress, opts ...ReadOption) (int32, error) {
	v, err := r.Read(addr, Int32, opts...)
	return int32(v.Int64()), err
}

func (r *Reader) ReadUINT32(addr process.ProcessMemoryAddress, opts ...ReadOption) (uint32, error) {
	v, err := r.Read(addr, Uint32, opts...)
	return uint32(v.Uint64()), err
}

func (r *Reader) ReadFLOAT32(addr process.ProcessMemoryAddress, opts ...ReadOption) (float32, error) {
	v, err := r.Read(addr, Float32, opts...)
	return float32(v.Float64()), err
}

func (r *Reader) ReadUINT64(addr process.ProcessMemoryAddress, opts ...ReadOption) (uint64, error) {
	v, err := r.Read(addr, Uint64, opts...)
	return v.Uint64(), err
}

func (r *Reader) ReadFLOAT64(addr process.ProcessMemoryAddress, opts ...ReadOption) (float64, error) {
	v, err := r.Read(addr, Float64, opts...)
	return v.Float64(), err
}

// ReadPOINTER reads a pointer sized for the target
func (r *Reader) ReadPOINTER(addr process.ProcessMemoryAddress, opts ...ReadOption) (process.ProcessMemoryAddress, error) {
	v, err := r.Read(addr, Pointer, opts...)
	return v.Address(), err
}

// ClearCache drops every cached read
func (r *Reader) ClearCache() {
	r.conn.mu.Lock()
	r.conn.cache.clear()
	r.conn.mu.Unlock()
	r.log.Debugln("Memory cache cleared")
}

func (r *Reader) ensureConnected() error {
	if r.conn.Connected() {
		return nil
	}
	if r.cfg.AutoReconnect && r.connector.TryReconnect(r.conn) {
		return nil
	}
	return fmt.Errorf("%w: %s", process.ErrNotConnected, r.conn.name)
}

// checkRange rejects reads that do not fit the target's address space
func checkRange(addr process.ProcessMemoryAddress, size int, width process.PointerWidth) error {
	max := uint64(width.MaxAddress())
	if uint64(addr) > max || uint64(size-1) > max-uint64(addr) {
		return fmt.Errorf("%w: %s+%d exceeds the %s address space", process.ErrInvalidAddress, addr.ToString(), size, width.String())
	}
	return nil
}

// readWithRetry fills buf with one device read per attempt
func (r *Reader) readWithRetry(addr process.ProcessMemoryAddress, buf []byte, o readOptions) error {
	var lastErr error

	for attempt := 1; attempt <= o.retries; attempt++ {
		n, err := r.readOnce(addr, buf)
		if err == nil && n != len(buf) {
			err = fmt.Errorf("%w: %d of %d bytes at %s", process.ErrShortRead, n, len(buf), addr.ToString())
		}
		if err == nil {
			return nil
		}
		lastErr = err
		r.log.Debugln("Read attempt", attempt, "of", o.retries, "failed at", addr.ToString(), err)

		if errors.Is(err, process.ErrHandleInvalid) {
			r.connector.invalidate(r.conn, err)
			if attempt == o.retries || !r.connector.TryReconnect(r.conn) {
				break
			}
		}

		if attempt < o.retries {
			r.clock.Sleep(o.retryDelay)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: read at %s failed", process.ErrMemoryAccess, addr.ToString())
	}
	r.log.Warn("Failed to read memory at ", addr.ToString(), " after ", o.retries, " attempts: ", lastErr)
	return lastErr
}

// readOnce holds the read lock across the system call so the handle cannot be
// closed underneath it
func (r *Reader) readOnce(addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	r.conn.mu.RLock()
	defer r.conn.mu.RUnlock()

	if r.conn.state != StateConnected || r.conn.handle == nil {
		return 0, fmt.Errorf("%w: connection to %s released", process.ErrHandleInvalid, r.conn.name)
	}
	return r.conn.handle.ReadMemory(addr, buf)
}

// ResolvePointerChain follows offsets from the module base plus baseOffset and
// returns the final address
func (r *Reader) ResolvePointerChain(baseOffset process.ProcessMemoryAddress, offsets []int64) (process.ProcessMemoryAddress, error) {
	return r.ResolvePointerChainContext(context.Background(), baseOffset, offsets)
}

// ResolvePointerChainContext is ResolvePointerChain that stops between steps once ctx is done
func (r *Reader) ResolvePointerChainContext(ctx context.Context, baseOffset process.ProcessMemoryAddress, offsets []int64) (process.ProcessMemoryAddress, error) {
	addr := baseOffset
	if base, ok := r.conn.BaseAddress(); ok {
		addr = base + baseOffset
	}
	r.log.Debugln("Resolving pointer chain starting at", addr.ToString())

	for i, off := range offsets {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		ptr, err := r.ReadPOINTER(addr)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve pointer at step %d: %w", i+1, err)
		}

		next, ok := applyOffset(ptr, off)
		limit := r.conn.PointerWidth().MaxPlausibleAddress()
		if !ok || next > limit {
			return 0, fmt.Errorf("%w: step %d produced %s%+d outside %s", process.ErrInvalidAddress, i+1, ptr.ToString(), off, limit.ToString())
		}

		r.log.Debugln("Step", i+1, ":", ptr.ToString(), "+", off, "=", next.ToString())
		addr = next
	}

	return addr, nil
}

// ResolveChain resolves a configured chain
func (r *Reader) ResolveChain(ctx context.Context, chain config.PointerChain) (process.ProcessMemoryAddress, error) {
	return r.ResolvePointerChainContext(ctx, chain.BaseOffset.Process(), chain.OffsetValues())
}

// applyOffset adds a signed offset, failing on wrap in either direction
func applyOffset(addr process.ProcessMemoryAddress, off int64) (process.ProcessMemoryAddress, bool) {
	a := uint64(addr)
	if off >= 0 {
		if uint64(off) > math.MaxUint64-a {
			return 0, false
		}
		return process.ProcessMemoryAddress(a + uint64(off)), true
	}
	neg := uint64(-(off + 1)) + 1
	if neg > a {
		return 0, false
	}
	return process.ProcessMemoryAddress(a - neg), true
}
