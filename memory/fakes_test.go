package memory

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gamemem/config"
	"gamemem/process"
)

// fakeGame is one process known to fakePlatform
type fakeGame struct {
	info    process.ProcessInfo
	width   process.PointerWidth
	module  process.Module
	noMod   bool
	running bool
	mem     map[process.ProcessMemoryAddress]byte
}

type fakePlatform struct {
	mu      sync.Mutex
	games   map[process.ProcessID]*fakeGame
	openErr error

	// readErrs are returned, in order, by the next device reads
	readErrs []error
	// shortBy truncates every successful read by this many bytes
	shortBy int
	// beforeFind runs at the start of FindProcessByName with no lock held
	beforeFind func()
	// readsAfterClose counts reads that reached a closed handle
	readsAfterClose int

	finds   int
	opens   int
	reads   int
	handles []*fakeHandle
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{games: map[process.ProcessID]*fakeGame{}}
}

func (p *fakePlatform) addGame(pid process.ProcessID, name string, width process.PointerWidth, base process.ProcessMemoryAddress) *fakeGame {
	p.mu.Lock()
	defer p.mu.Unlock()

	g := &fakeGame{
		info:    process.ProcessInfo{PID: pid, Name: name, State: process.ProcessRunning},
		width:   width,
		module:  process.Module{Name: name, Base: base, Size: 0x100000},
		running: true,
		mem:     map[process.ProcessMemoryAddress]byte{},
	}
	p.games[pid] = g
	return g
}

func (p *fakePlatform) setRunning(pid process.ProcessID, running bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.games[pid].running = running
}

func (p *fakePlatform) write(pid process.ProcessID, addr process.ProcessMemoryAddress, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, b := range data {
		p.games[pid].mem[addr+process.ProcessMemoryAddress(i)] = b
	}
}

func (p *fakePlatform) writeUint32(pid process.ProcessID, addr process.ProcessMemoryAddress, v uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	p.write(pid, addr, buf)
}

func (p *fakePlatform) writeUint64(pid process.ProcessID, addr process.ProcessMemoryAddress, v uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	p.write(pid, addr, buf)
}

func (p *fakePlatform) writeFloat32(pid process.ProcessID, addr process.ProcessMemoryAddress, v float32) {
	p.writeUint32(pid, addr, math.Float32bits(v))
}

// writePointer stores v with the game's pointer width
func (p *fakePlatform) writePointer(pid process.ProcessID, addr process.ProcessMemoryAddress, v uint64) {
	if p.games[pid].width == process.PointerWidth32 {
		p.writeUint32(pid, addr, uint32(v))
		return
	}
	p.writeUint64(pid, addr, v)
}

func (p *fakePlatform) failReads(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErrs = append(p.readErrs, errs...)
}

func (p *fakePlatform) counts() (finds, opens, reads int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finds, p.opens, p.reads
}

func (p *fakePlatform) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	p.mu.Lock()
	hook := p.beforeFind
	p.beforeFind = nil
	p.mu.Unlock()
	if hook != nil {
		hook()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.finds++

	var out []process.ProcessInfo
	for _, g := range p.games {
		if g.running && process.MatchName(g.info.Name, name) {
			out = append(out, g.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func (p *fakePlatform) Open(pid process.ProcessID) (process.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++

	if p.openErr != nil {
		return nil, p.openErr
	}
	g, ok := p.games[pid]
	if !ok || !g.running {
		return nil, fmt.Errorf("%w: no process %d", process.ErrMemoryAccess, pid)
	}
	h := &fakeHandle{platform: p, game: g}
	p.handles = append(p.handles, h)
	return h, nil
}

func (p *fakePlatform) IsRunning(pid process.ProcessID, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.games[pid]
	return ok && g.running && process.MatchName(g.info.Name, name)
}

type fakeHandle struct {
	platform *fakePlatform
	game     *fakeGame
	closed   bool
	closes   int
}

func (h *fakeHandle) PID() process.ProcessID {
	return h.game.info.PID
}

func (h *fakeHandle) PointerWidth() process.PointerWidth {
	return h.game.width
}

func (h *fakeHandle) FindModule(name string) (process.Module, error) {
	if h.game.noMod {
		return process.Module{}, fmt.Errorf("%w: %s", process.ErrModuleNotFound, name)
	}
	return h.game.module, nil
}

// ReadMemory copies mapped bytes and stops at the first unmapped one
func (h *fakeHandle) ReadMemory(addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	p := h.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++

	if h.closed {
		p.readsAfterClose++
		return 0, fmt.Errorf("%w: closed", process.ErrHandleInvalid)
	}
	if !h.game.running {
		return 0, fmt.Errorf("%w: process exited", process.ErrHandleInvalid)
	}
	if len(p.readErrs) > 0 {
		err := p.readErrs[0]
		p.readErrs = p.readErrs[1:]
		if err != nil {
			return 0, err
		}
	}

	n := 0
	for i := range buf {
		b, ok := h.game.mem[addr+process.ProcessMemoryAddress(i)]
		if !ok {
			break
		}
		buf[i] = b
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: unmapped %s", process.ErrMemoryAccess, addr.ToString())
	}
	if p.shortBy > 0 {
		n -= p.shortBy
		if n < 0 {
			n = 0
		}
	}
	return n, nil
}

func (h *fakeHandle) Close() error {
	h.platform.mu.Lock()
	defer h.platform.mu.Unlock()
	h.closes++
	h.closed = true
	return nil
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

const (
	gameName = "PokeAlliance_dx.exe"
	gamePID  = process.ProcessID(4321)
	gameBase = process.ProcessMemoryAddress(0x400000)
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ProcessName = gameName
	return cfg
}

type fixture struct {
	platform  *fakePlatform
	clock     *fakeClock
	cfg       *config.Config
	connector *Connector
	conn      *Connection
	reader    *Reader
}

// newFixture connects to a 32-bit game loaded at gameBase
func newFixture(cfg *config.Config) *fixture {
	f := &fixture{
		platform: newFakePlatform(),
		clock:    newFakeClock(),
		cfg:      cfg,
	}
	f.platform.addGame(gamePID, gameName, process.PointerWidth32, gameBase)
	f.connector = NewConnector(f.platform, cfg, WithClock(f.clock))
	f.conn = f.connector.NewConnection(gameName)
	f.reader = NewReader(f.conn, f.connector)
	return f
}
