//go:build linux

package process_linux

import (
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"unsafe"

	"gamemem/process"
	"gamemem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/unix"
)

// LinuxPlatform implements process.Platform on top of procfs and process_vm_readv
type LinuxPlatform struct {
	procRoot string
	log      *logger.Logger
}

var _ process.Platform = (*LinuxPlatform)(nil)

// NewPlatform creates a LinuxPlatform reading /proc
func NewPlatform() *LinuxPlatform {
	return NewPlatformAt("/proc")
}

// NewPlatformAt creates a LinuxPlatform rooted at an alternative procfs mount
func NewPlatformAt(procRoot string) *LinuxPlatform {
	return &LinuxPlatform{
		procRoot: procRoot,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "platform-linux")),
	}
}

// LinuxProcess implements process.Handle. Reads go through the raw pid, so every
// successful read is confirmed against the pidfd; once the target exits its data
// is rejected even if the pid has been reused. Without a pidfd the check falls
// back to kill(pid, 0), which cannot tell a reused pid apart.
type LinuxProcess struct {
	pid      process.ProcessID
	pidfd    int
	width    process.PointerWidth
	procRoot string
	log      *logger.Logger
	mu       sync.Mutex
	closed   bool
}

var _ process.Handle = (*LinuxProcess)(nil)

// Open checks that the caller may read pid's memory and returns a handle to it
func (l *LinuxPlatform) Open(pid process.ProcessID) (process.Handle, error) {
	procPath := filepath.Join(l.procRoot, strconv.Itoa(int(pid)))
	if _, err := os.Stat(procPath); err != nil {
		return nil, fmt.Errorf("%w: process with PID %d does not exist: %v", process.ErrMemoryAccess, pid, err)
	}

	// /proc/<pid>/mem enforces the same ptrace access check as process_vm_readv
	mem, err := os.Open(filepath.Join(procPath, "mem"))
	if err != nil {
		return nil, fmt.Errorf("%w: open process %d: %v", process.ErrMemoryAccess, pid, err)
	}
	mem.Close()

	pidfd, err := unix.PidfdOpen(int(pid), 0)
	if err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil, fmt.Errorf("%w: process %d exited during open", process.ErrMemoryAccess, pid)
		}
		// old kernels and seccomp filters, liveness falls back to kill(pid, 0)
		l.log.Debugln("pidfd_open unavailable for", pid, err)
		pidfd = -1
	}

	p := &LinuxProcess{
		pid:      pid,
		pidfd:    pidfd,
		procRoot: l.procRoot,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid))),
	}
	p.width = p.detectPointerWidth()

	p.log.Infoln("Process opened,", p.width.String())

	return p, nil
}

// PID returns the process ID
func (p *LinuxProcess) PID() process.ProcessID {
	return p.pid
}

func (p *LinuxProcess) PointerWidth() process.PointerWidth {
	return p.width
}

// detectPointerWidth reads the ELF class of the target executable. A 32-bit
// executable on a 64-bit host is the Linux equivalent of WOW64.
func (p *LinuxProcess) detectPointerWidth() process.PointerWidth {
	host := process.PointerWidth(unsafe.Sizeof(uintptr(0)))

	f, err := elf.Open(filepath.Join(p.procRoot, strconv.Itoa(int(p.pid)), "exe"))
	if err != nil {
		p.log.Warn("Failed to inspect executable, assuming host pointer width: ", err)
		return host
	}
	defer f.Close()

	if f.Class == elf.ELFCLASS32 {
		return process.PointerWidth32
	}
	return host
}

// FindModule locates the mappings backed by a file called name
func (p *LinuxProcess) FindModule(name string) (process.Module, error) {
	mm, err := memory_map.ReadMemoryMapAt(p.procRoot, int(p.pid))
	if err != nil {
		return process.Module{}, fmt.Errorf("%w: failed to read memory map: %v", process.ErrMemoryAccess, err)
	}

	base, size, ok := memory_map.ModuleSpan(mm, name, process.MatchName)
	if !ok {
		return process.Module{}, fmt.Errorf("%w: %s in process %d", process.ErrModuleNotFound, name, p.pid)
	}

	return process.Module{
		Name: name,
		Base: process.ProcessMemoryAddress(base),
		Size: process.ProcessMemorySize(size),
	}, nil
}

// alive asks the kernel whether the process behind the handle still exists
func (p *LinuxProcess) alive() bool {
	p.mu.Lock()
	pidfd := p.pidfd
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return false
	}
	if pidfd >= 0 {
		return unix.PidfdSendSignal(pidfd, 0, nil, 0) == nil
	}
	err := unix.Kill(int(p.pid), 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.pidfd >= 0 {
		err = unix.Close(p.pidfd)
		p.pidfd = -1
	}

	p.log.Infoln("Process closed")

	return err
}
