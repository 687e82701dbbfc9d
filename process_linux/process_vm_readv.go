//go:build linux

package process_linux

import (
	"errors"
	"fmt"

	"gamemem/process"

	"golang.org/x/sys/unix"
)

// process_vm_readv reads len(localBuf) bytes at remoteAddr of pid with a single syscall.
// A partial copy is not an error here, the caller compares the returned count.
func process_vm_readv(pid process.ProcessID, localBuf []byte, remoteAddr process.ProcessMemoryAddress) (int, error) {
	if len(localBuf) == 0 {
		return 0, nil
	}

	localIov := []unix.Iovec{{Base: &localBuf[0]}}
	localIov[0].SetLen(len(localBuf))

	remoteIov := []unix.RemoteIovec{{
		Base: uintptr(remoteAddr),
		Len:  len(localBuf),
	}}

	n, err := unix.ProcessVMReadv(int(pid), localIov, remoteIov, 0)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ReadMemory reads memory from the process at the specified address
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	p.mu.Lock()
	pid := p.pid
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return 0, fmt.Errorf("%w: process %d handle already closed", process.ErrHandleInvalid, pid)
	}

	// No lock held across the system call
	n, err := process_vm_readv(pid, buf, addr)
	if err == nil {
		if !p.alive() {
			return 0, fmt.Errorf("%w: process %d exited during read at %s", process.ErrHandleInvalid, pid, addr.ToString())
		}
		return n, nil
	}

	if errors.Is(err, unix.ESRCH) || !p.alive() {
		return 0, fmt.Errorf("%w: process_vm_readv at %s: %v", process.ErrHandleInvalid, addr.ToString(), err)
	}

	return 0, fmt.Errorf("%w: process_vm_readv at %s: %v", process.ErrMemoryAccess, addr.ToString(), err)
}
