//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"unsafe"

	"gamemem/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

// exit code reported by GetExitCodeProcess while the process runs
const stillActive = 259

// WindowsPlatform implements process.Platform with Toolhelp32 snapshots and psapi
type WindowsPlatform struct {
	log *logger.Logger
}

var _ process.Platform = (*WindowsPlatform)(nil)

// NewPlatform creates a WindowsPlatform
func NewPlatform() *WindowsPlatform {
	return &WindowsPlatform{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "platform-windows")),
	}
}

// WindowsProcess implements process.Handle for Windows systems
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	width  process.PointerWidth
	log    *logger.Logger
	mu     sync.Mutex
}

var _ process.Handle = (*WindowsProcess)(nil)

// FindProcessByName walks a process snapshot matching image names without regard to case
func (w *WindowsPlatform) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty process name", process.ErrProcessNotFound)
	}

	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snap)

	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))

	var results []process.ProcessInfo
	for err = windows.Process32First(snap, &pe); err == nil; err = windows.Process32Next(snap, &pe) {
		exe := windows.UTF16ToString(pe.ExeFile[:])
		if !process.MatchName(exe, name) {
			continue
		}
		results = append(results, process.ProcessInfo{
			PID:  process.ProcessID(pe.ProcessID),
			PPID: process.ProcessID(pe.ParentProcessID),
			Name: exe,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PID < results[j].PID
	})

	return results, nil
}

// IsRunning opens pid with limited rights and checks its exit code and image name
func (w *WindowsPlatform) IsRunning(pid process.ProcessID, name string) bool {
	if pid <= 0 {
		return false
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil || code != stillActive {
		return false
	}

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return false
	}

	return process.MatchName(filepath.Base(windows.UTF16ToString(buf[:size])), name)
}

// Open opens pid with PROCESS_ALL_ACCESS and detects WOW64
func (w *WindowsPlatform) Open(pid process.ProcessID) (process.Handle, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("%w: OpenProcess(%d) failed: %v", process.ErrMemoryAccess, pid, err)
	}

	p := &WindowsProcess{
		pid:    pid,
		handle: handle,
		width:  process.PointerWidth(unsafe.Sizeof(uintptr(0))),
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid))),
	}

	var wow64 bool
	if err := windows.IsWow64Process(handle, &wow64); err != nil {
		p.log.Warn("IsWow64Process failed, assuming host pointer width: ", err)
	} else if wow64 {
		p.width = process.PointerWidth32
	}

	p.log.Infoln("Process opened,", p.width.String())
	return p, nil
}

func (p *WindowsProcess) PID() process.ProcessID {
	return p.pid
}

func (p *WindowsProcess) PointerWidth() process.PointerWidth {
	return p.width
}

// FindModule enumerates loaded modules with psapi and returns the one called name
func (p *WindowsProcess) FindModule(name string) (process.Module, error) {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return process.Module{}, fmt.Errorf("%w: process not opened", process.ErrHandleInvalid)
	}

	modules := make([]windows.Handle, 1024)
	var needed uint32
	err := windows.EnumProcessModulesEx(handle, &modules[0], uint32(len(modules))*uint32(unsafe.Sizeof(modules[0])), &needed, windows.LIST_MODULES_ALL)
	if err != nil {
		return process.Module{}, fmt.Errorf("%w: EnumProcessModules failed: %v", process.ErrMemoryAccess, err)
	}

	count := int(needed / uint32(unsafe.Sizeof(modules[0])))
	if count > len(modules) {
		count = len(modules)
	}

	nameBuf := make([]uint16, 256)
	for _, mod := range modules[:count] {
		if err := windows.GetModuleBaseName(handle, mod, &nameBuf[0], uint32(len(nameBuf))); err != nil {
			continue
		}
		modName := windows.UTF16ToString(nameBuf)
		if !process.MatchName(modName, name) {
			continue
		}

		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(handle, mod, &info, uint32(unsafe.Sizeof(info))); err != nil {
			return process.Module{}, fmt.Errorf("%w: GetModuleInformation failed: %v", process.ErrMemoryAccess, err)
		}
		return process.Module{
			Name: modName,
			Base: process.ProcessMemoryAddress(info.BaseOfDll),
			Size: process.ProcessMemorySize(info.SizeOfImage),
		}, nil
	}

	return process.Module{}, fmt.Errorf("%w: %s in process %d", process.ErrModuleNotFound, name, p.pid)
}

// ReadMemory issues a single ReadProcessMemory call
func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return 0, fmt.Errorf("%w: process %d handle already closed", process.ErrHandleInvalid, p.pid)
	}

	var bytesRead uintptr
	err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(len(buf)), &bytesRead)
	if err == nil {
		return int(bytesRead), nil
	}

	if errors.Is(err, windows.ERROR_PARTIAL_COPY) && bytesRead > 0 {
		return int(bytesRead), nil
	}

	if errors.Is(err, windows.ERROR_INVALID_HANDLE) || !p.alive(handle) {
		return 0, fmt.Errorf("%w: ReadProcessMemory at %s: %v", process.ErrHandleInvalid, addr.ToString(), err)
	}

	return 0, fmt.Errorf("%w: ReadProcessMemory at %s: %v", process.ErrMemoryAccess, addr.ToString(), err)
}

func (p *WindowsProcess) alive(handle windows.Handle) bool {
	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return false
	}
	return code == stillActive
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return nil
	}

	err := windows.CloseHandle(p.handle)
	p.handle = 0
	if err != nil {
		return fmt.Errorf("CloseHandle failed: %w", err)
	}

	p.log.Infoln("Process closed")
	return nil
}
