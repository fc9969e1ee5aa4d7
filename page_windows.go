//go:build windows

package codecache

import (
	"golang.org/x/sys/windows"
)

// osExecPageSize returns the host's executable memory page granularity.
func osExecPageSize() uintptr {
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	return uintptr(si.PageSize)
}

// osAllocExec reserves and commits a fresh region of size bytes with
// read/write/exec permission and returns its base address.
func osAllocExec(size uintptr) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, size,
		windows.MEM_COMMIT|windows.MEM_RESERVE,
		windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return 0, err
	}
	return addr, nil
}

// osFreeExec releases a region previously returned by osAllocExec.
func osFreeExec(base, _ uintptr) error {
	return windows.VirtualFree(base, 0, windows.MEM_RELEASE)
}
