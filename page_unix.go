//go:build !windows

package codecache

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// osExecPageSize returns the host's executable memory page granularity.
func osExecPageSize() uintptr {
	return uintptr(unix.Getpagesize())
}

// osAllocExec maps a fresh anonymous region of size bytes with read, write,
// and exec permission and returns its base address.
func osAllocExec(size uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}
	return uintptr(unsafe.Pointer(&b[0])), nil
}

// osFreeExec releases a region previously returned by osAllocExec. It does
// not read the region's contents, so freeing pages never pages them back in.
func osFreeExec(base, size uintptr) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), int(size))
	return unix.Munmap(b)
}
