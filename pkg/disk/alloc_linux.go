//go:build linux
// +build linux

package disk

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for f. Newly reserved ranges read back as zeros.
func preallocate(f File, size int64) error {
	if osf, ok := f.(*os.File); ok {
		if err := unix.Fallocate(int(osf.Fd()), 0, 0, size); err == nil {
			return nil
		}
	}
	// Filesystems without fallocate support still give us a zero-filled sparse file.
	return f.Truncate(size)
}

// adviseSequential tells the kernel the file is accessed front to back.
func adviseSequential(f File) {
	if osf, ok := f.(*os.File); ok {
		_ = unix.Fadvise(int(osf.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	}
}
