//go:build !linux
// +build !linux

package disk

func preallocate(f File, size int64) error {
	return f.Truncate(size)
}

func adviseSequential(f File) {}
