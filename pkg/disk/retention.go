package disk

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/downfa11-org/go-journal/util"
)

const deletedSuffix = ".deleted"

// Namer recognises segment files and recovers their sequence numbers.
type Namer interface {
	IsJournalFile(name string) bool
	ExtractSequence(name string) (uint64, error)
}

type segmentName struct {
	name string
	seq  uint64
}

// ListSegments returns the recognised segment file names in dir ordered by sequence number.
func ListSegments(fs FileSystem, dir string, namer Namer) ([]string, error) {
	names, err := fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var segs []segmentName
	for _, n := range names {
		if strings.HasSuffix(n, deletedSuffix) || !namer.IsJournalFile(n) {
			continue
		}
		seq, err := namer.ExtractSequence(n)
		if err != nil {
			util.Warn("skipping %s: %v", n, err)
			continue
		}
		segs = append(segs, segmentName{name: n, seq: seq})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].seq < segs[j].seq })

	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.name
	}
	return out, nil
}

// EnforceRetention soft-deletes the oldest segments so that at most keep remain. The newest
// segment is never touched. It returns the paths that were marked.
func EnforceRetention(fs FileSystem, dir string, namer Namer, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	names, err := ListSegments(fs, dir, namer)
	if err != nil {
		return nil, err
	}
	if len(names) <= keep {
		return nil, nil
	}

	var marked []string
	for _, n := range names[:len(names)-keep] {
		path := filepath.Join(dir, n)
		if err := fs.Rename(path, path+deletedSuffix); err != nil {
			return marked, ioErr("mark deleted", path, err)
		}
		util.Debug("Retention: marked as deleted %s", path)
		marked = append(marked, path)
	}
	return marked, nil
}

// PurgeDeleted removes files previously marked by EnforceRetention.
func PurgeDeleted(fs FileSystem, dir string) (int, error) {
	names, err := fs.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, n := range names {
		if !strings.HasSuffix(n, deletedSuffix) {
			continue
		}
		if err := fs.Remove(filepath.Join(dir, n)); err != nil {
			return removed, ioErr("purge", filepath.Join(dir, n), err)
		}
		removed++
	}
	return removed, nil
}
