package journal_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/downfa11-org/go-journal/pkg/disk"
	"github.com/downfa11-org/go-journal/pkg/journal"
	"github.com/downfa11-org/go-journal/pkg/naming"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/stretchr/testify/require"
)

const testJournal = "test"

var errInjected = errors.New("injected write failure")

type stringCodec struct{}

func (stringCodec) Write(v string, _ byte) ([]byte, error) {
	if v == "bad" {
		return nil, fmt.Errorf("cannot encode %q", v)
	}
	return []byte(v), nil
}

func (stringCodec) Read(_ uint64, _ byte, data []byte) (string, error) {
	return string(data), nil
}

var errRejected = errors.New("rejected record")

// rejectingCodec is stringCodec refusing to read one value back.
type rejectingCodec struct {
	stringCodec
	value string
}

func (c rejectingCodec) Read(id uint64, typ byte, data []byte) (string, error) {
	if string(data) == c.value {
		return "", fmt.Errorf("record %d: %w", id, errRejected)
	}
	return c.stringCodec.Read(id, typ, data)
}

// recorder is a Listener that remembers every callback it receives.
type recorder struct {
	mu            sync.Mutex
	commits       []types.Record[string]
	failures      []types.Entry[string]
	batchFailures []error
	replayed      []types.Record[string]
	gaps          [][2]uint64

	onGap    func(prev, cur types.Record[string]) types.ReplayResult
	onRecord func(r types.Record[string]) types.ReplayResult
}

func (r *recorder) OnCommit(rec types.Record[string]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, rec)
}

func (r *recorder) OnFailure(e types.Entry[string], _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, e)
}

func (r *recorder) OnBatchFailure(_ *journal.Batch[string], err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchFailures = append(r.batchFailures, err)
}

func (r *recorder) OnReplayGap(prev, cur types.Record[string]) types.ReplayResult {
	r.mu.Lock()
	r.gaps = append(r.gaps, [2]uint64{prev.ID, cur.ID})
	fn := r.onGap
	r.mu.Unlock()
	if fn != nil {
		return fn(prev, cur)
	}
	return types.Continue
}

func (r *recorder) OnReplayRecord(rec types.Record[string]) types.ReplayResult {
	r.mu.Lock()
	fn := r.onRecord
	r.mu.Unlock()
	res := types.Continue
	if fn != nil {
		res = fn(rec)
	}
	if res != types.Except {
		r.mu.Lock()
		r.replayed = append(r.replayed, rec)
		r.mu.Unlock()
	}
	return res
}

func (r *recorder) Commits() []types.Record[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Record[string](nil), r.commits...)
}

func (r *recorder) Replayed() []types.Record[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Record[string](nil), r.replayed...)
}

func ids(recs []types.Record[string]) []uint64 {
	out := make([]uint64, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func values(recs []types.Record[string]) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Value
	}
	return out
}

func testOptions(dir string, size int, l journal.Listener[string], gen journal.RecordIDGenerator) journal.Options[string] {
	return journal.Options[string]{
		Dir:         dir,
		SegmentSize: size,
		Naming:      naming.NewPrefix(testJournal),
		IDs:         gen,
		Listener:    l,
	}.WithCodec(stringCodec{})
}

func openJournal(t *testing.T, opts journal.Options[string]) *journal.Journal[string] {
	t.Helper()
	j, err := journal.Open(testJournal, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

// fixedIDs hands out a predetermined id sequence, for building histories with gaps.
type fixedIDs struct{ ids []uint64 }

func (f *fixedIDs) Next() uint64 {
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id
}

// writeSegment lays down a segment file as a previous journal run would have.
func writeSegment(t *testing.T, dir string, seq uint64, kind types.SegmentKind, capacity uint32, recordIDs ...uint64) string {
	t.Helper()
	path := filepath.Join(dir, naming.NewPrefix(testJournal).Generate(seq))
	seg, err := disk.Create(disk.OSFileSystem{}, path, seq, capacity, kind, false)
	require.NoError(t, err)

	gen := &fixedIDs{ids: recordIDs}
	for _, id := range recordIDs {
		out, _, err := seg.AppendRecord(gen, 1, []byte(fmt.Sprintf("v%d", id)))
		require.NoError(t, err)
		require.Equal(t, disk.Success, out)
	}
	require.NoError(t, seg.Close())
	return path
}

// faultyFS fails every data write once failWrites is set. Header writes at offset 0 still succeed.
type faultyFS struct {
	disk.OSFileSystem
	failWrites *atomic.Bool
}

func newFaultyFS() faultyFS {
	return faultyFS{failWrites: &atomic.Bool{}}
}

func (f faultyFS) Create(path string) (disk.File, error) {
	file, err := f.OSFileSystem.Create(path)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fail: f.failWrites}, nil
}

func (f faultyFS) OpenWritable(path string) (disk.File, error) {
	file, err := f.OSFileSystem.OpenWritable(path)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fail: f.failWrites}, nil
}

type faultyFile struct {
	disk.File
	fail *atomic.Bool
}

func (f *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	if off > 0 && f.fail.Load() {
		return 0, errInjected
	}
	return f.File.WriteAt(p, off)
}

// openRecorder remembers the base names of files opened read-only.
type openRecorder struct {
	disk.OSFileSystem

	mu     sync.Mutex
	opened []string
}

func (f *openRecorder) Open(path string) (disk.File, error) {
	f.mu.Lock()
	f.opened = append(f.opened, filepath.Base(path))
	f.mu.Unlock()
	return f.OSFileSystem.Open(path)
}

func (f *openRecorder) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}
