package journal_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/pkg/idgen"
	"github.com/downfa11-org/go-journal/pkg/journal"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gappedHistory writes ids 1,2 into segment 1 and 4,5 into segment 2.
func gappedHistory(t *testing.T) string {
	dir := t.TempDir()
	writeSegment(t, dir, 1, types.KindNormal, codec.MinCapacity, 1, 2)
	writeSegment(t, dir, 2, types.KindNormal, codec.MinCapacity, 4, 5)
	return dir
}

func TestReplayGapContinue(t *testing.T) {
	dir := gappedHistory(t)
	rec := &recorder{}
	gen := idgen.NewSequencer(0)
	j := openJournal(t, testOptions(dir, codec.MinCapacity, rec, gen))

	assert.Equal(t, [][2]uint64{{2, 4}}, rec.gaps)
	assert.Equal(t, []uint64{1, 2, 4, 5}, ids(rec.Replayed()))
	assert.Equal(t, []string{"v1", "v2", "v4", "v5"}, values(rec.Replayed()))
	assert.Equal(t, uint64(2), rec.Replayed()[2].Segment)
	assert.Equal(t, uint64(5), gen.Last())

	segments := j.Segments()
	require.Len(t, segments, 2)
	assert.True(t, segments[0].Closed)
	assert.False(t, segments[1].Closed)

	require.NoError(t, j.AppendSync("next", 1))
	require.NoError(t, j.Close())
	commits := rec.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, uint64(6), commits[0].ID)
	assert.Equal(t, uint64(2), commits[0].Segment)
}

func TestReplayGapExceptAborts(t *testing.T) {
	dir := gappedHistory(t)
	rec := &recorder{onGap: func(_, _ types.Record[string]) types.ReplayResult { return types.Except }}
	gen := idgen.NewSequencer(0)

	j, err := journal.Open(testJournal, testOptions(dir, codec.MinCapacity, rec, gen))
	require.Nil(t, j)
	require.ErrorIs(t, err, journal.ErrReplayAborted)

	var aborted *journal.ReplayAbortedError
	require.True(t, errors.As(err, &aborted))
	assert.Equal(t, "gap check", aborted.Phase)
	assert.Equal(t, uint64(4), aborted.RecordID)
	assert.Empty(t, rec.Replayed(), "nothing is announced after a gap abort")
	assert.Equal(t, uint64(0), gen.Last())
}

func TestReplayGapTerminateStillAnnounces(t *testing.T) {
	dir := gappedHistory(t)
	rec := &recorder{onGap: func(_, _ types.Record[string]) types.ReplayResult { return types.Terminate }}
	openJournal(t, testOptions(dir, codec.MinCapacity, rec, idgen.NewSequencer(0)))

	assert.Len(t, rec.gaps, 1)
	assert.Equal(t, []uint64{1, 2, 4, 5}, ids(rec.Replayed()))
}

func TestReplayGapPanicAborts(t *testing.T) {
	dir := gappedHistory(t)
	rec := &recorder{onGap: func(_, _ types.Record[string]) types.ReplayResult { panic("boom") }}

	_, err := journal.Open(testJournal, testOptions(dir, codec.MinCapacity, rec, idgen.NewSequencer(0)))
	require.ErrorIs(t, err, journal.ErrReplayAborted)
	assert.Contains(t, err.Error(), "boom")
}

func TestReplayRecordExceptStopsAdvancing(t *testing.T) {
	dir := gappedHistory(t)
	rec := &recorder{onRecord: func(r types.Record[string]) types.ReplayResult {
		if r.ID == 4 {
			return types.Except
		}
		return types.Continue
	}}
	gen := idgen.NewSequencer(0)

	_, err := journal.Open(testJournal, testOptions(dir, codec.MinCapacity, rec, gen))
	var aborted *journal.ReplayAbortedError
	require.True(t, errors.As(err, &aborted))
	assert.Equal(t, "announce", aborted.Phase)
	assert.Equal(t, uint64(4), aborted.RecordID)
	assert.Equal(t, []uint64{1, 2}, ids(rec.Replayed()))
	assert.Equal(t, uint64(2), gen.Last())
}

func TestReplayRecordTerminateStopsEarly(t *testing.T) {
	dir := gappedHistory(t)
	rec := &recorder{onRecord: func(r types.Record[string]) types.ReplayResult {
		if r.ID == 2 {
			return types.Terminate
		}
		return types.Continue
	}}
	gen := idgen.NewSequencer(0)
	openJournal(t, testOptions(dir, codec.MinCapacity, rec, gen))

	assert.Equal(t, []uint64{1, 2}, ids(rec.Replayed()))
	assert.Equal(t, uint64(2), gen.Last())
}

func TestReplayStopsAtTornWrite(t *testing.T) {
	dir := t.TempDir()
	j := openJournal(t, testOptions(dir, codec.MinCapacity, &recorder{}, idgen.NewSequencer(0)))
	for _, v := range []string{"aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc"} {
		require.NoError(t, j.AppendSync(v, 1))
	}
	require.NoError(t, j.Close())

	// Corrupt the trailing length of the third 27-byte frame.
	path := filepath.Join(dir, "test-1")
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0xFF}, int64(codec.HeaderSize+3*27-4))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rec := &recorder{}
	gen := idgen.NewSequencer(0)
	j = openJournal(t, testOptions(dir, codec.MinCapacity, rec, gen))
	assert.Equal(t, []string{"aaaaaaaaaa", "bbbbbbbbbb"}, values(rec.Replayed()))
	assert.Equal(t, uint64(2), gen.Last())

	require.NoError(t, j.AppendSync("dddddddddd", 1))
	require.NoError(t, j.Close())

	rec = &recorder{}
	openJournal(t, testOptions(dir, codec.MinCapacity, rec, idgen.NewSequencer(0)))
	assert.Equal(t, []uint64{1, 2, 3}, ids(rec.Replayed()))
	assert.Equal(t, []string{"aaaaaaaaaa", "bbbbbbbbbb", "dddddddddd"}, values(rec.Replayed()))
}

func TestReplayDiscardsIncompleteBatch(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, 1, types.KindNormal, codec.MinCapacity, 1)
	// Room for three 19-byte frames but only two were written.
	batch := writeSegment(t, dir, 2, types.KindBatch, uint32(codec.HeaderSize+3*codec.FrameSize(2)), 2, 3)

	rec := &recorder{}
	gen := idgen.NewSequencer(0)
	j := openJournal(t, testOptions(dir, codec.MinCapacity, rec, gen))

	assert.Equal(t, []uint64{1}, ids(rec.Replayed()))
	assert.Equal(t, uint64(1), gen.Last())
	_, err := os.Stat(batch)
	assert.True(t, os.IsNotExist(err))
	require.Len(t, j.Segments(), 1)
	assert.Equal(t, uint64(3), j.NextSequence(), "a discarded batch keeps its sequence reserved")
}

func TestReplayIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, 3, types.KindNormal, codec.MinCapacity, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-9"), []byte("garbage"), 0o644))

	rec := &recorder{}
	j := openJournal(t, testOptions(dir, codec.MinCapacity, rec, idgen.NewSequencer(0)))

	assert.Equal(t, []uint64{1}, ids(rec.Replayed()))
	assert.Equal(t, uint64(10), j.NextSequence(), "names reserve their sequence even when unreadable")
}

func TestReplayDecodeFailureLeavesSegmentIntact(t *testing.T) {
	dir := t.TempDir()
	j := openJournal(t, testOptions(dir, 4096, &recorder{}, idgen.NewSequencer(0)))
	for _, v := range []string{"v1", "v2", "v3"} {
		require.NoError(t, j.AppendSync(v, 1))
	}
	require.NoError(t, j.Close())

	path := filepath.Join(dir, "test-1")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	rec := &recorder{}
	opts := testOptions(dir, 4096, rec, idgen.NewSequencer(0)).WithCodec(rejectingCodec{value: "v2"})
	failed, err := journal.Open(testJournal, opts)
	require.Nil(t, failed)
	require.ErrorIs(t, err, journal.ErrReplayAborted)
	assert.ErrorIs(t, err, errRejected)

	var aborted *journal.ReplayAbortedError
	require.True(t, errors.As(err, &aborted))
	assert.Equal(t, "decode", aborted.Phase)
	assert.Equal(t, uint64(2), aborted.RecordID)
	assert.Empty(t, rec.Replayed())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a rejected record must not be truncated away")

	rec = &recorder{}
	openJournal(t, testOptions(dir, 4096, rec, idgen.NewSequencer(0)))
	assert.Equal(t, []uint64{1, 2, 3}, ids(rec.Replayed()))
	assert.Equal(t, []string{"v1", "v2", "v3"}, values(rec.Replayed()))
}

func TestReplayDecodeFailureKeepsCommittedBatch(t *testing.T) {
	dir := t.TempDir()
	j := openJournal(t, testOptions(dir, codec.MinCapacity, &recorder{}, idgen.NewSequencer(0)))
	require.NoError(t, j.AppendSync("v0", 1))
	b := j.StartBatch()
	for _, v := range []string{"v1", "v2", "v3"} {
		require.NoError(t, b.Append(v, 1))
	}
	require.NoError(t, b.Commit())
	require.NoError(t, j.AppendSync("v4", 1))
	require.NoError(t, j.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	opts := testOptions(dir, codec.MinCapacity, &recorder{}, idgen.NewSequencer(0)).WithCodec(rejectingCodec{value: "v2"})
	_, err = journal.Open(testJournal, opts)
	var aborted *journal.ReplayAbortedError
	require.True(t, errors.As(err, &aborted))
	assert.Equal(t, "decode", aborted.Phase)
	assert.Equal(t, uint64(3), aborted.RecordID)

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.FileExists(t, filepath.Join(dir, "test-2"))

	rec := &recorder{}
	openJournal(t, testOptions(dir, codec.MinCapacity, rec, idgen.NewSequencer(0)))
	assert.Equal(t, []string{"v0", "v1", "v2", "v3", "v4"}, values(rec.Replayed()))
}

func TestReplayReadsThroughFileSystem(t *testing.T) {
	dir := gappedHistory(t)
	fs := &openRecorder{}
	rec := &recorder{}
	opts := testOptions(dir, codec.MinCapacity, rec, idgen.NewSequencer(0))
	opts.FS = fs

	openJournal(t, opts)
	assert.Equal(t, []string{"test-1", "test-2"}, fs.Opened())
	assert.Equal(t, []string{"v1", "v2", "v4", "v5"}, values(rec.Replayed()))
}
