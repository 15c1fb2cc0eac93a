package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/pkg/disk"
	"github.com/downfa11-org/go-journal/pkg/metrics"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/downfa11-org/go-journal/util"
)

// scanned is one segment file recovered during replay.
type scanned struct {
	path   string
	header codec.Header
	end    int64
	frames []codec.Frame
}

// replay rebuilds the segment chain from disk and announces every recovered record to
// the journal listener. It runs before the writer starts, with j.mu held.
func (j *Journal[V]) replay() error {
	names, err := j.opts.FS.ReadDir(j.opts.Dir)
	if err != nil {
		return &ConfigError{Field: "dir", Reason: "cannot list journal directory", Err: err}
	}

	var (
		maxSeq   uint64
		segments []scanned
		records  []types.Record[V]
	)
	for _, name := range names {
		if !j.opts.Naming.IsJournalFile(name) {
			continue
		}
		if seq, err := j.opts.Naming.ExtractSequence(name); err == nil && seq > maxSeq {
			maxSeq = seq
		}

		path := filepath.Join(j.opts.Dir, name)
		seg, err := j.scanSegment(path)
		if err != nil {
			util.Warn("journal %s: skipping unreadable segment %s: %v", j.name, path, err)
			continue
		}
		if seg == nil {
			continue
		}
		recs, err := j.decodeSegment(seg)
		if err != nil {
			return err
		}
		if seg.header.Sequence > maxSeq {
			maxSeq = seg.header.Sequence
		}
		segments = append(segments, *seg)
		records = append(records, recs...)
	}

	sort.Slice(segments, func(a, b int) bool { return segments[a].header.Sequence < segments[b].header.Sequence })
	sort.SliceStable(records, func(a, b int) bool { return records[a].ID < records[b].ID })

	l := j.opts.Listener
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if cur.ID == prev.ID+1 {
			continue
		}
		metrics.ReplayGaps.WithLabelValues(j.name).Inc()
		util.Warn("journal %s: record id gap between %d and %d", j.name, prev.ID, cur.ID)

		res, err := safeReplayCall(func() types.ReplayResult { return l.OnReplayGap(prev, cur) })
		if err != nil || res == types.Except {
			return &ReplayAbortedError{Phase: "gap check", RecordID: cur.ID, Cause: err}
		}
		if res == types.Terminate {
			break
		}
	}

	j.restoreChain(segments)
	j.sequence.Store(maxSeq)

	for _, rec := range records {
		rec := rec
		res, err := safeReplayCall(func() types.ReplayResult { return l.OnReplayRecord(rec) })
		if err != nil || res == types.Except {
			return &ReplayAbortedError{Phase: "announce", RecordID: rec.ID, Cause: err}
		}
		j.opts.IDs.NotifyHighest(rec.ID)
		metrics.RecordsReplayed.WithLabelValues(j.name).Inc()
		if res == types.Terminate {
			util.Info("journal %s: replay terminated by listener at record %d", j.name, rec.ID)
			break
		}
	}

	if len(segments) > 0 {
		util.Info("journal %s: replayed %d records from %d segments", j.name, len(records), len(segments))
	}
	return nil
}

// scanSegment walks the frames of one file without decoding them. An incomplete batch
// segment is discarded and removed, since its batch was never acknowledged. A nil
// scanned result means the file was discarded.
func (j *Journal[V]) scanSegment(path string) (*scanned, error) {
	res, err := disk.ScanFS(j.opts.FS, path, nil)
	if err != nil {
		return nil, err
	}

	if res.Torn != nil {
		metrics.TornSegments.WithLabelValues(j.name).Inc()
		util.Warn("journal %s: %s ends in a torn write after %d records: %v", j.name, path, len(res.Frames), res.Torn)
	}

	if res.Header.Kind == types.KindBatch && (res.Torn != nil || res.End != int64(res.Header.Capacity)) {
		util.Warn("journal %s: discarding incomplete batch segment %s", j.name, path)
		if err := j.opts.FS.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			util.Error("journal %s: failed to remove incomplete batch segment %s: %v", j.name, path, err)
		}
		return nil, nil
	}

	return &scanned{path: path, header: res.Header, end: res.End, frames: res.Frames}, nil
}

// decodeSegment turns the frames of a scanned segment into records. A frame the reader
// rejects aborts replay before any file is reopened, so the segment stays untouched.
func (j *Journal[V]) decodeSegment(s *scanned) ([]types.Record[V], error) {
	recs := make([]types.Record[V], 0, len(s.frames))
	for _, f := range s.frames {
		v, err := j.opts.Reader.Read(f.ID, f.Type, f.Payload)
		if err != nil {
			return nil, &ReplayAbortedError{Phase: "decode", RecordID: f.ID, Cause: fmt.Errorf("%s: %w", s.path, err)}
		}
		recs = append(recs, types.Record[V]{ID: f.ID, Type: f.Type, Value: v, Segment: s.header.Sequence})
	}
	return recs, nil
}

// restoreChain records older segments as history and reopens the newest for appending.
func (j *Journal[V]) restoreChain(segments []scanned) {
	for i, s := range segments {
		info := types.SegmentInfo{
			Path:     s.path,
			Sequence: s.header.Sequence,
			Kind:     s.header.Kind,
			Capacity: s.header.Capacity,
			Used:     s.end,
			Closed:   true,
		}
		if i < len(segments)-1 {
			j.segments.remember(info)
			continue
		}

		seg, err := disk.OpenForAppend(j.opts.FS, s.path, s.end, j.opts.SyncWrites)
		if err != nil {
			util.Warn("journal %s: cannot resume %s, starting a new segment: %v", j.name, s.path, err)
			j.segments.remember(info)
			continue
		}
		j.segments.push(seg)
	}
}
