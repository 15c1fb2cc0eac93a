package disk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/downfa11-org/go-journal/util"
)

var (
	ErrSegmentClosed   = errors.New("segment closed")
	ErrSegmentReadOnly = errors.New("segment opened read-only")
)

// Outcome is the result of an append attempt that did not hit an I/O error.
type Outcome int

const (
	Success Outcome = iota
	// SegmentFull means the record fits an empty segment of this capacity but not the space left here.
	SegmentFull
	// PayloadTooLarge means the record can never fit a segment of this capacity.
	PayloadTooLarge
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SegmentFull:
		return "segment full"
	case PayloadTooLarge:
		return "payload too large"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// IDSource hands out record ids. Ids are only drawn once a record is known to fit.
type IDSource interface {
	Next() uint64
}

// Segment is one capacity-bounded append-only journal file.
type Segment struct {
	mu sync.Mutex // cursor, file handle

	fs     FileSystem
	path   string
	header codec.Header
	file   File
	cursor int64

	syncWrites bool
	readOnly   bool
	closed     bool
}

// Create allocates a new segment file of exactly capacity bytes and writes its header.
func Create(fs FileSystem, path string, sequence uint64, capacity uint32, kind types.SegmentKind, syncWrites bool) (*Segment, error) {
	if capacity < codec.HeaderSize {
		return nil, fmt.Errorf("segment capacity %d smaller than header", capacity)
	}

	f, err := fs.Create(path)
	if err != nil {
		return nil, ioErr("create", path, err)
	}

	h := codec.NewHeader(sequence, capacity, kind)
	if err := preallocate(f, int64(capacity)); err != nil {
		_ = f.Close()
		_ = fs.Remove(path)
		return nil, ioErr("preallocate", path, err)
	}
	if _, err := f.WriteAt(codec.EncodeHeader(h), 0); err != nil {
		_ = f.Close()
		_ = fs.Remove(path)
		return nil, ioErr("write header", path, err)
	}
	if syncWrites {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			_ = fs.Remove(path)
			return nil, ioErr("sync", path, err)
		}
	}
	adviseSequential(f)

	util.Debug("created %s segment %s (seq=%d, capacity=%d)", kind, path, sequence, capacity)
	return &Segment{
		fs:         fs,
		path:       path,
		header:     h,
		file:       f,
		cursor:     int64(h.FirstDataOffset),
		syncWrites: syncWrites,
	}, nil
}

// OpenExisting opens a segment read-only and validates its header.
func OpenExisting(fs FileSystem, path string) (*Segment, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	h, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	adviseSequential(f)

	return &Segment{
		fs:       fs,
		path:     path,
		header:   h,
		file:     f,
		cursor:   int64(h.FirstDataOffset),
		readOnly: true,
	}, nil
}

// OpenForAppend reopens a segment for writing at position pos, which must be the end of its
// valid data. Any bytes left behind pos by a torn write are zeroed.
func OpenForAppend(fs FileSystem, path string, pos int64, syncWrites bool) (*Segment, error) {
	f, err := fs.OpenWritable(path)
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	h, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if pos < int64(h.FirstDataOffset) || pos > int64(h.Capacity) {
		_ = f.Close()
		return nil, fmt.Errorf("%s: resume position %d outside data area [%d, %d]", path, pos, h.FirstDataOffset, h.Capacity)
	}

	if err := preallocate(f, int64(h.Capacity)); err != nil {
		_ = f.Close()
		return nil, ioErr("preallocate", path, err)
	}
	if err := zeroTail(f, pos, int64(h.Capacity)); err != nil {
		_ = f.Close()
		return nil, ioErr("zero tail", path, err)
	}

	return &Segment{
		fs:         fs,
		path:       path,
		header:     h,
		file:       f,
		cursor:     pos,
		syncWrites: syncWrites,
	}, nil
}

func readHeader(f File) (codec.Header, error) {
	buf := make([]byte, codec.HeaderSize)
	n, err := f.ReadAt(buf, 0)
	if n < codec.HeaderSize {
		if err == nil {
			err = fmt.Errorf("short read")
		}
		return codec.Header{}, fmt.Errorf("%w: %v", codec.ErrCorruptHeader, err)
	}
	return codec.DecodeHeader(buf)
}

const zeroChunk = 64 << 10

// zeroTail clears [from, limit). A torn frame starting at from is cleared through its
// declared length; past that, zeroing stops at the first chunk that is already blank.
func zeroTail(f File, from, limit int64) error {
	frameEnd := from
	var lenBuf [4]byte
	if from+4 <= limit {
		if n, _ := f.ReadAt(lenBuf[:], from); n == len(lenBuf) {
			frameEnd = from + int64(binary.BigEndian.Uint32(lenBuf[:]))
			if frameEnd > limit {
				frameEnd = limit
			}
		}
	}

	zeros := make([]byte, zeroChunk)
	buf := make([]byte, zeroChunk)
	for pos := from; pos < limit; pos += zeroChunk {
		n := int64(zeroChunk)
		if pos+n > limit {
			n = limit - pos
		}
		if pos >= frameEnd {
			read, _ := f.ReadAt(buf[:n], pos)
			if bytes.Equal(buf[:read], zeros[:read]) && int64(read) == n {
				return nil
			}
		}
		if _, err := f.WriteAt(zeros[:n], pos); err != nil {
			return err
		}
	}
	return nil
}

func (s *Segment) Path() string         { return s.path }
func (s *Segment) Header() codec.Header { return s.header }
func (s *Segment) Sequence() uint64     { return s.header.Sequence }

func (s *Segment) Kind() types.SegmentKind { return s.header.Kind }

// Position returns the offset the next record will be written at.
func (s *Segment) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Segment) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Segment) Info() types.SegmentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SegmentInfo{
		Path:     s.path,
		Sequence: s.header.Sequence,
		Kind:     s.header.Kind,
		Capacity: s.header.Capacity,
		Used:     s.cursor,
		Closed:   s.closed,
	}
}

// dataCapacity is the room an empty segment of this capacity has for records.
func (s *Segment) dataCapacity() int64 {
	return int64(s.header.Capacity) - int64(s.header.FirstDataOffset)
}

func (s *Segment) check(size int64) Outcome {
	if size > s.dataCapacity() {
		return PayloadTooLarge
	}
	if s.cursor+size > int64(s.header.Capacity) {
		return SegmentFull
	}
	return Success
}

func (s *Segment) writable() error {
	if s.closed {
		return ErrSegmentClosed
	}
	if s.readOnly {
		return ErrSegmentReadOnly
	}
	return nil
}

// AppendRecord frames one record at the cursor. The id is drawn from ids only on Success.
func (s *Segment) AppendRecord(ids IDSource, typ byte, payload []byte) (Outcome, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return Success, 0, err
	}
	if out := s.check(int64(codec.FrameSize(len(payload)))); out != Success {
		return out, 0, nil
	}

	id := ids.Next()
	if err := s.write(codec.EncodeRecord(id, typ, payload)); err != nil {
		return Success, id, err
	}
	return Success, id, nil
}

// AppendRecords frames all entries into one buffer and writes it with a single call.
// A failed write leaves the segment contents undefined.
func (s *Segment) AppendRecords(ids IDSource, entries []types.Pending) (Outcome, []uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return Success, nil, err
	}

	var total int64
	for _, e := range entries {
		total += int64(codec.FrameSize(len(e.Payload)))
	}
	if out := s.check(total); out != Success {
		return out, nil, nil
	}

	buf := make([]byte, 0, total)
	recordIDs := make([]uint64, len(entries))
	for i, e := range entries {
		recordIDs[i] = ids.Next()
		buf = codec.AppendRecord(buf, recordIDs[i], e.Type, e.Payload)
	}
	if err := s.write(buf); err != nil {
		return Success, recordIDs, err
	}
	return Success, recordIDs, nil
}

func (s *Segment) write(buf []byte) error {
	if _, err := s.file.WriteAt(buf, s.cursor); err != nil {
		return ioErr("append", s.path, err)
	}
	if s.syncWrites {
		if err := s.file.Sync(); err != nil {
			return ioErr("sync", s.path, err)
		}
	}
	s.cursor += int64(len(buf))
	return nil
}

// Close releases the file handle. Calling it again is a no-op.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if !s.readOnly && s.syncWrites {
		err = s.file.Sync()
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return ioErr("close", s.path, err)
}

// Remove closes the segment and deletes its file.
func (s *Segment) Remove() error {
	if err := s.Close(); err != nil {
		util.Warn("closing %s before removal: %v", s.path, err)
	}
	return ioErr("remove", s.path, s.fs.Remove(s.path))
}
