package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// RecordOverhead is the framing cost of one record: leading length, id, type, trailing length.
const RecordOverhead = 4 + 8 + 1 + 4

// Frame is one decoded record.
type Frame struct {
	ID      uint64
	Type    byte
	Payload []byte
}

// FrameSize is the on-disk size of a record carrying payloadLen bytes.
func FrameSize(payloadLen int) int {
	return RecordOverhead + payloadLen
}

// EncodeRecord frames a single record.
func EncodeRecord(id uint64, typ byte, payload []byte) []byte {
	return AppendRecord(make([]byte, 0, FrameSize(len(payload))), id, typ, payload)
}

// AppendRecord appends the framed record to dst and returns the extended slice.
func AppendRecord(dst []byte, id uint64, typ byte, payload []byte) []byte {
	size := uint32(FrameSize(len(payload)))
	dst = binary.BigEndian.AppendUint32(dst, size)
	dst = binary.BigEndian.AppendUint64(dst, id)
	dst = append(dst, typ)
	dst = append(dst, payload...)
	return binary.BigEndian.AppendUint32(dst, size)
}

// DecodeRecordAt reads the frame starting at pos. limit is the readable size of r.
//
// It returns ErrEndOfSegment when no further frame starts at pos (zero length or no room
// for a length field) and ErrCorruptFrame when the frame is truncated or its leading and
// trailing lengths disagree. On success the position of the next frame is returned.
func DecodeRecordAt(r io.ReaderAt, pos, limit int64) (Frame, int64, error) {
	if pos+4 > limit {
		return Frame{}, pos, ErrEndOfSegment
	}

	var lenBuf [4]byte
	if err := readFull(r, lenBuf[:], pos); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, pos, ErrEndOfSegment
		}
		return Frame{}, pos, err
	}

	size := int64(binary.BigEndian.Uint32(lenBuf[:]))
	if size == 0 {
		return Frame{}, pos, ErrEndOfSegment
	}
	if size < RecordOverhead {
		return Frame{}, pos, fmt.Errorf("%w: frame length %d below overhead at %d", ErrCorruptFrame, size, pos)
	}
	if pos+size > limit {
		return Frame{}, pos, fmt.Errorf("%w: frame of %d bytes at %d exceeds %d", ErrCorruptFrame, size, pos, limit)
	}

	buf := make([]byte, size)
	if err := readFull(r, buf, pos); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, pos, fmt.Errorf("%w: truncated frame at %d", ErrCorruptFrame, pos)
		}
		return Frame{}, pos, err
	}

	trailing := int64(binary.BigEndian.Uint32(buf[size-4:]))
	if trailing != size {
		return Frame{}, pos, fmt.Errorf("%w: leading length %d, trailing length %d at %d", ErrCorruptFrame, size, trailing, pos)
	}

	return Frame{
		ID:      binary.BigEndian.Uint64(buf[4:12]),
		Type:    buf[12],
		Payload: buf[13 : size-4],
	}, pos + size, nil
}

func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}
