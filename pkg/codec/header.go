package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/downfa11-org/go-journal/pkg/types"
)

const (
	// HeaderSize is the encoded size of a segment header.
	HeaderSize = 25
	// Version is the only segment format version this package writes and reads.
	Version uint32 = 1
	// MinCapacity is the smallest capacity a normal segment may be configured with.
	MinCapacity = 1024
)

// Magic marks the first four bytes of every segment file.
var Magic = [4]byte{0xFE, 0xEE, 0xEE, 0xEF}

var (
	ErrCorruptHeader = errors.New("corrupt segment header")
	ErrCorruptFrame  = errors.New("corrupt record frame")
	// ErrEndOfSegment marks a clean end of the written area.
	ErrEndOfSegment = errors.New("end of segment")
)

// Header is written once at offset 0 when a segment is created.
type Header struct {
	Version         uint32
	Capacity        uint32
	Sequence        uint64
	Kind            types.SegmentKind
	FirstDataOffset uint32
}

func NewHeader(sequence uint64, capacity uint32, kind types.SegmentKind) Header {
	return Header{
		Version:         Version,
		Capacity:        capacity,
		Sequence:        sequence,
		Kind:            kind,
		FirstDataOffset: HeaderSize,
	}
}

// EncodeHeader returns the HeaderSize-byte big-endian encoding of h.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	PutHeader(buf, h)
	return buf
}

// PutHeader writes h into the first HeaderSize bytes of dst.
func PutHeader(dst []byte, h Header) {
	_ = dst[HeaderSize-1]
	copy(dst[0:4], Magic[:])
	binary.BigEndian.PutUint32(dst[4:8], h.Version)
	binary.BigEndian.PutUint32(dst[8:12], h.Capacity)
	binary.BigEndian.PutUint64(dst[12:20], h.Sequence)
	dst[20] = byte(h.Kind)
	binary.BigEndian.PutUint32(dst[21:25], h.FirstDataOffset)
}

// DecodeHeader parses a segment header. Any structural problem is reported as ErrCorruptHeader.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrCorruptHeader, len(b))
	}
	if b[0] != Magic[0] || b[1] != Magic[1] || b[2] != Magic[2] || b[3] != Magic[3] {
		return Header{}, fmt.Errorf("%w: bad magic % x", ErrCorruptHeader, b[0:4])
	}

	h := Header{
		Version:         binary.BigEndian.Uint32(b[4:8]),
		Capacity:        binary.BigEndian.Uint32(b[8:12]),
		Sequence:        binary.BigEndian.Uint64(b[12:20]),
		Kind:            types.SegmentKind(b[20]),
		FirstDataOffset: binary.BigEndian.Uint32(b[21:25]),
	}

	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptHeader, h.Version)
	}
	if !h.Kind.Valid() {
		return Header{}, fmt.Errorf("%w: unknown segment kind %d", ErrCorruptHeader, uint8(h.Kind))
	}
	if h.FirstDataOffset < HeaderSize || h.FirstDataOffset > h.Capacity {
		return Header{}, fmt.Errorf("%w: first data offset %d outside [%d, %d]",
			ErrCorruptHeader, h.FirstDataOffset, HeaderSize, h.Capacity)
	}
	return h, nil
}
