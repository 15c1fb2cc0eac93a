package types

import "fmt"

// SegmentKind tells how a segment came to exist.
type SegmentKind uint8

const (
	KindNormal   SegmentKind = 1
	KindOverflow SegmentKind = 2
	KindBatch    SegmentKind = 3
)

func (k SegmentKind) Valid() bool {
	return k >= KindNormal && k <= KindBatch
}

func (k SegmentKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindOverflow:
		return "overflow"
	case KindBatch:
		return "batch"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// SegmentInfo is a read-only snapshot of a segment's metadata.
type SegmentInfo struct {
	Path     string
	Sequence uint64
	Kind     SegmentKind
	Capacity uint32
	Used     int64
	Closed   bool
}
