package types

// Record is a committed or replayed journal record.
type Record[V any] struct {
	ID    uint64
	Type  byte
	Value V
	// Segment is the sequence number of the segment holding the record.
	Segment uint64
}

// Entry is a value submitted for appending that has not been committed yet.
type Entry[V any] struct {
	Value V
	Type  byte
}

// Pending is an already-encoded entry waiting to be framed onto disk.
type Pending struct {
	Type    byte
	Payload []byte
}
