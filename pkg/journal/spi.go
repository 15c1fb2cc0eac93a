package journal

import "github.com/downfa11-org/go-journal/pkg/types"

// NamingStrategy maps segment sequence numbers to file names and back.
type NamingStrategy interface {
	Generate(seq uint64) string
	IsJournalFile(name string) bool
	ExtractSequence(name string) (uint64, error)
}

// EntryReader decodes a record payload into a domain value.
type EntryReader[V any] interface {
	Read(id uint64, typ byte, data []byte) (V, error)
}

// EntryWriter encodes a domain value into a record payload.
type EntryWriter[V any] interface {
	Write(v V, typ byte) ([]byte, error)
}

// Codec is an EntryReader and EntryWriter in one.
type Codec[V any] interface {
	EntryReader[V]
	EntryWriter[V]
}

// RecordIDGenerator issues record ids. It must be safe for concurrent use.
type RecordIDGenerator interface {
	Next() uint64
	Last() uint64
	// NotifyHighest sets the last issued id, both to resume after replay and to roll back.
	NotifyHighest(id uint64)
}

// Listener receives commit, failure and replay notifications. Commit and failure
// callbacks run on the journal's dispatcher, never on the writer goroutine. Replay
// callbacks run on the goroutine calling Open.
type Listener[V any] interface {
	OnCommit(r types.Record[V])
	OnFailure(e types.Entry[V], err error)
	OnBatchFailure(b *Batch[V], err error)
	OnReplayGap(prev, cur types.Record[V]) types.ReplayResult
	OnReplayRecord(r types.Record[V]) types.ReplayResult
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are no-ops and nil
// replay callbacks answer Continue.
type ListenerFuncs[V any] struct {
	Commit       func(r types.Record[V])
	Failure      func(e types.Entry[V], err error)
	BatchFailure func(b *Batch[V], err error)
	ReplayGap    func(prev, cur types.Record[V]) types.ReplayResult
	ReplayRecord func(r types.Record[V]) types.ReplayResult
}

var _ Listener[any] = ListenerFuncs[any]{}

func (f ListenerFuncs[V]) OnCommit(r types.Record[V]) {
	if f.Commit != nil {
		f.Commit(r)
	}
}

func (f ListenerFuncs[V]) OnFailure(e types.Entry[V], err error) {
	if f.Failure != nil {
		f.Failure(e, err)
	}
}

func (f ListenerFuncs[V]) OnBatchFailure(b *Batch[V], err error) {
	if f.BatchFailure != nil {
		f.BatchFailure(b, err)
	}
}

func (f ListenerFuncs[V]) OnReplayGap(prev, cur types.Record[V]) types.ReplayResult {
	if f.ReplayGap != nil {
		return f.ReplayGap(prev, cur)
	}
	return types.Continue
}

func (f ListenerFuncs[V]) OnReplayRecord(r types.Record[V]) types.ReplayResult {
	if f.ReplayRecord != nil {
		return f.ReplayRecord(r)
	}
	return types.Continue
}
