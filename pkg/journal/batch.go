package journal

import (
	"fmt"
	"sync"
	"time"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/pkg/disk"
	"github.com/downfa11-org/go-journal/pkg/metrics"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/downfa11-org/go-journal/util"
)

// Batch stages entries that are committed together into one dedicated segment. Either
// every entry becomes durable or none does. A batch commits once.
type Batch[V any] struct {
	journal  *Journal[V]
	listener Listener[V]

	mu        sync.Mutex
	entries   []*entry[V]
	size      int64
	committed bool
}

// Append stages v. It fails with ErrBatchCommitted once the batch has been committed.
func (b *Batch[V]) Append(v V, typ byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.committed {
		return ErrBatchCommitted
	}
	e, err := b.journal.prepare(v, typ)
	if err != nil {
		return err
	}
	b.entries = append(b.entries, e)
	b.size += int64(codec.FrameSize(len(e.payload)))
	return nil
}

// Len is the number of staged entries.
func (b *Batch[V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Size is the number of bytes the staged entries occupy once framed.
func (b *Batch[V]) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Batch[V]) Committed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

// Entries returns the staged entries in order.
func (b *Batch[V]) Entries() []types.Entry[V] {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Entry[V], len(b.entries))
	for i, e := range b.entries {
		out[i] = e.Entry
	}
	return out
}

// Commit queues the batch and blocks until the writer has written or rolled it back.
func (b *Batch[V]) Commit() error {
	entries, err := b.seal()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	if !b.journal.enqueue(func() { done <- b.journal.commitBatch(b, entries) }) {
		b.unseal()
		return ErrClosed
	}
	return <-done
}

// CommitAsync queues the batch and returns. The outcome reaches the batch listener.
func (b *Batch[V]) CommitAsync() error {
	entries, err := b.seal()
	if err != nil {
		return err
	}

	if !b.journal.enqueue(func() {
		if err := b.journal.commitBatch(b, entries); err != nil {
			util.Error("journal %s: async batch commit failed: %v", b.journal.name, err)
		}
	}) {
		b.unseal()
		return ErrClosed
	}
	return nil
}

func (b *Batch[V]) seal() ([]*entry[V], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.committed {
		return nil, ErrBatchCommitted
	}
	b.committed = true
	return b.entries, nil
}

func (b *Batch[V]) unseal() {
	b.mu.Lock()
	b.committed = false
	b.mu.Unlock()
}

// commitBatch writes entries into a new batch segment sized to fit them exactly. On any
// failure the segment is deleted, the id generator rolled back and the listener told once.
func (j *Journal[V]) commitBatch(b *Batch[V], entries []*entry[V]) error {
	if len(entries) == 0 {
		return nil
	}
	start := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.shut {
		return ErrClosed
	}

	mark := j.opts.IDs.Last()
	pending := make([]types.Pending, len(entries))
	capacity := int64(codec.HeaderSize)
	for i, e := range entries {
		pending[i] = types.Pending{Type: e.Type, Payload: e.payload}
		capacity += int64(codec.FrameSize(len(e.payload)))
	}

	fail := func(err error) error {
		j.opts.IDs.NotifyHighest(mark)
		metrics.BatchFailures.WithLabelValues(j.name).Inc()
		util.Error("journal %s: batch of %d entries rolled back: %v", j.name, len(entries), err)
		l := b.listener
		j.notify(func() { l.OnBatchFailure(b, err) })
		return &SynchronousJournalError{Op: "commit batch", Err: err}
	}

	if capacity > int64(^uint32(0)) {
		return fail(fmt.Errorf("batch of %d bytes exceeds segment format limit", capacity))
	}
	seg, err := j.rollLocked(types.KindBatch, uint32(capacity))
	if err != nil {
		return fail(err)
	}

	out, ids, err := seg.AppendRecords(j.opts.IDs, pending)
	if err == nil && out != disk.Success {
		err = fmt.Errorf("batch segment %s rejected %d bytes: %s", seg.Path(), capacity, out)
	}
	if err != nil {
		j.segments.pop()
		if rerr := seg.Remove(); rerr != nil {
			util.Error("journal %s: failed to delete batch segment %s: %v", j.name, seg.Path(), rerr)
		}
		return fail(err)
	}

	metrics.BatchCommits.WithLabelValues(j.name).Inc()
	metrics.ObserveAppend(j.name, len(entries), int(capacity-codec.HeaderSize), time.Since(start))

	l := b.listener
	for i, e := range entries {
		rec := j.record(e, ids[i], seg)
		j.notify(func() { l.OnCommit(rec) })
	}
	return nil
}
