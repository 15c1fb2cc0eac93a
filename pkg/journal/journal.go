// Package journal implements a segment-based, disk-backed write-ahead journal.
//
// A journal appends typed records into fixed-capacity segment files. One writer
// goroutine per journal applies queued appends and batch commits in FIFO order; direct
// synchronous calls share the same code path under the segment chain lock. On Open,
// existing segments are replayed to the listener before any new write is accepted.
package journal

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/pkg/disk"
	"github.com/downfa11-org/go-journal/pkg/metrics"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/downfa11-org/go-journal/util"
	"github.com/eapache/channels"
	"github.com/google/uuid"
)

// Journal is a named, disk-backed journal of values of type V.
type Journal[V any] struct {
	name string
	id   uuid.UUID
	opts Options[V]

	mu       sync.Mutex // segment chain, sequence allocation
	segments chain
	shut     bool
	sequence atomic.Uint64

	queue     *channels.InfiniteChannel
	enqueueMu sync.RWMutex
	closed    atomic.Bool

	dispatcher     *Dispatcher
	ownsDispatcher bool

	closeOnce sync.Once
	closeErr  error
	shutdown  sync.WaitGroup
}

// entry is a value with its payload encoded once, so retries never re-encode it.
type entry[V any] struct {
	types.Entry[V]
	payload []byte
}

// Open validates opts, replays any segments already present in opts.Dir and starts the
// writer goroutine. A listener that aborts replay, or a reader that rejects a recovered
// record, makes Open fail with ErrReplayAborted.
func Open[V any](name string, opts Options[V]) (*Journal[V], error) {
	if err := opts.validate(name); err != nil {
		return nil, err
	}
	if err := opts.FS.MkdirAll(opts.Dir); err != nil {
		return nil, &ConfigError{Field: "dir", Reason: "cannot create journal directory", Err: err}
	}

	j := &Journal[V]{
		name:  name,
		id:    uuid.New(),
		opts:  opts,
		queue: channels.NewInfiniteChannel(),
	}
	if opts.Dispatcher != nil {
		j.dispatcher = opts.Dispatcher
	} else {
		j.dispatcher = NewDispatcher(opts.ListenerWorkers)
		j.ownsDispatcher = true
	}

	j.mu.Lock()
	err := j.replay()
	if err != nil {
		j.segments.retire()
	}
	j.mu.Unlock()
	if err != nil {
		j.queue.Close()
		if j.ownsDispatcher {
			j.dispatcher.Close()
		}
		return nil, err
	}

	j.shutdown.Add(1)
	go func() {
		defer j.shutdown.Done()
		j.writeLoop()
	}()

	metrics.JournalsOpen.Inc()
	util.Info("journal %s opened (id=%s, dir=%s, segment_size=%d, last_record=%d)",
		name, j.id, opts.Dir, opts.SegmentSize, opts.IDs.Last())
	return j, nil
}

func (j *Journal[V]) Name() string                   { return j.name }
func (j *Journal[V]) ID() uuid.UUID                  { return j.id }
func (j *Journal[V]) Dir() string                    { return j.opts.Dir }
func (j *Journal[V]) Reader() EntryReader[V]         { return j.opts.Reader }
func (j *Journal[V]) Writer() EntryWriter[V]         { return j.opts.Writer }
func (j *Journal[V]) IDGenerator() RecordIDGenerator { return j.opts.IDs }
func (j *Journal[V]) Naming() NamingStrategy         { return j.opts.Naming }

// LastRecordID returns the id most recently handed out by the id generator.
func (j *Journal[V]) LastRecordID() uint64 { return j.opts.IDs.Last() }

// NextSequence reserves the next segment sequence number.
func (j *Journal[V]) NextSequence() uint64 { return j.sequence.Add(1) }

// Segments lists the segments known to this journal, oldest first.
func (j *Journal[V]) Segments() []types.SegmentInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.segments.infos()
}

// Append queues v for writing and returns immediately. The outcome is reported to the
// journal listener. It is a no-op once the journal is closed. Encoding errors are returned.
func (j *Journal[V]) Append(v V, typ byte) error {
	return j.AppendWith(v, typ, nil)
}

// AppendWith is Append reporting to l instead of the journal listener.
func (j *Journal[V]) AppendWith(v V, typ byte, l Listener[V]) error {
	if j.closed.Load() {
		return nil
	}
	e, err := j.prepare(v, typ)
	if err != nil {
		return err
	}
	l = j.listenerOr(l)

	j.enqueue(func() {
		rec, err := j.appendEntry(e)
		if err != nil {
			util.Error("journal %s: append failed: %v", j.name, err)
			j.notify(func() { l.OnFailure(e.Entry, err) })
			return
		}
		j.notify(func() { l.OnCommit(rec) })
	})
	return nil
}

// AppendSync writes v before returning. Write failures are returned, not reported to
// the listener; the commit notification still goes to the listener.
func (j *Journal[V]) AppendSync(v V, typ byte) error {
	return j.AppendSyncWith(v, typ, nil)
}

// AppendSyncWith is AppendSync reporting the commit to l.
func (j *Journal[V]) AppendSyncWith(v V, typ byte, l Listener[V]) error {
	if j.closed.Load() {
		return ErrClosed
	}
	e, err := j.prepare(v, typ)
	if err != nil {
		return err
	}
	l = j.listenerOr(l)

	rec, err := j.appendEntry(e)
	if err != nil {
		return err
	}
	j.notify(func() { l.OnCommit(rec) })
	return nil
}

// StartBatch returns an empty batch reporting to the journal listener.
func (j *Journal[V]) StartBatch() *Batch[V] {
	return j.StartBatchWith(nil)
}

// StartBatchWith returns an empty batch reporting to l.
func (j *Journal[V]) StartBatchWith(l Listener[V]) *Batch[V] {
	return &Batch[V]{journal: j, listener: j.listenerOr(l)}
}

// Close stops accepting work, drains queued operations, closes the open segment and,
// if the journal started its own dispatcher, waits for pending notifications.
// Calling Close more than once is safe.
func (j *Journal[V]) Close() error {
	j.closeOnce.Do(func() {
		j.enqueueMu.Lock()
		j.closed.Store(true)
		j.queue.Close()
		j.enqueueMu.Unlock()

		j.shutdown.Wait()

		j.mu.Lock()
		j.shut = true
		if top := j.segments.top(); top != nil {
			if err := top.Close(); err != nil {
				j.closeErr = err
			}
		}
		j.mu.Unlock()

		if j.ownsDispatcher {
			j.dispatcher.Close()
		}
		metrics.JournalsOpen.Dec()
		util.Info("journal %s closed", j.name)

		if j.opts.onClose != nil {
			j.opts.onClose()
		}
	})
	return j.closeErr
}

func (j *Journal[V]) listenerOr(l Listener[V]) Listener[V] {
	if l != nil {
		return l
	}
	return j.opts.Listener
}

func (j *Journal[V]) prepare(v V, typ byte) (*entry[V], error) {
	payload, err := j.opts.Writer.Write(v, typ)
	if err != nil {
		return nil, &SynchronousJournalError{Op: "encode entry", Err: err}
	}
	return &entry[V]{Entry: types.Entry[V]{Value: v, Type: typ}, payload: payload}, nil
}

func (j *Journal[V]) enqueue(op func()) bool {
	j.enqueueMu.RLock()
	defer j.enqueueMu.RUnlock()

	if j.closed.Load() {
		return false
	}
	j.queue.In() <- op
	return true
}

func (j *Journal[V]) writeLoop() {
	for op := range j.queue.Out() {
		op.(func())()
		metrics.QueueDepth.WithLabelValues(j.name).Set(float64(j.queue.Len()))
	}
}

func (j *Journal[V]) notify(fn func()) {
	j.dispatcher.Submit(j.name, fn)
}

// appendEntry is the single append path shared by queued and direct callers.
func (j *Journal[V]) appendEntry(e *entry[V]) (types.Record[V], error) {
	start := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.shut {
		return types.Record[V]{}, ErrClosed
	}

	rec, err := j.appendLocked(e)
	if err != nil {
		metrics.AppendFailures.WithLabelValues(j.name).Inc()
		return rec, err
	}
	metrics.ObserveAppend(j.name, 1, codec.FrameSize(len(e.payload)), time.Since(start))
	return rec, nil
}

func (j *Journal[V]) appendLocked(e *entry[V]) (types.Record[V], error) {
	seg := j.segments.top()
	if seg == nil {
		var err error
		if seg, err = j.rollLocked(types.KindNormal, uint32(j.opts.SegmentSize)); err != nil {
			return types.Record[V]{}, err
		}
	}

	out, id, err := seg.AppendRecord(j.opts.IDs, e.Type, e.payload)
	if err != nil {
		return types.Record[V]{}, err
	}
	if out == disk.Success {
		return j.record(e, id, seg), nil
	}

	frame := int64(codec.FrameSize(len(e.payload)))
	if frame <= int64(j.opts.SegmentSize)-codec.HeaderSize {
		// fits a fresh normal segment
		if seg, err = j.rollLocked(types.KindNormal, uint32(j.opts.SegmentSize)); err != nil {
			return types.Record[V]{}, err
		}
		out, id, err = seg.AppendRecord(j.opts.IDs, e.Type, e.payload)
		if err != nil {
			return types.Record[V]{}, err
		}
		if out != disk.Success {
			return types.Record[V]{}, &SynchronousJournalError{
				Op:  "append",
				Err: fmt.Errorf("fresh segment %s rejected %d byte record: %s", seg.Path(), frame, out),
			}
		}
		return j.record(e, id, seg), nil
	}

	capacity := frame + codec.HeaderSize
	if capacity > int64(^uint32(0)) {
		return types.Record[V]{}, &SynchronousJournalError{Op: "overflow append", Err: fmt.Errorf("record of %d bytes exceeds segment format limit", frame)}
	}
	if seg, err = j.rollLocked(types.KindOverflow, uint32(capacity)); err != nil {
		return types.Record[V]{}, &SynchronousJournalError{Op: "overflow append", Err: err}
	}
	metrics.OverflowSegments.WithLabelValues(j.name).Inc()

	out, id, err = seg.AppendRecord(j.opts.IDs, e.Type, e.payload)
	if err == nil && out != disk.Success {
		err = fmt.Errorf("overflow segment %s rejected %d byte record: %s", seg.Path(), frame, out)
	}
	if err != nil {
		return types.Record[V]{}, &SynchronousJournalError{Op: "overflow append", Err: err}
	}
	return j.record(e, id, seg), nil
}

// rollLocked creates a segment of the given kind and capacity and makes it the append target.
func (j *Journal[V]) rollLocked(kind types.SegmentKind, capacity uint32) (*disk.Segment, error) {
	seq := j.sequence.Add(1)
	path := filepath.Join(j.opts.Dir, j.opts.Naming.Generate(seq))

	seg, err := disk.Create(j.opts.FS, path, seq, capacity, kind, j.opts.SyncWrites)
	if err != nil {
		return nil, err
	}
	j.segments.push(seg)
	metrics.SegmentsCreated.WithLabelValues(j.name, kind.String()).Inc()
	return seg, nil
}

func (j *Journal[V]) record(e *entry[V], id uint64, seg *disk.Segment) types.Record[V] {
	return types.Record[V]{ID: id, Type: e.Type, Value: e.Value, Segment: seg.Sequence()}
}
