package bench

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/downfa11-org/go-journal/pkg/idgen"
	"github.com/downfa11-org/go-journal/pkg/journal"
	"github.com/downfa11-org/go-journal/pkg/naming"
	"github.com/downfa11-org/go-journal/pkg/serde"
	"github.com/downfa11-org/go-journal/pkg/types"
)

type BenchmarkRunner struct {
	Dir                string
	SegmentSize        int
	SyncWrites         bool
	NumProducers       int
	RecordsPerProducer int
	PayloadSize        int
	// BatchSize > 0 commits records in batches of this size instead of appending them one by one.
	BatchSize int
}

type Result struct {
	Records    int
	Bytes      int64
	Failures   int64
	Segments   int
	Duration   time.Duration
	Throughput float64
}

func NewBenchmarkRunner(dir string, producers, records, payloadSize, batchSize int, syncWrites bool) *BenchmarkRunner {
	return &BenchmarkRunner{
		Dir:                dir,
		SegmentSize:        journal.DefaultSegmentSize,
		SyncWrites:         syncWrites,
		NumProducers:       producers,
		RecordsPerProducer: records,
		PayloadSize:        payloadSize,
		BatchSize:          batchSize,
	}
}

// Run appends NumProducers*RecordsPerProducer records and waits until every commit has
// been acknowledged by the listener.
func (b *BenchmarkRunner) Run() (*Result, error) {
	total := b.NumProducers * b.RecordsPerProducer
	var settled, failed atomic.Int64
	done := make(chan struct{})
	settle := func(n int64) {
		if settled.Add(n) == int64(total) {
			close(done)
		}
	}

	opts := journal.Options[[]byte]{
		Dir:         b.Dir,
		SegmentSize: b.SegmentSize,
		SyncWrites:  b.SyncWrites,
		Naming:      naming.NewPrefix("bench"),
		IDs:         idgen.NewSequencer(0),
		Listener: journal.ListenerFuncs[[]byte]{
			Commit: func(types.Record[[]byte]) { settle(1) },
			Failure: func(types.Entry[[]byte], error) {
				failed.Add(1)
				settle(1)
			},
			BatchFailure: func(bt *journal.Batch[[]byte], _ error) {
				failed.Add(int64(bt.Len()))
				settle(int64(bt.Len()))
			},
		},
	}.WithCodec(serde.Bytes{})

	j, err := journal.Open("bench", opts)
	if err != nil {
		return nil, err
	}

	payload := bytes.Repeat([]byte{'x'}, b.PayloadSize)
	start := time.Now()

	var wg sync.WaitGroup
	errs := make(chan error, b.NumProducers)
	for i := 0; i < b.NumProducers; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			if err := b.produce(j, payload); err != nil {
				errs <- fmt.Errorf("producer %d: %w", pid, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	if total > 0 {
		<-done
	}
	duration := time.Since(start)
	segments := len(j.Segments())
	if err := j.Close(); err != nil {
		return nil, err
	}
	for err := range errs {
		return nil, err
	}

	return &Result{
		Records:    total,
		Bytes:      int64(total) * int64(b.PayloadSize),
		Failures:   failed.Load(),
		Segments:   segments,
		Duration:   duration,
		Throughput: float64(total) / duration.Seconds(),
	}, nil
}

func (b *BenchmarkRunner) produce(j *journal.Journal[[]byte], payload []byte) error {
	if b.BatchSize <= 0 {
		for n := 0; n < b.RecordsPerProducer; n++ {
			if err := j.Append(payload, 1); err != nil {
				return err
			}
		}
		return nil
	}

	for n := 0; n < b.RecordsPerProducer; {
		batch := j.StartBatch()
		for k := 0; k < b.BatchSize && n < b.RecordsPerProducer; k++ {
			if err := batch.Append(payload, 1); err != nil {
				return err
			}
			n++
		}
		if err := batch.CommitAsync(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Result) Print(w io.Writer) {
	fmt.Fprintf(w, "\nBENCHMARK RESULT [journal]\n")
	fmt.Fprintf(w, "-------------------------------------\n")
	fmt.Fprintf(w, " Records       : %d\n", r.Records)
	fmt.Fprintf(w, " Payload bytes : %d\n", r.Bytes)
	fmt.Fprintf(w, " Failures      : %d\n", r.Failures)
	fmt.Fprintf(w, " Segments      : %d\n", r.Segments)
	fmt.Fprintf(w, " Duration      : %v\n", r.Duration)
	fmt.Fprintf(w, " Throughput    : %.2f rec/sec\n", r.Throughput)
	fmt.Fprintf(w, "-------------------------------------\n")
}
