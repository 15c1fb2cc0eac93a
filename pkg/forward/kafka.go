// Package forward publishes committed journal records to Kafka.
package forward

import (
	"context"
	"strconv"
	"time"

	"github.com/downfa11-org/go-journal/pkg/journal"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/downfa11-org/go-journal/util"
	"github.com/segmentio/kafka-go"
)

const DefaultPublishTimeout = 5 * time.Second

// MessageWriter is the part of *kafka.Writer the forwarder uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// KafkaForwarder is a Listener that hands every callback to Inner and additionally
// publishes each committed record, keyed by its record id. Publishing happens on the
// journal's dispatcher, so a slow broker delays notifications but never appends.
type KafkaForwarder[V any] struct {
	Inner   journal.Listener[V]
	Writer  MessageWriter
	Encoder journal.EntryWriter[V]
	Timeout time.Duration
}

func NewKafkaForwarder[V any](inner journal.Listener[V], w MessageWriter, enc journal.EntryWriter[V]) *KafkaForwarder[V] {
	return &KafkaForwarder[V]{Inner: inner, Writer: w, Encoder: enc, Timeout: DefaultPublishTimeout}
}

var _ journal.Listener[string] = (*KafkaForwarder[string])(nil)

func (f *KafkaForwarder[V]) OnCommit(r types.Record[V]) {
	if f.Inner != nil {
		f.Inner.OnCommit(r)
	}
	if err := f.publish(r); err != nil {
		util.Error("failed to forward record %d: %v", r.ID, err)
	}
}

func (f *KafkaForwarder[V]) publish(r types.Record[V]) error {
	value, err := f.Encoder.Write(r.Value, r.Type)
	if err != nil {
		return err
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return f.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(r.ID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte{r.Type}},
			{Key: "segment", Value: []byte(strconv.FormatUint(r.Segment, 10))},
		},
	})
}

func (f *KafkaForwarder[V]) OnFailure(e types.Entry[V], err error) {
	if f.Inner != nil {
		f.Inner.OnFailure(e, err)
	}
}

func (f *KafkaForwarder[V]) OnBatchFailure(b *journal.Batch[V], err error) {
	if f.Inner != nil {
		f.Inner.OnBatchFailure(b, err)
	}
}

// Replay callbacks are not forwarded; replayed records were published when first committed.
func (f *KafkaForwarder[V]) OnReplayGap(prev, cur types.Record[V]) types.ReplayResult {
	if f.Inner != nil {
		return f.Inner.OnReplayGap(prev, cur)
	}
	return types.Continue
}

func (f *KafkaForwarder[V]) OnReplayRecord(r types.Record[V]) types.ReplayResult {
	if f.Inner != nil {
		return f.Inner.OnReplayRecord(r)
	}
	return types.Continue
}

func (f *KafkaForwarder[V]) Close() error {
	return f.Writer.Close()
}
