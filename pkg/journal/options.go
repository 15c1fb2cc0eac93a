package journal

import (
	"math"
	"strings"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/pkg/disk"
)

const (
	DefaultSegmentSize     = 1 << 20
	DefaultListenerWorkers = 1
)

// Options configures a journal. Dir, the collaborators and a SegmentSize of at least
// codec.MinCapacity are required.
type Options[V any] struct {
	Dir         string
	SegmentSize int
	// SyncWrites fsyncs every segment write before it is acknowledged.
	SyncWrites bool

	Naming   NamingStrategy
	Reader   EntryReader[V]
	Writer   EntryWriter[V]
	IDs      RecordIDGenerator
	Listener Listener[V]

	// Dispatcher runs listener callbacks. When nil the journal starts its own with
	// ListenerWorkers workers and stops it on Close.
	Dispatcher      *Dispatcher
	ListenerWorkers int

	// FS serves every segment read and write, replay included. Defaults to disk.OSFileSystem.
	FS disk.FileSystem

	// onClose is set by owners that track open journals.
	onClose func()
}

// WithCodec sets Reader and Writer from one codec.
func (o Options[V]) WithCodec(c Codec[V]) Options[V] {
	o.Reader = c
	o.Writer = c
	return o
}

// WithCloseHook returns a copy of o whose journal calls fn once after it closes.
func (o Options[V]) WithCloseHook(fn func()) Options[V] {
	o.onClose = fn
	return o
}

func (o *Options[V]) validate(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ConfigError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(o.Dir) == "" {
		return &ConfigError{Field: "dir", Reason: "must not be empty"}
	}
	if o.SegmentSize == 0 {
		o.SegmentSize = DefaultSegmentSize
	}
	if o.SegmentSize < codec.MinCapacity {
		return &ConfigError{Field: "segment_size", Reason: "below minimum of 1024 bytes"}
	}
	if uint64(o.SegmentSize) > math.MaxUint32 {
		return &ConfigError{Field: "segment_size", Reason: "exceeds 4 GiB"}
	}

	switch {
	case o.Naming == nil:
		return &ConfigError{Field: "naming", Reason: "missing naming strategy"}
	case o.Reader == nil:
		return &ConfigError{Field: "reader", Reason: "missing entry reader"}
	case o.Writer == nil:
		return &ConfigError{Field: "writer", Reason: "missing entry writer"}
	case o.IDs == nil:
		return &ConfigError{Field: "ids", Reason: "missing record id generator"}
	case o.Listener == nil:
		return &ConfigError{Field: "listener", Reason: "missing listener"}
	}

	if o.ListenerWorkers <= 0 {
		o.ListenerWorkers = DefaultListenerWorkers
	}
	if o.FS == nil {
		o.FS = disk.OSFileSystem{}
	}
	return nil
}
