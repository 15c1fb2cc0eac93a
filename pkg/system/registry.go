// Package system tracks the journals a process has open so they can share listener
// workers and be shut down together.
package system

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/downfa11-org/go-journal/pkg/journal"
	"github.com/downfa11-org/go-journal/util"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const DefaultWorkers = 5

var (
	ErrShutdown  = errors.New("journal registry shut down")
	ErrDuplicate = errors.New("journal already open")
)

// Handle is the type-independent view of an open journal.
type Handle interface {
	Name() string
	ID() uuid.UUID
	Dir() string
	LastRecordID() uint64
	Close() error
}

type Registry struct {
	mu       sync.Mutex
	journals map[string]Handle
	shutdown bool

	dispatcher     *journal.Dispatcher
	ownsDispatcher bool
	once           sync.Once
}

// NewRegistry starts a registry whose journals share a dispatcher of the given size.
func NewRegistry(workers int) *Registry {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Registry{
		journals:       make(map[string]Handle),
		dispatcher:     journal.NewDispatcher(workers),
		ownsDispatcher: true,
	}
}

// NewRegistryWith uses d for notifications. The caller keeps ownership of d.
func NewRegistryWith(d *journal.Dispatcher) *Registry {
	return &Registry{journals: make(map[string]Handle), dispatcher: d}
}

func (r *Registry) Dispatcher() *journal.Dispatcher { return r.dispatcher }

// Open opens a journal and registers it under name until it closes. Unless opts names
// a dispatcher, the registry's shared one is used.
func Open[V any](r *Registry, name string, opts journal.Options[V]) (*journal.Journal[V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown {
		return nil, ErrShutdown
	}
	if _, ok := r.journals[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = r.dispatcher
	}

	var j *journal.Journal[V]
	opts = opts.WithCloseHook(func() { r.forget(name, j) })

	j, err := journal.Open(name, opts)
	if err != nil {
		return nil, err
	}
	r.journals[name] = j
	util.Debug("registered journal %s (id=%s)", name, j.ID())
	return j, nil
}

// Lookup returns the open journal called name if it holds values of type V.
func Lookup[V any](r *Registry, name string) (*journal.Journal[V], bool) {
	h, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	j, ok := h.(*journal.Journal[V])
	return j, ok
}

func (r *Registry) Get(name string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.journals[name]
	return h, ok
}

// Names lists the open journals in lexical order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.journals))
	for name := range r.journals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes the journal called name. Unknown names are ignored.
func (r *Registry) Close(name string) error {
	h, ok := r.Get(name)
	if !ok {
		return nil
	}
	return h.Close()
}

// Shutdown closes every registered journal, then the registry's own dispatcher.
// Later calls return nil and later Opens fail with ErrShutdown.
func (r *Registry) Shutdown() error {
	var err error
	r.once.Do(func() {
		r.mu.Lock()
		r.shutdown = true
		open := make([]Handle, 0, len(r.journals))
		for _, h := range r.journals {
			open = append(open, h)
		}
		r.mu.Unlock()

		for _, h := range open {
			util.Debug("Closing journal %s", h.Name())
			if cerr := h.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("close %s: %w", h.Name(), cerr))
			}
		}
		if r.ownsDispatcher {
			r.dispatcher.Close()
		}
		util.Info("journal registry shut down (%d journals closed)", len(open))
	})
	return err
}

func (r *Registry) forget(name string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.journals[name]; ok && cur == h {
		delete(r.journals, name)
	}
}
