package system_test

import (
	"sync"
	"testing"

	"github.com/downfa11-org/go-journal/pkg/idgen"
	"github.com/downfa11-org/go-journal/pkg/journal"
	"github.com/downfa11-org/go-journal/pkg/naming"
	"github.com/downfa11-org/go-journal/pkg/serde"
	"github.com/downfa11-org/go-journal/pkg/system"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commits struct {
	mu     sync.Mutex
	values []string
}

func (c *commits) listener() journal.Listener[string] {
	return journal.ListenerFuncs[string]{
		Commit: func(r types.Record[string]) {
			c.mu.Lock()
			c.values = append(c.values, r.Value)
			c.mu.Unlock()
		},
	}
}

func options(t *testing.T, name string, c *commits) journal.Options[string] {
	return journal.Options[string]{
		Dir:      t.TempDir(),
		Naming:   naming.NewPrefix(name),
		IDs:      idgen.NewSequencer(0),
		Listener: c.listener(),
	}.WithCodec(serde.String{})
}

func TestRegistryTracksOpenJournals(t *testing.T) {
	r := system.NewRegistry(0)
	defer r.Shutdown()

	orders, err := system.Open(r, "orders", options(t, "orders", &commits{}))
	require.NoError(t, err)
	_, err = system.Open(r, "audit", options(t, "audit", &commits{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"audit", "orders"}, r.Names())

	h, ok := r.Get("orders")
	require.True(t, ok)
	assert.Equal(t, orders.ID(), h.ID())

	typed, ok := system.Lookup[string](r, "orders")
	require.True(t, ok)
	assert.Same(t, orders, typed)
	_, ok = system.Lookup[[]byte](r, "orders")
	assert.False(t, ok)

	_, err = system.Open(r, "orders", options(t, "orders", &commits{}))
	assert.ErrorIs(t, err, system.ErrDuplicate)

	require.NoError(t, orders.Close())
	assert.Equal(t, []string{"audit"}, r.Names(), "closing a journal unregisters it")

	require.NoError(t, r.Close("audit"))
	require.NoError(t, r.Close("missing"))
	assert.Empty(t, r.Names())
}

func TestRegistryNameReusableAfterClose(t *testing.T) {
	r := system.NewRegistry(1)
	defer r.Shutdown()

	opts := options(t, "orders", &commits{})
	j, err := system.Open(r, "orders", opts)
	require.NoError(t, err)
	require.NoError(t, j.AppendSync("first", 1))
	require.NoError(t, j.Close())

	j, err = system.Open(r, "orders", opts)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), j.LastRecordID())
}

func TestShutdownClosesEverything(t *testing.T) {
	r := system.NewRegistry(2)

	c1, c2 := &commits{}, &commits{}
	a, err := system.Open(r, "a", options(t, "a", c1))
	require.NoError(t, err)
	b, err := system.Open(r, "b", options(t, "b", c2))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, a.Append("a", 1))
		require.NoError(t, b.Append("b", 1))
	}

	require.NoError(t, r.Shutdown())
	require.NoError(t, r.Shutdown())

	assert.Empty(t, r.Names())
	assert.Len(t, c1.values, 20)
	assert.Len(t, c2.values, 20)
	assert.ErrorIs(t, a.AppendSync("late", 1), journal.ErrClosed)

	_, err = system.Open(r, "c", options(t, "c", &commits{}))
	assert.ErrorIs(t, err, system.ErrShutdown)
}

func TestRegistryWithExternalDispatcher(t *testing.T) {
	d := journal.NewDispatcher(1)
	defer d.Close()

	r := system.NewRegistryWith(d)
	assert.Same(t, d, r.Dispatcher())

	_, err := system.Open(r, "a", options(t, "a", &commits{}))
	require.NoError(t, err)
	require.NoError(t, r.Shutdown())

	ran := make(chan struct{})
	d.Submit("late", func() { close(ran) })
	<-ran
}
