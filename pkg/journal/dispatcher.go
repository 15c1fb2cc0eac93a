package journal

import (
	"sync"

	"github.com/downfa11-org/go-journal/util"
	"github.com/eapache/channels"
)

// Dispatcher runs listener callbacks off the writer goroutine. Tasks submitted under the
// same key always land on the same worker, so one journal's notifications keep their order
// even when several journals share a dispatcher.
type Dispatcher struct {
	workers []*channels.InfiniteChannel

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	shutdown  sync.WaitGroup
}

// NewDispatcher starts n worker goroutines (at least one).
func NewDispatcher(n int) *Dispatcher {
	if n <= 0 {
		n = 1
	}
	d := &Dispatcher{workers: make([]*channels.InfiniteChannel, n)}
	for i := range d.workers {
		ch := channels.NewInfiniteChannel()
		d.workers[i] = ch
		d.shutdown.Add(1)
		go func() {
			defer d.shutdown.Done()
			for task := range ch.Out() {
				runTask(task.(func()))
			}
		}()
	}
	return d
}

// Submit queues task on the worker owning key. It never blocks. After Close the task runs
// on the caller instead.
func (d *Dispatcher) Submit(key string, task func()) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		util.Debug("dispatcher closed, running %s listener task inline", key)
		runTask(task)
		return
	}
	d.workers[util.Shard(key, len(d.workers))].In() <- task
	d.mu.RUnlock()
}

// Pending reports the number of queued tasks.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, w := range d.workers {
		n += w.Len()
	}
	return n
}

// Close stops accepting tasks and waits until every queued task has run.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, w := range d.workers {
			w.Close()
		}
		d.mu.Unlock()
		d.shutdown.Wait()
	})
}

func runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			util.Error("listener callback panicked: %v", r)
		}
	}()
	task()
}
