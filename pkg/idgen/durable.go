package idgen

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/downfa11-org/go-journal/util"
)

var ceilingKey = []byte("journal/record-id/ceiling")

// DefaultReserveBlock is how many ids Durable hands out per persisted reservation.
const DefaultReserveBlock = 1024

// Durable is a record id generator whose high-water mark survives restarts even when
// every segment holding the latest ids has been removed. It reserves ids in blocks so
// that only one synced write happens per block.
type Durable struct {
	mu      sync.Mutex
	db      *pebble.DB
	last    uint64
	ceiling uint64
	block   uint64
	closed  bool
}

// OpenDurable opens or creates the pebble store at path.
func OpenDurable(path string, block uint64) (*Durable, error) {
	if block == 0 {
		block = DefaultReserveBlock
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open id store %s: %w", path, err)
	}

	d := &Durable{db: db, block: block}
	value, closer, err := db.Get(ceilingKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		_ = db.Close()
		return nil, fmt.Errorf("read id ceiling: %w", err)
	default:
		if len(value) == 8 {
			d.ceiling = binary.BigEndian.Uint64(value)
		}
		_ = closer.Close()
	}
	d.last = d.ceiling
	return d, nil
}

func (d *Durable) Next() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last++
	if d.last > d.ceiling {
		d.reserve(d.last + d.block)
	}
	return d.last
}

func (d *Durable) Last() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *Durable) NotifyHighest(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = id
	if id > d.ceiling {
		d.reserve(id + d.block)
	}
}

func (d *Durable) reserve(ceiling uint64) {
	if d.closed {
		return
	}
	if err := d.put(ceiling); err != nil {
		util.Error("failed to persist record id ceiling %d: %v", ceiling, err)
		return
	}
	d.ceiling = ceiling
}

func (d *Durable) put(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return d.db.Set(ceilingKey, buf[:], pebble.Sync)
}

// Close records the exact last id, so the next open continues without a gap.
func (d *Durable) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	err := d.put(d.last)
	if cerr := d.db.Close(); err == nil {
		err = cerr
	}
	return err
}
