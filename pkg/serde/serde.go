// Package serde holds ready-made entry codecs for journals.
package serde

import (
	"encoding/json"
	"fmt"

	"github.com/downfa11-org/go-journal/util"
	msgpack "github.com/vmihailenco/msgpack"
	"google.golang.org/protobuf/proto"
)

// Bytes stores payloads unchanged.
type Bytes struct{}

func (Bytes) Write(v []byte, _ byte) ([]byte, error) { return v, nil }

func (Bytes) Read(_ uint64, _ byte, data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

type String struct{}

func (String) Write(v string, _ byte) ([]byte, error)             { return []byte(v), nil }
func (String) Read(_ uint64, _ byte, data []byte) (string, error) { return string(data), nil }

// JSON encodes values with encoding/json.
type JSON[T any] struct{}

func (JSON[T]) Write(v T, _ byte) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[T]) Read(id uint64, _ byte, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("record %d: %w", id, err)
	}
	return v, nil
}

// Msgpack encodes values with msgpack, which is smaller than JSON for most structs.
type Msgpack[T any] struct{}

func (Msgpack[T]) Write(v T, _ byte) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[T]) Read(id uint64, _ byte, data []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("record %d: %w", id, err)
	}
	return v, nil
}

// Proto encodes protobuf messages. New must return an empty message to decode into.
type Proto[T proto.Message] struct {
	New func() T
}

func (p Proto[T]) Write(v T, _ byte) ([]byte, error) {
	return proto.Marshal(v)
}

func (p Proto[T]) Read(id uint64, _ byte, data []byte) (T, error) {
	v := p.New()
	if err := proto.Unmarshal(data, v); err != nil {
		return v, fmt.Errorf("record %d: %w", id, err)
	}
	return v, nil
}

// Inner is the codec shape Compressed wraps.
type Inner[V any] interface {
	Write(v V, typ byte) ([]byte, error)
	Read(id uint64, typ byte, data []byte) (V, error)
}

// Compressed compresses the payloads of another codec with one of util's compression codecs.
type Compressed[V any] struct {
	Inner       Inner[V]
	Compression string
}

// NewCompressed fails for unknown compression names.
func NewCompressed[V any](inner Inner[V], compression string) (Compressed[V], error) {
	if !util.IsSupportedCompression(compression) {
		return Compressed[V]{}, fmt.Errorf("unsupported compression %q", compression)
	}
	return Compressed[V]{Inner: inner, Compression: compression}, nil
}

func (c Compressed[V]) Write(v V, typ byte) ([]byte, error) {
	raw, err := c.Inner.Write(v, typ)
	if err != nil {
		return nil, err
	}
	return util.Compress(raw, c.Compression)
}

func (c Compressed[V]) Read(id uint64, typ byte, data []byte) (V, error) {
	raw, err := util.Decompress(data, c.Compression)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("record %d: %w", id, err)
	}
	return c.Inner.Read(id, typ, raw)
}
