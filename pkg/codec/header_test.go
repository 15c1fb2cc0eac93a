package codec_test

import (
	"testing"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderLayout(t *testing.T) {
	h := codec.NewHeader(7, 4096, types.KindBatch)
	b := codec.EncodeHeader(h)

	require.Len(t, b, codec.HeaderSize)
	assert.Equal(t, []byte{0xFE, 0xEE, 0xEE, 0xEF}, b[0:4])
	assert.Equal(t, []byte{0, 0, 0, 1}, b[4:8])
	assert.Equal(t, []byte{0, 0, 0x10, 0}, b[8:12])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 7}, b[12:20])
	assert.Equal(t, byte(3), b[20])
	assert.Equal(t, []byte{0, 0, 0, 25}, b[21:25])

	got, err := codec.DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDecodeHeaderRejects(t *testing.T) {
	valid := codec.EncodeHeader(codec.NewHeader(1, 1024, types.KindNormal))

	tests := []struct {
		name   string
		mutate func(b []byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:10] }},
		{"bad magic", func(b []byte) []byte { b[0] = 0x00; return b }},
		{"bad version", func(b []byte) []byte { b[7] = 2; return b }},
		{"unknown kind", func(b []byte) []byte { b[20] = 9; return b }},
		{"offset inside header", func(b []byte) []byte { b[24] = 3; return b }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), valid...)
			_, err := codec.DecodeHeader(tt.mutate(b))
			assert.ErrorIs(t, err, codec.ErrCorruptHeader)
		})
	}
}
