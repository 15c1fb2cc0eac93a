package util_test

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/downfa11-org/go-journal/util"
)

func TestCompress_UnsupportedType(t *testing.T) {
	if _, err := util.Compress([]byte("x"), "brotli"); err == nil {
		t.Fatalf("expected error for unsupported compression type")
	}
	if _, err := util.Decompress([]byte("x"), "brotli"); err == nil {
		t.Fatalf("expected error for unsupported decompression type")
	}
	if util.IsSupportedCompression("brotli") {
		t.Fatalf("brotli should not be supported")
	}
}

func TestCompress_NonePassthrough(t *testing.T) {
	data := []byte("journal payload")
	for _, ct := range []string{util.CompressionNone, ""} {
		out, err := util.Compress(data, ct)
		if err != nil {
			t.Fatalf("compress %q: %v", ct, err)
		}
		if !bytes.Equal(out, data) {
			t.Fatalf("expected passthrough for %q", ct)
		}
	}
}

func TestCompressDecompressRoundtrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("Hello, journal!"),
		bytes.Repeat([]byte("record-"), 200),
		make([]byte, 10000),
	}

	for _, p := range payloads {
		p := p
		for _, ct := range []string{util.CompressionGzip, util.CompressionSnappy, util.CompressionLZ4, util.CompressionNone} {
			ct := ct
			t.Run(fmt.Sprintf("%s_%dB", ct, len(p)), func(t *testing.T) {
				compressed, err := util.Compress(p, ct)
				if err != nil {
					t.Fatalf("compression failed: %v", err)
				}
				out, err := util.Decompress(compressed, ct)
				if err != nil {
					t.Fatalf("decompression failed: %v", err)
				}
				if !bytes.Equal(out, p) {
					t.Fatalf("roundtrip mismatch: original=%d decompressed=%d", len(p), len(out))
				}
			})
		}
	}
}

func TestConcurrentCompression(t *testing.T) {
	data := []byte("Hello, concurrent compression")
	kinds := []string{util.CompressionGzip, util.CompressionSnappy, util.CompressionLZ4, util.CompressionNone}

	var wg sync.WaitGroup
	errCh := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ct := kinds[id%len(kinds)]

			c, err := util.Compress(data, ct)
			if err != nil {
				errCh <- fmt.Errorf("compress failed (id=%d type=%s): %v", id, ct, err)
				return
			}
			d, err := util.Decompress(c, ct)
			if err != nil {
				errCh <- fmt.Errorf("decompress failed (id=%d type=%s): %v", id, ct, err)
				return
			}
			if !bytes.Equal(d, data) {
				errCh <- fmt.Errorf("data mismatch (id=%d type=%s)", id, ct)
			}
		}(i)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}
