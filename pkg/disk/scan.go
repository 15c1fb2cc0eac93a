package disk

import (
	"errors"
	"fmt"
	"io"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"golang.org/x/exp/mmap"
)

// ScanResult is everything readable from one segment file.
type ScanResult struct {
	Path   string
	Header codec.Header
	Frames []codec.Frame
	// End is the offset just past the last valid frame.
	End int64
	// Torn is set when scanning stopped at a corrupt frame rather than a clean end.
	Torn error
}

// Scan memory-maps path, validates its header, and walks frames until the clean end of
// the written area or the first corrupt frame. A corrupt frame is not an error; it is
// reported through ScanResult.Torn.
func Scan(path string) (*ScanResult, error) {
	return ScanFunc(path, nil)
}

// ScanFunc is Scan with a per-frame callback. Returning an error from fn stops the scan
// and is reported as Torn, keeping the frames accepted before it.
func ScanFunc(path string, fn func(codec.Header, codec.Frame) error) (*ScanResult, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, ioErr("mmap open", path, err)
	}
	defer reader.Close()

	headerBuf := make([]byte, codec.HeaderSize)
	if reader.Len() < codec.HeaderSize {
		return nil, fmt.Errorf("%s: %w: file holds %d bytes", path, codec.ErrCorruptHeader, reader.Len())
	}
	if _, err := reader.ReadAt(headerBuf, 0); err != nil {
		return nil, ioErr("read header", path, err)
	}
	h, err := codec.DecodeHeader(headerBuf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	limit := int64(reader.Len())
	if limit > int64(h.Capacity) {
		limit = int64(h.Capacity)
	}
	return walk(reader, path, h, limit, fn), nil
}

// ScanFS is ScanFunc reading through fs. OSFileSystem files are memory-mapped; any other
// FileSystem is read with ReadAt on the file it opens, up to the header capacity.
func ScanFS(fs FileSystem, path string, fn func(codec.Header, codec.Frame) error) (*ScanResult, error) {
	if _, ok := fs.(OSFileSystem); ok {
		return ScanFunc(path, fn)
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	defer f.Close()

	h, err := readHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return walk(f, path, h, int64(h.Capacity), fn), nil
}

func walk(r io.ReaderAt, path string, h codec.Header, limit int64, fn func(codec.Header, codec.Frame) error) *ScanResult {
	res := &ScanResult{Path: path, Header: h, End: int64(h.FirstDataOffset)}
	pos := res.End
	for {
		frame, next, err := codec.DecodeRecordAt(r, pos, limit)
		if err != nil {
			if !errors.Is(err, codec.ErrEndOfSegment) {
				res.Torn = err
			}
			break
		}
		if fn != nil {
			if err := fn(h, frame); err != nil {
				res.Torn = err
				break
			}
		}
		res.Frames = append(res.Frames, frame)
		pos = next
		res.End = pos
	}
	return res
}
