// Package format holds the big-endian primitives and error kinds shared by the
// TOC, SOI, STR, model and texture codecs.
package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Error kinds. Callers test for them with errors.Is.
var (
	// ErrIO marks open/read/write failures on the underlying files.
	ErrIO = errors.New("i/o failure")
	// ErrFormat marks data that does not match the expected layout.
	ErrFormat = errors.New("malformed data")
	// ErrLookupMiss marks a component that has no metadata record of its kind.
	ErrLookupMiss = errors.New("lookup miss")
)

// ByteOrder is the byte order of every structure in the package files.
var ByteOrder = binary.BigEndian

// Errorf returns an error wrapping ErrFormat.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// IOError wraps err with ErrIO, keeping err reachable through errors.Is/As.
func IOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}

// Reader decodes big-endian values and tracks how many bytes were consumed.
// Short reads are reported as ErrFormat since sizes come from the data itself.
type Reader struct {
	r   io.Reader
	off int64
}

// NewReader returns a Reader positioned at offset 0 of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.off
}

// Read decodes a fixed-size value into v.
func (r *Reader) Read(v any) error {
	size := binary.Size(v)
	if err := binary.Read(r.r, ByteOrder, v); err != nil {
		return r.wrap(err, size)
	}
	r.off += int64(size)
	return nil
}

// Bytes reads exactly n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, Errorf("negative length %d at offset %d", n, r.off)
	}
	if n > bytesChunk {
		return r.largeBytes(n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, r.wrap(err, n)
	}
	r.off += int64(n)
	return buf, nil
}

// bytesChunk is the largest length Bytes allocates up front. Longer reads grow
// with the data actually present, so a corrupt length cannot force a huge
// allocation.
const bytesChunk = 1 << 20

func (r *Reader) largeBytes(n int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(bytesChunk)
	copied, err := io.CopyN(&buf, r.r, int64(n))
	if err != nil {
		return nil, r.wrap(err, n)
	}
	r.off += copied
	return buf.Bytes(), nil
}

// Stream returns an io.Reader over the remaining input that keeps Offset in
// step, for handing a variable-length structure to a nested decoder.
func (r *Reader) Stream() io.Reader {
	return (*stream)(r)
}

type stream Reader

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.off += int64(n)
	return n, err
}

func (r *Reader) wrap(err error, size int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Errorf("truncated: need %d bytes at offset %d", size, r.off)
	}
	return IOError(fmt.Sprintf("read at offset %d", r.off), err)
}

// Write encodes each value in order.
func Write(w io.Writer, values ...any) error {
	for _, v := range values {
		if b, ok := v.([]byte); ok {
			if _, err := w.Write(b); err != nil {
				return IOError("write", err)
			}
			continue
		}
		if err := binary.Write(w, ByteOrder, v); err != nil {
			return IOError("write", err)
		}
	}
	return nil
}
