package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/DataDog/zstd"
	"github.com/goopsie/soiTools/pkg/format"
)

// DefaultCompressionLevel is the default compression level for encoding.
const DefaultCompressionLevel = zstd.BestSpeed

// Writer compresses an asset into a container. The header is written first
// with a zero compressed size and patched by Close.
type Writer struct {
	dst     io.WriteSeeker
	start   int64
	zWriter *zstd.Writer
	header  *Header
	level   int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompressionLevel sets the compression level for the writer.
func WithCompressionLevel(level int) WriterOption {
	return func(w *Writer) {
		w.level = level
	}
}

// NewWriter starts a container of the given kind and uncompressed size at the
// current position of dst.
func NewWriter(dst io.WriteSeeker, kind uint16, size uint64, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		dst:    dst,
		level:  DefaultCompressionLevel,
		header: NewHeader(kind, size),
	}
	for _, opt := range opts {
		opt(w)
	}

	start, err := dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, format.IOError("get position", err)
	}
	w.start = start

	headerBytes, _ := w.header.MarshalBinary()
	if _, err := dst.Write(headerBytes); err != nil {
		return nil, format.IOError("write container header", err)
	}

	w.zWriter = zstd.NewWriterLevel(dst, w.level)
	return w, nil
}

// Write writes compressed data.
func (w *Writer) Write(p []byte) (n int, err error) {
	return w.zWriter.Write(p)
}

// Close flushes the frame and patches the header with the compressed size.
func (w *Writer) Close() error {
	if err := w.zWriter.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}

	end, err := w.dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return format.IOError("get position", err)
	}
	w.header.CompressedLength = uint64(end - w.start - HeaderSize)

	if _, err := w.dst.Seek(w.start, io.SeekStart); err != nil {
		return format.IOError("seek to header", err)
	}
	headerBytes, _ := w.header.MarshalBinary()
	if _, err := w.dst.Write(headerBytes); err != nil {
		return format.IOError("rewrite container header", err)
	}
	if _, err := w.dst.Seek(end, io.SeekStart); err != nil {
		return format.IOError("seek to end", err)
	}
	return nil
}

// Encode compresses data as a container written to dst.
func Encode(dst io.WriteSeeker, kind uint16, data []byte, opts ...WriterOption) error {
	w, err := NewWriter(dst, kind, uint64(len(data)), opts...)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	return w.Close()
}

// WriteFile compresses data into a new container at path and returns the
// number of bytes written.
func WriteFile(path string, kind uint16, data []byte, opts ...WriterOption) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, format.IOError("create container", err)
	}
	if err := Encode(f, kind, data, opts...); err != nil {
		f.Close()
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	size, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return 0, format.IOError("get position", err)
	}
	if err := f.Close(); err != nil {
		return 0, format.IOError("close container", err)
	}
	return size, nil
}
