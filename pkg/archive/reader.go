package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/DataDog/zstd"
	"github.com/goopsie/soiTools/pkg/format"
)

// Reader decompresses the payload of a container.
type Reader struct {
	header  Header
	src     *io.LimitedReader
	zReader io.ReadCloser
}

// NewReader reads and validates the header, then returns a reader for the
// decompressed content.
func NewReader(r io.Reader) (*Reader, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, format.Errorf("read container header: %v", err)
	}

	reader := &Reader{}
	if err := reader.header.UnmarshalBinary(buf[:]); err != nil {
		return nil, err
	}
	reader.src = &io.LimitedReader{R: r, N: int64(reader.header.CompressedLength)}
	reader.zReader = zstd.NewReader(reader.src)
	return reader, nil
}

// Header returns the container header.
func (r *Reader) Header() Header {
	return r.header
}

// Read reads decompressed data into p.
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.zReader.Read(p)
}

// Close releases the decompressor.
func (r *Reader) Close() error {
	return r.zReader.Close()
}

// ReadAll decompresses a whole container.
func ReadAll(r io.Reader) (Header, []byte, error) {
	reader, err := NewReader(r)
	if err != nil {
		return Header{}, nil, err
	}
	defer reader.Close()

	data := make([]byte, reader.header.Length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return reader.header, nil, format.Errorf("decompress %d bytes: %v", len(data), err)
	}
	// Leave r positioned after the frame so containers can be concatenated.
	if _, err := io.Copy(io.Discard, reader.src); err != nil {
		return reader.header, nil, format.IOError("skip frame tail", err)
	}
	return reader.header, data, nil
}

// ReadFile decompresses the container at path.
func ReadFile(path string) (Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, format.IOError("open container", err)
	}
	defer f.Close()

	h, data, err := ReadAll(f)
	if err != nil {
		return h, nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, data, nil
}
