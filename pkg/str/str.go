// Package str reads the streamed data file: the pages of every section,
// concatenated and split into components.
package str

import (
	"errors"
	"fmt"
	"io"

	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/toc"
	"golang.org/x/exp/mmap"
)

// SectionData holds the components of one section, each group in on-disk order.
type SectionData struct {
	Uncached []Component
	Cached   []Component
}

// All returns the uncached components followed by the cached ones.
func (d *SectionData) All() []Component {
	out := make([]Component, 0, len(d.Uncached)+len(d.Cached))
	out = append(out, d.Uncached...)
	return append(out, d.Cached...)
}

// Reader reads sections from a streamed data file.
type Reader struct {
	src    io.ReaderAt
	size   int64
	layout *toc.Layout
	closer io.Closer
}

// Open memory-maps the streamed data file at path.
func Open(path string, layout *toc.Layout) (*Reader, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, format.IOError("map streamed data", err)
	}
	r := NewReader(m, int64(m.Len()), layout)
	r.closer = m
	return r, nil
}

// NewReader returns a Reader over size bytes of src.
func NewReader(src io.ReaderAt, size int64, layout *toc.Layout) *Reader {
	return &Reader{src: src, size: size, layout: layout}
}

// Close releases the mapping. It is a no-op for readers built with NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Size returns the size of the streamed data file.
func (r *Reader) Size() int64 {
	return r.size
}

// ReadSectionData reads and splits the uncached and cached pages of s.
func (r *Reader) ReadSectionData(s toc.Section) (*SectionData, error) {
	uncached, cached := r.layout.Pages(s)

	data := &SectionData{}
	var err error
	if data.Uncached, err = r.readGroup(uncached); err != nil {
		return nil, fmt.Errorf("section %d uncached pages: %w", s.ID, err)
	}
	if data.Cached, err = r.readGroup(cached); err != nil {
		return nil, fmt.Errorf("section %d cached pages: %w", s.ID, err)
	}
	return data, nil
}

func (r *Reader) readGroup(pages []toc.Page) ([]Component, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	var total int64
	for _, p := range pages {
		if err := r.checkPage(p); err != nil {
			return nil, err
		}
		total += p.Size
	}
	if total > r.size {
		return nil, format.Errorf("pages declare %d bytes, streamed data holds %d", total, r.size)
	}
	buf := make([]byte, 0, total)
	for _, p := range pages {
		b, err := r.readPage(p)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return ParseComponents(buf)
}

// checkPage reports a page that extends past the end of the streamed data.
func (r *Reader) checkPage(p toc.Page) error {
	if remaining := r.size - p.Offset; p.Size > remaining {
		return format.Errorf("page %d declares %d bytes at offset %d, only %d remain",
			p.Index, p.Size, p.Offset, max(remaining, 0))
	}
	return nil
}

func (r *Reader) readPage(p toc.Page) ([]byte, error) {
	if err := r.checkPage(p); err != nil {
		return nil, err
	}
	b := make([]byte, p.Size)
	n, err := r.src.ReadAt(b, p.Offset)
	if n == len(b) {
		return b, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, format.Errorf("page %d: short read of %d/%d bytes", p.Index, n, len(b))
	}
	return nil, format.IOError(fmt.Sprintf("read page %d", p.Index), err)
}
