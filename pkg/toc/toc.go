// Package toc reads the package layout: the header, page tables, streaming
// texture records and trailing section table that locate everything else in a
// package.
package toc

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/soi"
	"github.com/goopsie/soiTools/pkg/texture"
)

// Version is the only layout version this package understands.
const Version int32 = 5

// HeaderSize is the encoded size of Header.
const HeaderSize = 80

const maxCount = 1 << 20

// StreamingMode selects how the engine schedules sections.
type StreamingMode int32

const (
	StreamingUnknown StreamingMode = -1
	StreamingOneD    StreamingMode = 0
	StreamingTwoD    StreamingMode = 1
	StreamingManual  StreamingMode = 2
)

func (m StreamingMode) String() string {
	switch m {
	case StreamingUnknown:
		return "unknown"
	case StreamingOneD:
		return "1d"
	case StreamingTwoD:
		return "2d"
	case StreamingManual:
		return "manual"
	default:
		return fmt.Sprintf("StreamingMode(%d)", int32(m))
	}
}

// Header is the fixed layout header.
type Header struct {
	Version                int32
	Flags                  int32
	Sections               int32
	CollisionModels        int32
	RenderableModels       int32
	MotionPacks            int32
	StreamingTextures      int32
	StaticTextures         int32
	UncachedPages          int32
	CachedPages            int32
	MotionPacksOffset      int32
	RenderableModelsOffset int32
	CollisionModelsOffset  int32
	TexturesOffset         int32
	CollisionGridsOffset   int32
	StreamingMode          StreamingMode
	Reserved               [16]byte
}

// Validate checks the header for validity.
func (h *Header) Validate() error {
	if h.Version != Version {
		return format.Errorf("unsupported layout version %d, expected %d", h.Version, Version)
	}
	switch h.StreamingMode {
	case StreamingUnknown, StreamingOneD, StreamingTwoD, StreamingManual:
	default:
		return format.Errorf("invalid streaming mode %d", int32(h.StreamingMode))
	}

	counts := []struct {
		name string
		n    int32
	}{
		{"sections", h.Sections},
		{"collision models", h.CollisionModels},
		{"renderable models", h.RenderableModels},
		{"motion packs", h.MotionPacks},
		{"streaming textures", h.StreamingTextures},
		{"static textures", h.StaticTextures},
		{"uncached pages", h.UncachedPages},
		{"cached pages", h.CachedPages},
	}
	for _, c := range counts {
		if c.n < 0 || c.n > maxCount {
			return format.Errorf("%s count %d out of range", c.name, c.n)
		}
	}

	// Blocks are stored in this order; absent blocks have offset 0.
	offsets := []struct {
		name string
		off  int32
	}{
		{"motion packs", h.MotionPacksOffset},
		{"renderable models", h.RenderableModelsOffset},
		{"collision models", h.CollisionModelsOffset},
		{"textures", h.TexturesOffset},
		{"collision grids", h.CollisionGridsOffset},
	}
	var last int32
	for _, o := range offsets {
		if o.off < 0 {
			return format.Errorf("%s offset %d is negative", o.name, o.off)
		}
		if o.off == 0 {
			continue
		}
		if o.off < last {
			return format.Errorf("%s offset %d precedes previous block at %d", o.name, o.off, last)
		}
		last = o.off
	}
	return nil
}

// SectionRecord is the on-disk section table entry.
type SectionRecord struct {
	UncachedFirstPage int32
	UncachedPageCount int32
	CachedFirstPage   int32
	CachedPageCount   int32
}

// Section is a streaming unit: a run of uncached pages and a run of cached pages.
type Section struct {
	ID uint32
	SectionRecord
}

// Page is one page of the streamed data file.
type Page struct {
	Index  int
	Cached bool
	Offset int64
	Size   int64
}

// StreamingTexture is a texture whose header lives in the layout and whose
// mip data is streamed.
type StreamingTexture struct {
	Info    soi.ModelInfo
	Padding uint32
	Header  *texture.Header
}

// Layout is a decoded package layout.
type Layout struct {
	Header            Header
	UncachedPageSizes []int32
	CachedPageSizes   []int32
	Sections          []Section
	StreamingTextures []*StreamingTexture

	uncachedOffsets []int64
	cachedOffsets   []int64
}

// ReadFile reads the layout at path.
func ReadFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, format.IOError("open layout", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a layout from r.
func Read(r io.Reader) (*Layout, error) {
	br := format.NewReader(r)
	l := &Layout{}

	if err := br.Read(&l.Header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := l.Header.Validate(); err != nil {
		return nil, err
	}
	h := &l.Header

	l.UncachedPageSizes = make([]int32, h.UncachedPages)
	if err := br.Read(l.UncachedPageSizes); err != nil {
		return nil, fmt.Errorf("read uncached page sizes: %w", err)
	}
	l.CachedPageSizes = make([]int32, h.CachedPages)
	if err := br.Read(l.CachedPageSizes); err != nil {
		return nil, fmt.Errorf("read cached page sizes: %w", err)
	}

	l.StreamingTextures = make([]*StreamingTexture, 0, h.StreamingTextures)
	for i := int32(0); i < h.StreamingTextures; i++ {
		st, err := readStreamingTexture(br)
		if err != nil {
			return nil, fmt.Errorf("read streaming texture %d: %w", i, err)
		}
		l.StreamingTextures = append(l.StreamingTextures, st)
	}

	// The section table follows the streaming textures.
	records := make([]SectionRecord, h.Sections)
	if err := br.Read(records); err != nil {
		return nil, fmt.Errorf("read section table: %w", err)
	}
	l.Sections = make([]Section, len(records))
	for i, rec := range records {
		l.Sections[i] = Section{ID: uint32(i), SectionRecord: rec}
	}

	if err := l.index(); err != nil {
		return nil, err
	}
	return l, nil
}

func readStreamingTexture(br *format.Reader) (*StreamingTexture, error) {
	st := &StreamingTexture{}
	if err := br.Read(&st.Info); err != nil {
		return nil, err
	}
	if st.Info.SectionID < 0 || st.Info.ComponentID < 0 {
		return nil, format.Errorf("texture %q has negative identity", st.Info.DisplayName())
	}
	if err := br.Read(&st.Padding); err != nil {
		return nil, err
	}
	h, err := texture.ReadHeader(br.Stream())
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", st.Info.DisplayName(), err)
	}
	st.Header = h
	return st, nil
}

// index checks the page tables and computes page offsets. Uncached pages come
// first in the streamed data file, followed by the cached pages.
func (l *Layout) index() error {
	var off int64
	l.uncachedOffsets = make([]int64, len(l.UncachedPageSizes))
	for i, size := range l.UncachedPageSizes {
		if size < 0 {
			return format.Errorf("uncached page %d has negative size %d", i, size)
		}
		l.uncachedOffsets[i] = off
		off += int64(size)
	}
	l.cachedOffsets = make([]int64, len(l.CachedPageSizes))
	for i, size := range l.CachedPageSizes {
		if size < 0 {
			return format.Errorf("cached page %d has negative size %d", i, size)
		}
		l.cachedOffsets[i] = off
		off += int64(size)
	}

	for _, s := range l.Sections {
		if err := checkRange(s.UncachedFirstPage, s.UncachedPageCount, len(l.UncachedPageSizes)); err != nil {
			return format.Errorf("section %d uncached pages: %v", s.ID, err)
		}
		if err := checkRange(s.CachedFirstPage, s.CachedPageCount, len(l.CachedPageSizes)); err != nil {
			return format.Errorf("section %d cached pages: %v", s.ID, err)
		}
	}
	return nil
}

func checkRange(first, count int32, n int) error {
	if count == 0 {
		return nil
	}
	if first < 0 || count < 0 || int(first)+int(count) > n {
		return fmt.Errorf("range [%d,+%d) outside table of %d", first, count, n)
	}
	return nil
}

// Pages returns the uncached and cached pages of s in table order.
func (l *Layout) Pages(s Section) (uncached, cached []Page) {
	for i := s.UncachedFirstPage; i < s.UncachedFirstPage+s.UncachedPageCount; i++ {
		uncached = append(uncached, Page{
			Index:  int(i),
			Offset: l.uncachedOffsets[i],
			Size:   int64(l.UncachedPageSizes[i]),
		})
	}
	for i := s.CachedFirstPage; i < s.CachedFirstPage+s.CachedPageCount; i++ {
		cached = append(cached, Page{
			Index:  int(i),
			Cached: true,
			Offset: l.cachedOffsets[i],
			Size:   int64(l.CachedPageSizes[i]),
		})
	}
	return uncached, cached
}

// StreamSize returns the total size of every page.
func (l *Layout) StreamSize() int64 {
	var n int64
	for _, s := range l.UncachedPageSizes {
		n += int64(s)
	}
	for _, s := range l.CachedPageSizes {
		n += int64(s)
	}
	return n
}

// Blocks returns the object index block table described by the header.
func (l *Layout) Blocks() soi.Blocks {
	h := &l.Header
	return soi.Blocks{
		MotionPacks:      soi.Block{Offset: int64(h.MotionPacksOffset), Count: int(h.MotionPacks)},
		RenderableModels: soi.Block{Offset: int64(h.RenderableModelsOffset), Count: int(h.RenderableModels)},
		CollisionModels:  soi.Block{Offset: int64(h.CollisionModelsOffset), Count: int(h.CollisionModels)},
		StaticTextures:   soi.Block{Offset: int64(h.TexturesOffset), Count: int(h.StaticTextures)},
	}
}

// SetBlocks stores the offsets and counts of b in the header.
func (l *Layout) SetBlocks(b soi.Blocks) {
	h := &l.Header
	h.MotionPacks, h.MotionPacksOffset = int32(b.MotionPacks.Count), int32(b.MotionPacks.Offset)
	h.RenderableModels, h.RenderableModelsOffset = int32(b.RenderableModels.Count), int32(b.RenderableModels.Offset)
	h.CollisionModels, h.CollisionModelsOffset = int32(b.CollisionModels.Count), int32(b.CollisionModels.Offset)
	h.StaticTextures, h.TexturesOffset = int32(b.StaticTextures.Count), int32(b.StaticTextures.Offset)
}

// MarshalBinary encodes the layout. Header counts for the tables are taken
// from the slices.
func (l *Layout) MarshalBinary() ([]byte, error) {
	h := l.Header
	h.UncachedPages = int32(len(l.UncachedPageSizes))
	h.CachedPages = int32(len(l.CachedPageSizes))
	h.Sections = int32(len(l.Sections))
	h.StreamingTextures = int32(len(l.StreamingTextures))

	records := make([]SectionRecord, len(l.Sections))
	for i, s := range l.Sections {
		records[i] = s.SectionRecord
	}

	var buf bytes.Buffer
	if err := format.Write(&buf, h, l.UncachedPageSizes, l.CachedPageSizes); err != nil {
		return nil, err
	}
	for _, st := range l.StreamingTextures {
		if err := format.Write(&buf, st.Info, st.Padding); err != nil {
			return nil, err
		}
		if err := st.Header.Write(&buf); err != nil {
			return nil, err
		}
	}
	if err := format.Write(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
