// Package texture implements the GCT console texture format.
//
// A GCT header (version, format, palette, mip count, dimensions) is shared by
// static textures, whose file is embedded in the object index, and streaming
// textures, whose pixels arrive separately through the streamed data. Streamed
// pixels are stored largest mip first; archived GCT files store them smallest
// first, each behind its own surface header.
package texture

import (
	"fmt"
	"io"

	"github.com/goopsie/soiTools/pkg/dds"
	"github.com/goopsie/soiTools/pkg/format"
)

// Header versions.
const (
	// VersionStatic is the version of ordinary GCT files.
	VersionStatic uint32 = 2
	// VersionStreamed marks archives rebuilt from streamed pixel data.
	VersionStreamed uint32 = 0x80000000 | VersionStatic
)

// MaxMipCount bounds the mip chain of a 32-bit sized texture.
const MaxMipCount = 32

// MaxPaletteSize is the largest palette a GX texture can index (CI14X2).
const MaxPaletteSize = 1 << 14

// Header is a GCT texture header.
type Header struct {
	Version     uint32
	Format      Format
	PaletteSize uint32 // palette entries; the palette occupies 2 bytes each
	Palette     []byte
	MipCount    uint32
	Width       uint32
	Height      uint32
}

// SurfaceHeader precedes every mip level of an archived GCT.
type SurfaceHeader struct {
	Width  uint32
	Height uint32
	Size   uint32
}

// SurfaceHeaderSize is the encoded size of a SurfaceHeader.
const SurfaceHeaderSize = 12

// ReadHeader decodes a GCT header.
func ReadHeader(r io.Reader) (*Header, error) {
	br := format.NewReader(r)
	h := &Header{}

	var fixed struct {
		Version     uint32
		Format      uint32
		PaletteSize uint32
	}
	if err := br.Read(&fixed); err != nil {
		return nil, fmt.Errorf("read texture header: %w", err)
	}
	h.Version = fixed.Version
	h.Format = Format(fixed.Format)
	h.PaletteSize = fixed.PaletteSize
	if h.PaletteSize > MaxPaletteSize {
		return nil, format.Errorf("palette of %d entries exceeds %d", h.PaletteSize, MaxPaletteSize)
	}

	palette, err := br.Bytes(int(h.PaletteSize) * 2)
	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	h.Palette = palette

	var dims struct {
		MipCount uint32
		Width    uint32
		Height   uint32
	}
	if err := br.Read(&dims); err != nil {
		return nil, fmt.Errorf("read texture dimensions: %w", err)
	}
	h.MipCount = dims.MipCount
	h.Width = dims.Width
	h.Height = dims.Height

	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate checks the header for validity.
func (h *Header) Validate() error {
	if !h.Format.Valid() {
		return format.Errorf("unknown texture format 0x%x", uint32(h.Format))
	}
	if h.Width == 0 || h.Height == 0 {
		return format.Errorf("texture has zero dimension %dx%d", h.Width, h.Height)
	}
	if h.MipCount > MaxMipCount {
		return format.Errorf("mip count %d exceeds %d", h.MipCount, MaxMipCount)
	}
	if h.PaletteSize > MaxPaletteSize {
		return format.Errorf("palette of %d entries exceeds %d", h.PaletteSize, MaxPaletteSize)
	}
	if len(h.Palette) != int(h.PaletteSize)*2 {
		return format.Errorf("palette holds %d bytes, header declares %d entries", len(h.Palette), h.PaletteSize)
	}
	return nil
}

// Size returns the encoded size of the header.
func (h *Header) Size() int {
	return 6*4 + len(h.Palette)
}

// Write encodes the header.
func (h *Header) Write(w io.Writer) error {
	return format.Write(w,
		h.Version, uint32(h.Format), h.PaletteSize,
		h.Palette,
		h.MipCount, h.Width, h.Height,
	)
}

// Levels returns the number of stored mip levels. A zero mip count still
// stores the base level.
func (h *Header) Levels() int {
	if h.MipCount == 0 {
		return 1
	}
	return int(h.MipCount)
}

// MipDim returns a dimension at the given mip level: base >> level, floored at 1.
// Every level is derived from the base, never from the previous level.
func MipDim(base uint32, level int) int {
	return max(1, int(base>>uint(level)))
}

// MipSize returns the byte size of the given mip level.
func (h *Header) MipSize(level int) int {
	return h.Format.MipSize(MipDim(h.Width, level), MipDim(h.Height, level))
}

// ImageSize returns the byte size of the whole mip chain.
func (h *Header) ImageSize() int {
	size := h.MipSize(0)
	for i := 1; i < h.Levels(); i++ {
		size += h.MipSize(i)
	}
	return size
}

// String returns a human-readable representation.
func (h *Header) String() string {
	return fmt.Sprintf("GCT v%#x: %dx%d, %d mips, format=%s, palette=%d, image_size=%d",
		h.Version, h.Width, h.Height, h.Levels(), h.Format, h.PaletteSize, h.ImageSize())
}

// Description describes the texture for an image converter. Mip levels follow
// the base surface in forward order.
func (h *Header) Description() dds.Description {
	bw, _ := h.Format.BlockDim()
	desc := dds.Description{
		Width:    h.Width,
		Height:   h.Height,
		Pitch:    uint32(divRoundUp(int(h.Width), bw) * h.Format.BlockSize()),
		Tiled:    true,
		MipCount: uint32(h.Levels()),
	}
	switch h.Format {
	case FormatCMPR, FormatCMPRMipmap:
		desc.Format = dds.FormatBC1
	case FormatRGBA8:
		desc.Format = dds.FormatRGBA8
	case FormatI8:
		desc.Format = dds.FormatR8
	default:
		desc.Format = dds.FormatUnknown
	}
	if h.Levels() > 1 {
		desc.MipAddress = uint32(h.MipSize(0))
	}
	return desc
}
