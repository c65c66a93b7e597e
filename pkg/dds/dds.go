// Package dds converts console texture surfaces into DDS files.
//
// Conversion is driven by a Description, which carries everything a converter
// needs to know about the source surfaces: dimensions, row pitch, whether the
// pixels are tiled, the mip count and where the base and mip surfaces start.
package dds

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PixelFormat identifies the decoded pixel layout of a surface.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatBC1
	FormatRGBA8
	FormatR8
)

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatBC1:
		return "BC1"
	case FormatRGBA8:
		return "RGBA8"
	case FormatR8:
		return "R8"
	default:
		return "Unknown"
	}
}

// Description describes source surfaces handed to a Converter.
type Description struct {
	Width       uint32
	Height      uint32
	Pitch       uint32 // bytes per row of tiles
	Tiled       bool
	MipCount    uint32
	Format      PixelFormat
	BaseAddress uint32 // offset of the base surface
	MipAddress  uint32 // offset of the first mip after the base, 0 if none
}

// Converter turns raw console surfaces into a standard image stream.
type Converter interface {
	Convert(desc Description, data []byte, w io.Writer) error
}

// ForImageFormat returns the converter for an output image format ("dds" or
// "png") and the file extension its images use.
func ForImageFormat(name string) (Converter, string, error) {
	switch name {
	case "", "dds":
		return CMPRConverter{}, ".dds", nil
	case "png":
		return PNGConverter{}, ".png", nil
	}
	return nil, "", fmt.Errorf("unknown image format %q", name)
}

// ErrUnsupportedFormat is returned for pixel formats a converter cannot handle.
var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// DXGI_FORMAT values written in the DX10 extension.
const (
	DXGI_FORMAT_R8G8B8A8_UNORM = 28
	DXGI_FORMAT_R8_UNORM       = 61
	DXGI_FORMAT_BC1_UNORM      = 71
)

// DDS header constants
const (
	DDS_MAGIC                    = 0x20534444 // "DDS "
	DDS_HEADER_SIZE              = 124
	DDS_HEADER_FLAGS_CAPS        = 0x1
	DDS_HEADER_FLAGS_HEIGHT      = 0x2
	DDS_HEADER_FLAGS_WIDTH       = 0x4
	DDS_HEADER_FLAGS_PIXELFORMAT = 0x1000
	DDS_HEADER_FLAGS_MIPMAPCOUNT = 0x20000
	DDS_HEADER_FLAGS_LINEARSIZE  = 0x80000

	DDS_SURFACE_FLAGS_TEXTURE = 0x1000
	DDS_SURFACE_FLAGS_MIPMAP  = 0x400000

	DDS_PIXELFORMAT_SIZE = 32
	DDS_FOURCC           = 0x4

	DX10_FOURCC = 0x30315844 // "DX10"

	// HeaderSize covers the magic, the DDS header and the DX10 extension.
	HeaderSize = 4 + DDS_HEADER_SIZE + 20
)

// headerWriter fills a little-endian header buffer field by field.
type headerWriter struct {
	buf []byte
	off int
}

func (h *headerWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[h.off:h.off+4], v)
	h.off += 4
}

func (h *headerWriter) skip(n int) {
	h.off += n
}

// NewHeader builds a DDS header with the DX10 extension for a 2D texture.
func NewHeader(width, height, mipCount, dxgiFormat, linearSize uint32) []byte {
	h := &headerWriter{buf: make([]byte, HeaderSize)}

	h.u32(DDS_MAGIC)
	h.u32(DDS_HEADER_SIZE)

	flags := uint32(DDS_HEADER_FLAGS_CAPS | DDS_HEADER_FLAGS_HEIGHT | DDS_HEADER_FLAGS_WIDTH |
		DDS_HEADER_FLAGS_PIXELFORMAT | DDS_HEADER_FLAGS_LINEARSIZE)
	if mipCount > 1 {
		flags |= DDS_HEADER_FLAGS_MIPMAPCOUNT
	}
	h.u32(flags)
	h.u32(height)
	h.u32(width)
	h.u32(linearSize)
	h.u32(0) // depth
	h.u32(mipCount)
	h.skip(44) // reserved

	// pixel format: FourCC "DX10", masks unused
	h.u32(DDS_PIXELFORMAT_SIZE)
	h.u32(DDS_FOURCC)
	h.u32(DX10_FOURCC)
	h.skip(20)

	caps := uint32(DDS_SURFACE_FLAGS_TEXTURE)
	if mipCount > 1 {
		caps |= DDS_SURFACE_FLAGS_MIPMAP
	}
	h.u32(caps)
	h.skip(12) // caps2-4
	h.skip(4)  // reserved2

	h.u32(dxgiFormat)
	h.u32(3) // TEXTURE2D
	h.u32(0)
	h.u32(1) // array size
	h.u32(0)

	return h.buf
}
