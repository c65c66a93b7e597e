package texture

import "fmt"

// Format is the GX pixel format stored in a GCT header.
type Format uint32

const (
	FormatRGBA8      Format = 0x0F
	FormatCMPR       Format = 0x29
	FormatCMPRMipmap Format = 0x2A
	FormatCI8        Format = 0x3A
	FormatCI8Mipmap  Format = 0x3B
	FormatI8         Format = 0x3C
)

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	switch f {
	case FormatRGBA8, FormatCMPR, FormatCMPRMipmap, FormatCI8, FormatCI8Mipmap, FormatI8:
		return true
	}
	return false
}

// BlockDim returns the tile size in pixels.
func (f Format) BlockDim() (width, height int) {
	switch f {
	case FormatRGBA8:
		return 4, 4
	case FormatCMPR, FormatCMPRMipmap:
		return 8, 8
	case FormatCI8, FormatCI8Mipmap, FormatI8:
		return 8, 4
	}
	return 0, 0
}

// BitsPerPixel returns the storage cost of one pixel.
func (f Format) BitsPerPixel() int {
	switch f {
	case FormatRGBA8:
		return 32
	case FormatCMPR, FormatCMPRMipmap:
		return 4
	case FormatCI8, FormatCI8Mipmap, FormatI8:
		return 8
	}
	return 0
}

// BlockSize returns the byte size of one tile.
func (f Format) BlockSize() int {
	bw, bh := f.BlockDim()
	return bw * bh * f.BitsPerPixel() / 8
}

// MipSize returns the byte size of a single surface. Partial tiles count as
// whole tiles.
func (f Format) MipSize(width, height int) int {
	bw, bh := f.BlockDim()
	if bw == 0 || bh == 0 {
		return 0
	}
	return divRoundUp(width, bw) * divRoundUp(height, bh) * f.BlockSize()
}

// String returns the format name without the mipmap suffix.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "Rgba8"
	case FormatCMPR, FormatCMPRMipmap:
		return "Cmpr"
	case FormatCI8, FormatCI8Mipmap:
		return "Ci8"
	case FormatI8:
		return "I8"
	}
	return fmt.Sprintf("UNKNOWN(0x%x)", uint32(f))
}

func divRoundUp(n, d int) int {
	return (n + d - 1) / d
}
