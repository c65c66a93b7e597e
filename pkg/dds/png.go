package dds

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/goopsie/soiTools/pkg/format"
)

// PNGConverter decodes the base surface into a lossless PNG image. Mip
// levels are dropped.
type PNGConverter struct{}

// Convert implements Converter.
func (PNGConverter) Convert(desc Description, data []byte, w io.Writer) error {
	img, err := Decode(desc, data)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Decode decodes the tiled base surface of desc into an image.
func Decode(desc Description, data []byte) (*image.NRGBA, error) {
	width, height := int(desc.Width), int(desc.Height)
	if !desc.Tiled {
		return nil, fmt.Errorf("png converter: %w: linear %s", ErrUnsupportedFormat, desc.Format)
	}

	var size int
	switch desc.Format {
	case FormatBC1:
		size = cmprSize(width, height)
	case FormatR8:
		size = tiledSize(width, height, 8, 4, 32)
	case FormatRGBA8:
		size = tiledSize(width, height, 4, 4, 64)
	default:
		return nil, fmt.Errorf("png converter: %w: %s", ErrUnsupportedFormat, desc.Format)
	}

	base := int(desc.BaseAddress)
	if base+size > len(data) {
		return nil, format.Errorf("base surface: need %d bytes at offset %d, have %d", size, base, len(data))
	}
	surface := data[base : base+size]

	switch desc.Format {
	case FormatBC1:
		return decodeBC1(UntileCMPR(surface, width, height), width, height), nil
	case FormatR8:
		return decodeI8(surface, width, height), nil
	default:
		return decodeRGBA8(surface, width, height), nil
	}
}

func tiledSize(width, height, tileW, tileH, tileBytes int) int {
	return ((width + tileW - 1) / tileW) * ((height + tileH - 1) / tileH) * tileBytes
}

// decodeBC1 decodes linear BC1 blocks.
func decodeBC1(data []byte, width, height int) *image.NRGBA {
	nrgba := image.NewNRGBA(image.Rect(0, 0, width, height))
	blockW := (width + 3) / 4
	blockH := (height + 3) / 4

	offset := 0
	for by := 0; by < blockH; by++ {
		for bx := 0; bx < blockW; bx++ {
			c0 := uint16(data[offset]) | uint16(data[offset+1])<<8
			c1 := uint16(data[offset+2]) | uint16(data[offset+3])<<8
			colors := bc1Palette(c0, c1)

			indices := uint32(data[offset+4]) | uint32(data[offset+5])<<8 |
				uint32(data[offset+6])<<16 | uint32(data[offset+7])<<24
			offset += bc1BlockSize

			for py := 0; py < 4; py++ {
				for px := 0; px < 4; px++ {
					x, y := bx*4+px, by*4+py
					if x >= width || y >= height {
						continue
					}
					idx := (indices >> (2 * (py*4 + px))) & 3
					copy(nrgba.Pix[nrgba.PixOffset(x, y):], colors[idx][:])
				}
			}
		}
	}
	return nrgba
}

func bc1Palette(c0, c1 uint16) [4][4]uint8 {
	r0, g0, b0 := rgb565(c0)
	r1, g1, b1 := rgb565(c1)

	var colors [4][4]uint8
	colors[0] = [4]uint8{uint8(r0), uint8(g0), uint8(b0), 255}
	colors[1] = [4]uint8{uint8(r1), uint8(g1), uint8(b1), 255}
	if c0 > c1 {
		colors[2] = [4]uint8{uint8((2*r0 + r1) / 3), uint8((2*g0 + g1) / 3), uint8((2*b0 + b1) / 3), 255}
		colors[3] = [4]uint8{uint8((r0 + 2*r1) / 3), uint8((g0 + 2*g1) / 3), uint8((b0 + 2*b1) / 3), 255}
	} else {
		colors[2] = [4]uint8{uint8((r0 + r1) / 2), uint8((g0 + g1) / 2), uint8((b0 + b1) / 2), 255}
		// transparent
	}
	return colors
}

func rgb565(c uint16) (r, g, b int) {
	r5, g6, b5 := int(c>>11)&0x1f, int(c>>5)&0x3f, int(c)&0x1f
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

// decodeI8 decodes 8x4 tiles of 8-bit intensity.
func decodeI8(data []byte, width, height int) *image.NRGBA {
	nrgba := image.NewNRGBA(image.Rect(0, 0, width, height))
	tilesX := (width + 7) / 8

	for i, v := range data {
		tile, within := i/32, i%32
		x := (tile%tilesX)*8 + within%8
		y := (tile/tilesX)*4 + within/8
		if x >= width || y >= height {
			continue
		}
		copy(nrgba.Pix[nrgba.PixOffset(x, y):], []uint8{v, v, v, 255})
	}
	return nrgba
}

// decodeRGBA8 decodes 4x4 tiles that store the AR pairs of all sixteen
// pixels followed by their GB pairs.
func decodeRGBA8(data []byte, width, height int) *image.NRGBA {
	nrgba := image.NewNRGBA(image.Rect(0, 0, width, height))
	tilesX := (width + 3) / 4

	for t := 0; t*64 < len(data); t++ {
		tile := data[t*64 : t*64+64]
		for p := 0; p < 16; p++ {
			x := (t%tilesX)*4 + p%4
			y := (t/tilesX)*4 + p/4
			if x >= width || y >= height {
				continue
			}
			a, r := tile[2*p], tile[2*p+1]
			g, b := tile[32+2*p], tile[32+2*p+1]
			copy(nrgba.Pix[nrgba.PixOffset(x, y):], []uint8{r, g, b, a})
		}
	}
	return nrgba
}
