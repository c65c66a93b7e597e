package dds

import (
	"fmt"
	"io"

	"github.com/goopsie/soiTools/pkg/format"
)

const (
	cmprTile     = 8  // pixels per tile edge
	bc1BlockSize = 8  // bytes per 4x4 block
	cmprTileSize = 32 // four BC1 blocks per tile
)

// CMPRConverter converts GameCube CMPR surfaces into a BC1 DDS.
//
// CMPR stores 8x8 tiles, each holding four BC1 blocks in Z order with
// big-endian endpoint colors and the first pixel in the top bits of every index
// row. The converter untiles each mip level into linear BC1 blocks.
type CMPRConverter struct{}

// Convert implements Converter.
func (CMPRConverter) Convert(desc Description, data []byte, w io.Writer) error {
	if desc.Format != FormatBC1 || !desc.Tiled {
		return fmt.Errorf("cmpr converter: %w: %s", ErrUnsupportedFormat, desc.Format)
	}

	levels := max(1, int(desc.MipCount))
	linearSize := bc1Size(int(desc.Width), int(desc.Height))
	header := NewHeader(desc.Width, desc.Height, uint32(levels), DXGI_FORMAT_BC1_UNORM, uint32(linearSize))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write dds header: %w", err)
	}

	offset := int(desc.BaseAddress)
	for level := 0; level < levels; level++ {
		if level == 1 && desc.MipAddress != 0 {
			offset = int(desc.MipAddress)
		}
		width := max(1, int(desc.Width>>uint(level)))
		height := max(1, int(desc.Height>>uint(level)))
		size := cmprSize(width, height)
		if offset+size > len(data) {
			return format.Errorf("mip %d: need %d bytes at offset %d, have %d", level, size, offset, len(data))
		}

		if _, err := w.Write(UntileCMPR(data[offset:offset+size], width, height)); err != nil {
			return fmt.Errorf("write mip %d: %w", level, err)
		}
		offset += size
	}
	return nil
}

// UntileCMPR converts one CMPR surface into linear BC1 blocks.
func UntileCMPR(src []byte, width, height int) []byte {
	blocksX, blocksY := (width+3)/4, (height+3)/4
	tilesX, tilesY := (width+cmprTile-1)/cmprTile, (height+cmprTile-1)/cmprTile
	out := make([]byte, blocksX*blocksY*bc1BlockSize)

	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			for sub := 0; sub < 4; sub++ {
				bx, by := tx*2+sub%2, ty*2+sub/2
				if bx >= blocksX || by >= blocksY {
					continue
				}
				s := ((ty*tilesX+tx)*4 + sub) * bc1BlockSize
				d := (by*blocksX + bx) * bc1BlockSize
				convertBlock(out[d:d+bc1BlockSize], src[s:s+bc1BlockSize])
			}
		}
	}
	return out
}

// convertBlock swaps the endpoint colors to little endian and reverses the
// pixel order within every index row.
func convertBlock(dst, src []byte) {
	dst[0], dst[1] = src[1], src[0]
	dst[2], dst[3] = src[3], src[2]
	for row := 0; row < 4; row++ {
		b := src[4+row]
		dst[4+row] = (b&0x03)<<6 | (b&0x0c)<<2 | (b&0x30)>>2 | (b&0xc0)>>6
	}
}

func cmprSize(width, height int) int {
	return ((width + cmprTile - 1) / cmprTile) * ((height + cmprTile - 1) / cmprTile) * cmprTileSize
}

func bc1Size(width, height int) int {
	return ((width + 3) / 4) * ((height + 3) / 4) * bc1BlockSize
}
