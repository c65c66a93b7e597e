package texture

import (
	"fmt"
	"io"

	"github.com/goopsie/soiTools/pkg/format"
)

// Range locates one mip level inside forward-ordered streamed pixels.
type Range struct {
	Offset int
	Size   int
}

// MipRanges walks the streamed pixels forward, largest mip first. The ranges
// must consume exactly dataLen bytes, which must also equal ImageSize.
func MipRanges(h *Header, dataLen int) ([]Range, error) {
	ranges := make([]Range, 0, h.Levels())
	offset := 0
	for i := 0; i < h.Levels(); i++ {
		size := h.MipSize(i)
		ranges = append(ranges, Range{Offset: offset, Size: size})
		offset += size
	}

	if offset != h.ImageSize() {
		return nil, format.Errorf("mip chain covers %d bytes, image size is %d", offset, h.ImageSize())
	}
	if offset != dataLen {
		return nil, format.Errorf("mip chain covers %d bytes, streamed data has %d", offset, dataLen)
	}
	return ranges, nil
}

// WriteArchive writes streamed pixels as an archived GCT: the header stamped
// with VersionStreamed, then every mip smallest first behind its surface header.
func WriteArchive(w io.Writer, h *Header, data []byte) error {
	ranges, err := MipRanges(h, len(data))
	if err != nil {
		return err
	}

	out := *h
	out.Version = VersionStreamed
	if err := out.Write(w); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := len(ranges) - 1; i >= 0; i-- {
		width, height := MipDim(h.Width, i), MipDim(h.Height, i)
		surface := SurfaceHeader{
			Width:  uint32(width),
			Height: uint32(height),
			Size:   uint32(h.Format.MipSize(width, height)),
		}
		if err := format.Write(w, surface); err != nil {
			return fmt.Errorf("write surface header %d: %w", i, err)
		}
		r := ranges[i]
		if _, err := w.Write(data[r.Offset : r.Offset+r.Size]); err != nil {
			return format.IOError(fmt.Sprintf("write mip %d", i), err)
		}
	}
	return nil
}

// Surface is one mip level read back from an archived GCT.
type Surface struct {
	SurfaceHeader
	Data []byte
}

// ReadArchive reads an archived GCT. Surfaces are returned in file order,
// smallest first.
func ReadArchive(r io.Reader) (*Header, []Surface, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, nil, err
	}

	br := format.NewReader(r)
	surfaces := make([]Surface, h.Levels())
	for i := range surfaces {
		if err := br.Read(&surfaces[i].SurfaceHeader); err != nil {
			return nil, nil, fmt.Errorf("read surface header %d: %w", i, err)
		}
		data, err := br.Bytes(int(surfaces[i].Size))
		if err != nil {
			return nil, nil, fmt.Errorf("read surface %d: %w", i, err)
		}
		surfaces[i].Data = data
	}
	return h, surfaces, nil
}

// ForwardData reassembles surfaces read from an archive into streamed order,
// largest mip first.
func ForwardData(surfaces []Surface) []byte {
	size := 0
	for _, s := range surfaces {
		size += len(s.Data)
	}
	out := make([]byte, 0, size)
	for i := len(surfaces) - 1; i >= 0; i-- {
		out = append(out, surfaces[i].Data...)
	}
	return out
}
