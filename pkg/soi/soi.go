// Package soi reads the object index: the placement records of every model,
// collision mesh, motion pack and static texture in a package.
package soi

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/model"
)

const maxCount = 1 << 20

// Block locates a run of records inside the object index.
type Block struct {
	Offset int64
	Count  int
}

// Blocks locates every record run. The offsets and counts come from the
// package layout.
type Blocks struct {
	MotionPacks      Block
	RenderableModels Block
	CollisionModels  Block
	StaticTextures   Block
}

// ObjectIndex holds every record of the object index in file order.
type ObjectIndex struct {
	MotionPacks      []*MotionPack
	RenderableModels []*RenderableModel
	CollisionModels  []*CollisionModel
	StaticTextures   []*StaticTexture
}

// ReadFile reads the object index at path.
func ReadFile(path string, b Blocks) (*ObjectIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, format.IOError("open object index", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, format.IOError("stat object index", err)
	}
	return Read(f, info.Size(), b)
}

// Read decodes the record blocks described by b from r.
func Read(r io.ReaderAt, size int64, b Blocks) (*ObjectIndex, error) {
	var (
		x   ObjectIndex
		err error
	)
	if x.MotionPacks, err = readBlock(r, size, b.MotionPacks, "motion pack", readMotionPack); err != nil {
		return nil, err
	}
	if x.RenderableModels, err = readBlock(r, size, b.RenderableModels, "renderable model", readRenderableModel); err != nil {
		return nil, err
	}
	if x.CollisionModels, err = readBlock(r, size, b.CollisionModels, "collision model", readCollisionModel); err != nil {
		return nil, err
	}
	if x.StaticTextures, err = readBlock(r, size, b.StaticTextures, "static texture", readStaticTexture); err != nil {
		return nil, err
	}
	return &x, nil
}

func readBlock[T any](r io.ReaderAt, size int64, b Block, name string, read func(*format.Reader) (*T, error)) ([]*T, error) {
	if b.Count == 0 {
		return nil, nil
	}
	if b.Count < 0 || b.Count > maxCount {
		return nil, format.Errorf("%s count %d out of range", name, b.Count)
	}
	if b.Offset < 0 || b.Offset >= size {
		return nil, format.Errorf("%s block offset %d outside object index of %d bytes", name, b.Offset, size)
	}

	fr := format.NewReader(io.NewSectionReader(r, b.Offset, size-b.Offset))
	records := make([]*T, 0, b.Count)
	for i := 0; i < b.Count; i++ {
		rec, err := read(fr)
		if err != nil {
			return nil, fmt.Errorf("read %s %d: %w", name, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readMotionPack(r *format.Reader) (*MotionPack, error) {
	info, err := readModelInfo(r)
	if err != nil {
		return nil, err
	}
	header, err := readSized(r)
	if err != nil {
		return nil, err
	}
	return &MotionPack{Info: info, Header: header}, nil
}

func readRenderableModel(r *format.Reader) (*RenderableModel, error) {
	info, err := readModelInfo(r)
	if err != nil {
		return nil, err
	}
	params, err := readParameters(r, &info)
	if err != nil {
		return nil, err
	}
	header, err := model.ReadHeader(r.Stream())
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", info.DisplayName(), err)
	}
	return &RenderableModel{Info: info, Parameters: params, Header: header}, nil
}

func readCollisionModel(r *format.Reader) (*CollisionModel, error) {
	info, err := readModelInfo(r)
	if err != nil {
		return nil, err
	}
	params, err := readParameters(r, &info)
	if err != nil {
		return nil, err
	}
	header, err := readSized(r)
	if err != nil {
		return nil, err
	}
	return &CollisionModel{Info: info, Parameters: params, Header: header}, nil
}

func readStaticTexture(r *format.Reader) (*StaticTexture, error) {
	info, err := readModelInfo(r)
	if err != nil {
		return nil, err
	}
	var padding uint32
	if err := r.Read(&padding); err != nil {
		return nil, err
	}
	file, err := readSized(r)
	if err != nil {
		return nil, err
	}
	return &StaticTexture{Info: info, Padding: padding, File: file}, nil
}

func readSized(r *format.Reader) ([]byte, error) {
	var size uint32
	if err := r.Read(&size); err != nil {
		return nil, err
	}
	if size > 1<<30 {
		return nil, format.Errorf("block size %d at offset %d", size, r.Offset())
	}
	return r.Bytes(int(size))
}

// Encode serializes the records in block order: motion packs, renderable
// models, collision models, static textures. It returns the encoded bytes and
// the block table describing them.
func (x *ObjectIndex) Encode() ([]byte, Blocks, error) {
	var (
		buf bytes.Buffer
		b   Blocks
	)
	mark := func(blk *Block, n int) {
		blk.Count = n
		if n > 0 {
			blk.Offset = int64(buf.Len())
		}
	}

	mark(&b.MotionPacks, len(x.MotionPacks))
	for _, m := range x.MotionPacks {
		if err := writeInfo(&buf, m.Info, nil); err != nil {
			return nil, b, err
		}
		if err := writeSized(&buf, m.Header); err != nil {
			return nil, b, err
		}
	}

	mark(&b.RenderableModels, len(x.RenderableModels))
	for _, m := range x.RenderableModels {
		if err := writeInfo(&buf, m.Info, m.Parameters); err != nil {
			return nil, b, err
		}
		if err := m.Header.WriteHeader(&buf); err != nil {
			return nil, b, fmt.Errorf("write model %q: %w", m.Info.DisplayName(), err)
		}
	}

	mark(&b.CollisionModels, len(x.CollisionModels))
	for _, m := range x.CollisionModels {
		if err := writeInfo(&buf, m.Info, m.Parameters); err != nil {
			return nil, b, err
		}
		if err := writeSized(&buf, m.Header); err != nil {
			return nil, b, err
		}
	}

	mark(&b.StaticTextures, len(x.StaticTextures))
	for _, t := range x.StaticTextures {
		if err := writeInfo(&buf, t.Info, nil); err != nil {
			return nil, b, err
		}
		if err := format.Write(&buf, t.Padding); err != nil {
			return nil, b, err
		}
		if err := writeSized(&buf, t.File); err != nil {
			return nil, b, err
		}
	}
	return buf.Bytes(), b, nil
}

func writeSized(w io.Writer, data []byte) error {
	return format.Write(w, uint32(len(data)), data)
}
