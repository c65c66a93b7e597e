package model

import (
	"fmt"
	"io"

	"github.com/goopsie/soiTools/pkg/format"
)

// CompType is the GX component type of a vertex attribute.
type CompType uint8

const (
	CompU8 CompType = iota
	CompS8
	CompU16
	CompS16
	CompF32
	CompU32
)

// Size returns the byte width of one component.
func (c CompType) Size() int {
	switch c {
	case CompU8, CompS8:
		return 1
	case CompU16, CompS16:
		return 2
	case CompF32, CompU32:
		return 4
	}
	return 0
}

func (c CompType) String() string {
	switch c {
	case CompU8:
		return "U8"
	case CompS8:
		return "S8"
	case CompU16:
		return "U16"
	case CompS16:
		return "S16"
	case CompF32:
		return "F32"
	case CompU32:
		return "U32"
	}
	return fmt.Sprintf("CompType(%d)", uint8(c))
}

// AttrType is the GX attribute type (how an attribute is referenced).
type AttrType uint8

const (
	AttrNone AttrType = iota
	AttrDirect
	AttrIndex8
	AttrIndex16
)

// Vertex type bits.
const (
	vertexTypeNoColor = 0x1 // clear: colors present; set: normals possible
	vertexTypeUV      = 0x2
	vertexTypeNormal  = 0x8
)

// VertexLayout lists the optional channels selected by a mesh's vertex type.
// Decoder, encoder and size accounting all go through it.
type VertexLayout struct {
	Normals bool
	Colors  bool
	UVs     bool // UV data is part of the streamed vertex block
}

// NewVertexLayout derives the channel layout from a vertex type byte.
func NewVertexLayout(vertexType uint8) VertexLayout {
	noColor := vertexType&vertexTypeNoColor != 0
	return VertexLayout{
		Normals: noColor && vertexType&vertexTypeNormal != 0,
		Colors:  !noColor,
		UVs:     vertexType&vertexTypeUV != 0,
	}
}

// Mesh describes one mesh of a LOD. Normal and color fields are meaningful
// only when the layout selects them.
type Mesh struct {
	SurfaceIndex uint32
	VertexType   uint8

	VertexAttr  AttrType
	VertexData  CompType
	XYZFracBits uint8

	NormalAttr AttrType
	NormalData CompType

	ColorAttr AttrType
	ColorData CompType

	UVAttr      AttrType
	UVData      CompType
	TexFracBits uint8

	VertexCount uint16
	ByteStride  uint8

	NormalCount  uint16
	NormalStride uint8

	ColorCount  uint16
	ColorStride uint8

	UVCount  uint16
	UVStride uint8

	FaceChunkSize int32
}

// Layout returns the mesh's channel layout.
func (m *Mesh) Layout() VertexLayout {
	return NewVertexLayout(m.VertexType)
}

// VertexBlockSize returns the streamed byte size of the mesh's vertex block:
// positions, then normals, colors and UVs when the layout selects them.
// Channels with a zero count contribute nothing.
func (m *Mesh) VertexBlockSize() int {
	layout := m.Layout()
	size := int(m.VertexCount) * m.VertexData.Size() * 3
	if layout.Normals {
		size += int(m.NormalCount) * m.NormalData.Size() * 3
	}
	if layout.Colors {
		size += int(m.ColorCount) * 4
	}
	if layout.UVs {
		size += int(m.UVCount) * m.UVData.Size() * 2
	}
	return size
}

func readMesh(r *format.Reader) (Mesh, error) {
	var m Mesh
	var head struct {
		SurfaceIndex uint32
		VertexType   uint8
		VertexAttr   uint8
		VertexData   uint8
		XYZFracBits  uint8
	}
	if err := r.Read(&head); err != nil {
		return m, err
	}
	m.SurfaceIndex = head.SurfaceIndex
	m.VertexType = head.VertexType
	m.VertexAttr = AttrType(head.VertexAttr)
	m.VertexData = CompType(head.VertexData)
	m.XYZFracBits = head.XYZFracBits

	layout := m.Layout()
	var pair [2]uint8
	if layout.Normals {
		if err := r.Read(&pair); err != nil {
			return m, err
		}
		m.NormalAttr, m.NormalData = AttrType(pair[0]), CompType(pair[1])
	}
	if layout.Colors {
		if err := r.Read(&pair); err != nil {
			return m, err
		}
		m.ColorAttr, m.ColorData = AttrType(pair[0]), CompType(pair[1])
	}

	var uv [3]uint8
	if err := r.Read(&uv); err != nil {
		return m, err
	}
	m.UVAttr, m.UVData, m.TexFracBits = AttrType(uv[0]), CompType(uv[1]), uv[2]

	var err error
	if m.VertexCount, m.ByteStride, err = readCount(r); err != nil {
		return m, err
	}
	if layout.Normals {
		if m.NormalCount, m.NormalStride, err = readCount(r); err != nil {
			return m, err
		}
	}
	if layout.Colors {
		if m.ColorCount, m.ColorStride, err = readCount(r); err != nil {
			return m, err
		}
	}
	if m.UVCount, m.UVStride, err = readCount(r); err != nil {
		return m, err
	}

	if err := r.Read(&m.FaceChunkSize); err != nil {
		return m, err
	}
	if m.FaceChunkSize < 0 {
		return m, format.Errorf("negative face chunk size %d", m.FaceChunkSize)
	}
	return m, nil
}

func readCount(r *format.Reader) (uint16, uint8, error) {
	var c struct {
		Count  uint16
		Stride uint8
	}
	err := r.Read(&c)
	return c.Count, c.Stride, err
}

func (m *Mesh) write(w io.Writer) error {
	layout := m.Layout()
	values := []any{
		m.SurfaceIndex, m.VertexType,
		uint8(m.VertexAttr), uint8(m.VertexData), m.XYZFracBits,
	}
	if layout.Normals {
		values = append(values, uint8(m.NormalAttr), uint8(m.NormalData))
	}
	if layout.Colors {
		values = append(values, uint8(m.ColorAttr), uint8(m.ColorData))
	}
	values = append(values, uint8(m.UVAttr), uint8(m.UVData), m.TexFracBits)

	values = append(values, m.VertexCount, m.ByteStride)
	if layout.Normals {
		values = append(values, m.NormalCount, m.NormalStride)
	}
	if layout.Colors {
		values = append(values, m.ColorCount, m.ColorStride)
	}
	values = append(values, m.UVCount, m.UVStride, m.FaceChunkSize)

	return format.Write(w, values...)
}
