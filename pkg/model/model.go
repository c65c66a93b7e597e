// Package model implements the GCG streaming model format.
//
// The object index stores only the model header; vertex and face data arrive
// later as one flat blob from the streamed data. Encode rebuilds an archived
// model by walking the header's meshes and cutting each mesh's vertex block
// and face chunk out of that blob.
package model

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/goopsie/soiTools/pkg/format"
)

// Magic identifies a GCG header.
var Magic = [4]byte{'g', 'g', 's', 0}

// maxCount bounds element counts read from the header.
const maxCount = 1 << 16

// Bone is one skeleton joint.
type Bone struct {
	Name         [128]byte
	Matrix       mgl32.Mat4
	BoundsCenter mgl32.Vec3
	BoundsHalf   mgl32.Vec3
	BoundsRadius float32
	ParentIndex  uint32
}

// BoneName returns the decoded bone name.
func (b *Bone) BoneName() string {
	return format.CString(b.Name[:])
}

// MeshName is a fixed 64-byte mesh name field.
type MeshName [64]byte

func (n MeshName) String() string {
	return format.CString(n[:])
}

// Weight binds a skin weight to a bone.
type Weight struct {
	BoneID uint16
	Weight float32
}

// LOD is one level of detail.
type LOD struct {
	AutoLODValue float32
	Meshes       []Mesh
}

// Header is a GCG streaming model header.
type Header struct {
	Version      int32
	Bones        []Bone
	MeshNames    []MeshName
	SkinAnimates uint8
	HasWeight    uint8
	Unused       uint8
	Weights      []Weight // present when HasWeight != 0
	LODs         []LOD
}

// ReadHeader decodes a GCG header.
func ReadHeader(r io.Reader) (*Header, error) {
	br := format.NewReader(r)
	h := &Header{}

	var magic [4]byte
	if err := br.Read(&magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != Magic {
		return nil, format.Errorf("invalid model magic: expected %q, got %q", Magic[:], magic[:])
	}

	var head struct {
		Version  int32
		NumBones uint32
	}
	if err := br.Read(&head); err != nil {
		return nil, fmt.Errorf("read model header: %w", err)
	}
	if head.NumBones > maxCount {
		return nil, format.Errorf("bone count %d out of range", head.NumBones)
	}
	h.Version = head.Version

	h.Bones = make([]Bone, head.NumBones)
	if err := br.Read(h.Bones); err != nil {
		return nil, fmt.Errorf("read bones: %w", err)
	}

	var numNames int32
	if err := br.Read(&numNames); err != nil {
		return nil, fmt.Errorf("read mesh name count: %w", err)
	}
	if numNames < 0 || numNames > maxCount {
		return nil, format.Errorf("mesh name count %d out of range", numNames)
	}
	h.MeshNames = make([]MeshName, numNames)
	if err := br.Read(h.MeshNames); err != nil {
		return nil, fmt.Errorf("read mesh names: %w", err)
	}

	var flags struct {
		NumLOD       uint8
		SkinAnimates uint8
		HasWeight    uint8
		Unused       uint8
	}
	if err := br.Read(&flags); err != nil {
		return nil, fmt.Errorf("read model flags: %w", err)
	}
	h.SkinAnimates, h.HasWeight, h.Unused = flags.SkinAnimates, flags.HasWeight, flags.Unused

	if h.HasWeight != 0 {
		var count uint16
		if err := br.Read(&count); err != nil {
			return nil, fmt.Errorf("read weight count: %w", err)
		}
		h.Weights = make([]Weight, count)
		if err := br.Read(h.Weights); err != nil {
			return nil, fmt.Errorf("read weights: %w", err)
		}
	}

	h.LODs = make([]LOD, flags.NumLOD)
	for i := range h.LODs {
		lod := &h.LODs[i]
		var lh struct {
			AutoLODValue float32
			NumMeshes    uint32
		}
		if err := br.Read(&lh); err != nil {
			return nil, fmt.Errorf("read lod %d: %w", i, err)
		}
		if lh.NumMeshes > maxCount {
			return nil, format.Errorf("lod %d: mesh count %d out of range", i, lh.NumMeshes)
		}
		lod.AutoLODValue = lh.AutoLODValue
		lod.Meshes = make([]Mesh, lh.NumMeshes)
		for j := range lod.Meshes {
			m, err := readMesh(br)
			if err != nil {
				return nil, fmt.Errorf("read lod %d mesh %d: %w", i, j, err)
			}
			lod.Meshes[j] = m
		}
	}

	return h, nil
}

// DecodeHeader decodes a GCG header from a byte slice.
func DecodeHeader(data []byte) (*Header, error) {
	return ReadHeader(bytes.NewReader(data))
}

// WriteHeader encodes the header.
func (h *Header) WriteHeader(w io.Writer) error {
	if len(h.LODs) > 0xff {
		return format.Errorf("lod count %d does not fit in a byte", len(h.LODs))
	}
	if h.HasWeight != 0 && len(h.Weights) > 0xffff {
		return format.Errorf("weight count %d does not fit in 16 bits", len(h.Weights))
	}

	if err := format.Write(w,
		Magic, h.Version,
		uint32(len(h.Bones)), h.Bones,
		int32(len(h.MeshNames)), h.MeshNames,
		uint8(len(h.LODs)), h.SkinAnimates, h.HasWeight, h.Unused,
	); err != nil {
		return fmt.Errorf("write model header: %w", err)
	}

	if h.HasWeight != 0 {
		if err := format.Write(w, uint16(len(h.Weights)), h.Weights); err != nil {
			return fmt.Errorf("write weights: %w", err)
		}
	}

	for i := range h.LODs {
		lod := &h.LODs[i]
		if err := format.Write(w, lod.AutoLODValue, uint32(len(lod.Meshes))); err != nil {
			return fmt.Errorf("write lod %d: %w", i, err)
		}
		for j := range lod.Meshes {
			if err := lod.Meshes[j].write(w); err != nil {
				return fmt.Errorf("write lod %d mesh %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// MeshCount returns the number of meshes across all LODs.
func (h *Header) MeshCount() int {
	n := 0
	for _, lod := range h.LODs {
		n += len(lod.Meshes)
	}
	return n
}
