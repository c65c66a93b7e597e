package str

import (
	"fmt"
	"strings"

	"github.com/goopsie/soiTools/pkg/format"
)

// Kind identifies the payload of a component.
type Kind uint16

const (
	KindRenderableModel Kind = iota + 1
	KindCollisionModel
	KindTexture
	KindUserData
	KindMotionPack
	KindCollisionGrid
)

// Kinds lists every component kind.
var Kinds = []Kind{
	KindRenderableModel,
	KindCollisionModel,
	KindTexture,
	KindUserData,
	KindMotionPack,
	KindCollisionGrid,
}

var kindNames = map[Kind]string{
	KindRenderableModel: "renderable_model",
	KindCollisionModel:  "collision_model",
	KindTexture:         "texture",
	KindUserData:        "user_data",
	KindMotionPack:      "motion_pack",
	KindCollisionGrid:   "collision_grid",
}

// Valid reports whether k is a known component kind. The zero kind that ends a
// page group is not valid.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// String returns the kind name used in output paths, manifests and flags.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint16(k))
}

// ParseKind parses a kind name as returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown component kind %q", s)
}

// Component is one streamed payload.
type Component struct {
	Kind       Kind
	ID         uint32
	InstanceID uint32
	Path       string
	Data       []byte
}

// ChunkHeaderSize is the size of the fixed part of a component chunk.
const ChunkHeaderSize = 16

// ParseComponents splits the concatenated bytes of a page group into
// components. A zero kind ends the group.
func ParseComponents(data []byte) ([]Component, error) {
	var out []Component
	off := 0
	for off < len(data) {
		rest := data[off:]
		if len(rest) < 2 {
			if rest[0] != 0 {
				return nil, format.Errorf("trailing byte 0x%02x at offset %d", rest[0], off)
			}
			break
		}
		kind := Kind(format.ByteOrder.Uint16(rest))
		if kind == 0 {
			break
		}
		if !kind.Valid() {
			return nil, format.Errorf("unknown component kind %d at offset %d", uint16(kind), off)
		}
		if len(rest) < ChunkHeaderSize {
			return nil, format.Errorf("component header at offset %d truncated: %d bytes left", off, len(rest))
		}

		pathLen := int(format.ByteOrder.Uint16(rest[2:]))
		c := Component{
			Kind:       kind,
			ID:         format.ByteOrder.Uint32(rest[4:]),
			InstanceID: format.ByteOrder.Uint32(rest[8:]),
		}
		dataSize := int64(format.ByteOrder.Uint32(rest[12:]))

		end := int64(ChunkHeaderSize) + int64(pathLen) + dataSize
		if end > int64(len(rest)) {
			return nil, format.Errorf("%s component %d at offset %d declares %d bytes, only %d remain",
				kind, c.ID, off, end, len(rest))
		}
		pathEnd := ChunkHeaderSize + pathLen
		c.Path = format.CString(rest[ChunkHeaderSize:pathEnd])
		c.Data = rest[pathEnd:int(end):int(end)]

		out = append(out, c)
		off += int(end)
	}
	return out, nil
}

// AppendComponent appends the chunk encoding of c to dst.
func AppendComponent(dst []byte, c Component) []byte {
	dst = format.ByteOrder.AppendUint16(dst, uint16(c.Kind))
	dst = format.ByteOrder.AppendUint16(dst, uint16(len(c.Path)))
	dst = format.ByteOrder.AppendUint32(dst, c.ID)
	dst = format.ByteOrder.AppendUint32(dst, c.InstanceID)
	dst = format.ByteOrder.AppendUint32(dst, uint32(len(c.Data)))
	dst = append(dst, c.Path...)
	return append(dst, c.Data...)
}
