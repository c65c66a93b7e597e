package soi

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/model"
	"github.com/goopsie/soiTools/pkg/texture"
)

// NoZone is the zone id of objects outside every zone.
const NoZone = -1

// ModelInfo is the placement record shared by every object kind.
type ModelInfo struct {
	Flags          int32
	Position       mgl32.Vec4
	LookVector     mgl32.Vec4
	UpVector       mgl32.Vec4
	IsAnimated     int32
	SectionID      int32
	ComponentID    int32
	Name           [260]byte
	Zone           int32
	ParameterCount int32
}

// ModelInfoSize is the encoded size of a ModelInfo.
const ModelInfoSize = 332

// DisplayName returns the decoded object name.
func (m *ModelInfo) DisplayName() string {
	return format.CString(m.Name[:])
}

// SetName stores name in the fixed name buffer.
func (m *ModelInfo) SetName(name string) {
	format.PutCString(m.Name[:], name)
}

// Animated reports whether the object is animated.
func (m *ModelInfo) Animated() bool {
	return m.IsAnimated != 0
}

// HasZone reports whether the object belongs to a zone.
func (m *ModelInfo) HasZone() bool {
	return m.Zone != NoZone
}

func readModelInfo(r *format.Reader) (ModelInfo, error) {
	var info ModelInfo
	if err := r.Read(&info); err != nil {
		return info, fmt.Errorf("read model info: %w", err)
	}
	if info.SectionID < 0 || info.ComponentID < 0 {
		return info, format.Errorf("model info %q has negative identity (section %d, component %d)",
			info.DisplayName(), info.SectionID, info.ComponentID)
	}
	if info.ParameterCount < 0 || info.ParameterCount > maxCount {
		return info, format.Errorf("model info %q has parameter count %d", info.DisplayName(), info.ParameterCount)
	}
	return info, nil
}

// Parameter is a name/value pair attached to a placed model.
type Parameter struct {
	Name  [32]byte
	Value [128]byte
}

// NewParameter builds a parameter from strings.
func NewParameter(name, value string) Parameter {
	var p Parameter
	format.PutCString(p.Name[:], name)
	format.PutCString(p.Value[:], value)
	return p
}

func (p Parameter) String() string {
	return format.CString(p.Name[:]) + "=" + format.CString(p.Value[:])
}

func readParameters(r *format.Reader, info *ModelInfo) ([]Parameter, error) {
	params := make([]Parameter, info.ParameterCount)
	if err := r.Read(params); err != nil {
		return nil, fmt.Errorf("read parameters of %q: %w", info.DisplayName(), err)
	}
	return params, nil
}

// RenderableModel is a placed model whose geometry is streamed.
type RenderableModel struct {
	Info       ModelInfo
	Parameters []Parameter
	Header     *model.Header
}

// String renders the model in scene listing form.
func (m *RenderableModel) String() string {
	return describe(&m.Info, m.Parameters)
}

// CollisionModel is a placed collision mesh. Its header is kept opaque.
type CollisionModel struct {
	Info       ModelInfo
	Parameters []Parameter
	Header     []byte
}

// String renders the collision model in scene listing form.
func (m *CollisionModel) String() string {
	return describe(&m.Info, m.Parameters)
}

// MotionPack is an animation pack. Its header is kept opaque.
type MotionPack struct {
	Info   ModelInfo
	Header []byte
}

// StaticTexture is a texture whose whole GCT file is embedded in the object index.
type StaticTexture struct {
	Info    ModelInfo
	Padding uint32
	File    []byte
}

// TextureHeader parses the header of the embedded file.
func (t *StaticTexture) TextureHeader() (*texture.Header, error) {
	return texture.ReadHeader(bytes.NewReader(t.File))
}

func describe(info *ModelInfo, params []Parameter) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SLT=%s\n", info.DisplayName())
	fmt.Fprintf(&sb, "Position=%s\n", vec4(info.Position))
	fmt.Fprintf(&sb, "LookVector=%s\n", vec4(info.LookVector))
	fmt.Fprintf(&sb, "UpVector=%s\n", vec4(info.UpVector))
	if info.HasZone() {
		fmt.Fprintf(&sb, "Zone=%d\n", info.Zone)
	}
	for _, p := range params {
		sb.WriteString(p.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func vec4(v mgl32.Vec4) string {
	return fmt.Sprintf("%g,%g,%g,%g", v[0], v[1], v[2], v[3])
}

func writeInfo(w io.Writer, info ModelInfo, params []Parameter) error {
	info.ParameterCount = int32(len(params))
	return format.Write(w, info, params)
}
