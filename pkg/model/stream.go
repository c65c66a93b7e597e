package model

import (
	"fmt"
	"io"

	"github.com/goopsie/soiTools/pkg/format"
)

// FaceAlignment is the streamed alignment of every face chunk.
const FaceAlignment = 32

// MeshSpan locates one mesh's data inside the streamed blob.
type MeshSpan struct {
	LOD          int
	Mesh         int
	VertexOffset int
	VertexSize   int
	FaceOffset   int
	FaceSize     int
}

// Advance places mesh m at cursor and returns its span and the cursor for
// the next mesh. The vertex block starts at the cursor; the face chunk starts
// at the next 32-byte boundary after it; the next mesh starts right after the
// face chunk, without alignment.
func Advance(cursor int, m *Mesh, blobLen int) (MeshSpan, int, error) {
	span := MeshSpan{
		VertexOffset: cursor,
		VertexSize:   m.VertexBlockSize(),
		FaceSize:     int(m.FaceChunkSize),
	}
	if span.FaceSize < 0 {
		return span, cursor, format.Errorf("negative face chunk size %d", span.FaceSize)
	}

	vertexEnd := span.VertexOffset + span.VertexSize
	if vertexEnd > blobLen {
		return span, cursor, format.Errorf("vertex block [%d,%d) exceeds streamed data of %d bytes",
			span.VertexOffset, vertexEnd, blobLen)
	}

	span.FaceOffset = alignUp(vertexEnd, FaceAlignment)
	faceEnd := span.FaceOffset + span.FaceSize
	if faceEnd > blobLen {
		return span, cursor, format.Errorf("face chunk [%d,%d) exceeds streamed data of %d bytes",
			span.FaceOffset, faceEnd, blobLen)
	}
	return span, faceEnd, nil
}

// Spans folds Advance over every mesh in LOD order.
func Spans(h *Header, blobLen int) ([]MeshSpan, error) {
	spans := make([]MeshSpan, 0, h.MeshCount())
	cursor := 0
	for i := range h.LODs {
		for j := range h.LODs[i].Meshes {
			span, next, err := Advance(cursor, &h.LODs[i].Meshes[j], blobLen)
			if err != nil {
				return nil, fmt.Errorf("lod %d mesh %d: %w", i, j, err)
			}
			span.LOD, span.Mesh = i, j
			spans = append(spans, span)
			cursor = next
		}
	}
	return spans, nil
}

// Encode writes an archived model: the header, then every mesh's vertex block
// and face chunk copied from the streamed blob.
func Encode(w io.Writer, h *Header, blob []byte) error {
	spans, err := Spans(h, len(blob))
	if err != nil {
		return err
	}
	if err := h.WriteHeader(w); err != nil {
		return err
	}
	for _, s := range spans {
		if _, err := w.Write(blob[s.VertexOffset : s.VertexOffset+s.VertexSize]); err != nil {
			return format.IOError(fmt.Sprintf("write lod %d mesh %d vertices", s.LOD, s.Mesh), err)
		}
		if _, err := w.Write(blob[s.FaceOffset : s.FaceOffset+s.FaceSize]); err != nil {
			return format.IOError(fmt.Sprintf("write lod %d mesh %d faces", s.LOD, s.Mesh), err)
		}
	}
	return nil
}

// MeshData is one mesh's data as stored in an archived model.
type MeshData struct {
	Vertices []byte
	Faces    []byte
}

// Archive is a decoded archived model.
type Archive struct {
	Header *Header
	Meshes []MeshData // LOD order
}

// ReadArchive decodes an archived model written by Encode.
func ReadArchive(r io.Reader) (*Archive, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	br := format.NewReader(r)
	a := &Archive{Header: h, Meshes: make([]MeshData, 0, h.MeshCount())}
	for i := range h.LODs {
		for j := range h.LODs[i].Meshes {
			m := &h.LODs[i].Meshes[j]
			vertices, err := br.Bytes(m.VertexBlockSize())
			if err != nil {
				return nil, fmt.Errorf("read lod %d mesh %d vertices: %w", i, j, err)
			}
			faces, err := br.Bytes(int(m.FaceChunkSize))
			if err != nil {
				return nil, fmt.Errorf("read lod %d mesh %d faces: %w", i, j, err)
			}
			a.Meshes = append(a.Meshes, MeshData{Vertices: vertices, Faces: faces})
		}
	}
	return a, nil
}

// StreamedData rebuilds the flat streamed blob, zero-filling the alignment
// gaps before each face chunk.
func (a *Archive) StreamedData() []byte {
	var out []byte
	for _, m := range a.Meshes {
		out = append(out, m.Vertices...)
		if pad := alignUp(len(out), FaceAlignment) - len(out); pad > 0 {
			out = append(out, make([]byte, pad)...)
		}
		out = append(out, m.Faces...)
	}
	return out
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
