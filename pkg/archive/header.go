// Package archive stores extracted assets as ZSTD compressed containers.
//
// A container is a fixed header followed by one ZSTD frame. The header records
// the component kind of the asset so that a container can be routed without
// decompressing it.
package archive

import (
	"github.com/goopsie/soiTools/pkg/format"
)

// Magic identifies a container header.
var Magic = [4]byte{'S', 'O', 'I', 'Z'}

// Version is the container version written by this package.
const Version = 1

// Extension is the file suffix of containers.
const Extension = ".zst"

// HeaderSize is the fixed binary size of a container header.
const HeaderSize = 24 // 4 + 2 + 2 + 8 + 8 bytes

// Header represents the header of a container.
type Header struct {
	Magic            [4]byte
	Version          uint16
	Kind             uint16
	Length           uint64 // Uncompressed size
	CompressedLength uint64 // Compressed size
}

// Validate checks the header for validity.
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return format.Errorf("invalid container magic: expected %q, got %q", Magic[:], h.Magic[:])
	}
	if h.Version != Version {
		return format.Errorf("unsupported container version %d", h.Version)
	}
	if h.CompressedLength == 0 && h.Length != 0 {
		return format.Errorf("compressed size is zero for %d bytes", h.Length)
	}
	return nil
}

// MarshalBinary encodes the header to binary format.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.EncodeTo(buf)
	return buf, nil
}

// EncodeTo writes the header to the given buffer.
// The buffer must be at least HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	copy(buf[0:4], h.Magic[:])
	format.ByteOrder.PutUint16(buf[4:6], h.Version)
	format.ByteOrder.PutUint16(buf[6:8], h.Kind)
	format.ByteOrder.PutUint64(buf[8:16], h.Length)
	format.ByteOrder.PutUint64(buf[16:24], h.CompressedLength)
}

// UnmarshalBinary decodes and validates the header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return format.Errorf("container header too short: need %d, got %d", HeaderSize, len(data))
	}
	copy(h.Magic[:], data[0:4])
	h.Version = format.ByteOrder.Uint16(data[4:6])
	h.Kind = format.ByteOrder.Uint16(data[6:8])
	h.Length = format.ByteOrder.Uint64(data[8:16])
	h.CompressedLength = format.ByteOrder.Uint64(data[16:24])
	return h.Validate()
}

// NewHeader creates a header for an asset of the given kind and size.
func NewHeader(kind uint16, length uint64) *Header {
	return &Header{
		Magic:   Magic,
		Version: Version,
		Kind:    kind,
		Length:  length,
	}
}
