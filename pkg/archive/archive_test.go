package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DataDog/zstd"
	"github.com/goopsie/soiTools/pkg/format"
)

func TestHeader(t *testing.T) {
	t.Run("MarshalUnmarshal", func(t *testing.T) {
		original := &Header{
			Magic:            Magic,
			Version:          Version,
			Kind:             3,
			Length:           1024,
			CompressedLength: 512,
		}

		data, err := original.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if data[7] != 3 {
			t.Errorf("kind not big-endian at offset 6: % x", data[4:8])
		}

		decoded := &Header{}
		if err := decoded.UnmarshalBinary(data); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if *decoded != *original {
			t.Errorf("mismatch: got %+v, want %+v", decoded, original)
		}
	})

	t.Run("InvalidMagic", func(t *testing.T) {
		h := NewHeader(1, 1024)
		h.Magic = [4]byte{'Z', 'S', 'T', 'D'}
		h.CompressedLength = 512
		if err := h.Validate(); !errors.Is(err, format.ErrFormat) {
			t.Errorf("expected format error for invalid magic, got %v", err)
		}
	})

	t.Run("ZeroCompressedLength", func(t *testing.T) {
		h := NewHeader(1, 1024)
		if err := h.Validate(); err == nil {
			t.Error("expected error for zero compressed length")
		}
	})

	t.Run("Short", func(t *testing.T) {
		var h Header
		if err := h.UnmarshalBinary(make([]byte, HeaderSize-1)); !errors.Is(err, format.ErrFormat) {
			t.Errorf("expected format error, got %v", err)
		}
	})
}

func TestReadWrite(t *testing.T) {
	original := bytes.Repeat([]byte("vertex block "), 200)

	t.Run("EncodeDecodeRoundTrip", func(t *testing.T) {
		var buf bytes.Buffer
		ws := &seekableBuffer{Buffer: &buf}

		if err := Encode(ws, 1, original); err != nil {
			t.Fatalf("encode: %v", err)
		}

		h, decoded, err := ReadAll(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if h.Kind != 1 || h.Length != uint64(len(original)) {
			t.Errorf("header = %+v", h)
		}
		if h.CompressedLength != uint64(buf.Len()-HeaderSize) {
			t.Errorf("compressed length = %d, want %d", h.CompressedLength, buf.Len()-HeaderSize)
		}
		if !bytes.Equal(decoded, original) {
			t.Errorf("data mismatch")
		}
	})

	t.Run("Concatenated", func(t *testing.T) {
		var buf bytes.Buffer
		ws := &seekableBuffer{Buffer: &buf}
		second := []byte("collision header")
		if err := Encode(ws, 2, original, WithCompressionLevel(zstd.BestCompression)); err != nil {
			t.Fatalf("encode first: %v", err)
		}
		if err := Encode(ws, 5, second); err != nil {
			t.Fatalf("encode second: %v", err)
		}

		r := bytes.NewReader(buf.Bytes())
		if _, _, err := ReadAll(r); err != nil {
			t.Fatalf("decode first: %v", err)
		}
		h, got, err := ReadAll(r)
		if err != nil {
			t.Fatalf("decode second: %v", err)
		}
		if h.Kind != 5 || !bytes.Equal(got, second) {
			t.Errorf("second container = %+v %q", h, got)
		}
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mesh.gcg"+Extension)
		n, err := WriteFile(path, 1, original)
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() != n {
			t.Errorf("reported %d bytes, file has %d", n, info.Size())
		}

		_, decoded, err := ReadFile(path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(decoded, original) {
			t.Errorf("data mismatch")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, _, err := ReadFile(filepath.Join(t.TempDir(), "none.zst"))
		if !errors.Is(err, format.ErrIO) {
			t.Errorf("expected i/o error, got %v", err)
		}
	})
}

func BenchmarkEncode(b *testing.B) {
	data := make([]byte, 256*1024)
	for i := range data {
		data[i] = byte(i % 251)
	}

	for _, level := range []int{zstd.BestSpeed, zstd.DefaultCompression} {
		b.Run(zstdLevelName(level), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				ws := &seekableBuffer{Buffer: &bytes.Buffer{}}
				if err := Encode(ws, 4, data, WithCompressionLevel(level)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func zstdLevelName(level int) string {
	if level == zstd.BestSpeed {
		return "BestSpeed"
	}
	return "Default"
}

type seekableBuffer struct {
	*bytes.Buffer
	pos int64
}

func (s *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case 0:
		newPos = offset
	case 1:
		newPos = s.pos + offset
	case 2:
		newPos = int64(s.Buffer.Len()) + offset
	}
	s.pos = newPos
	return newPos, nil
}

func (s *seekableBuffer) Write(p []byte) (n int, err error) {
	for int64(s.Buffer.Len()) < s.pos {
		s.Buffer.WriteByte(0)
	}
	if s.pos < int64(s.Buffer.Len()) {
		data := s.Buffer.Bytes()
		n = copy(data[s.pos:], p)
		if n < len(p) {
			m, err := s.Buffer.Write(p[n:])
			n += m
			if err != nil {
				return n, err
			}
		}
	} else {
		n, err = s.Buffer.Write(p)
	}
	s.pos += int64(n)
	return n, err
}
