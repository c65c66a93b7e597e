package format

import (
	"bytes"
	"path"

	"golang.org/x/text/encoding/charmap"
)

// CString decodes a NUL-terminated Windows-1252 name buffer.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// PutCString encodes s into dst as Windows-1252, truncating so that at least one
// NUL terminator remains. Characters without a mapping become '?'.
func PutCString(dst []byte, s string) {
	clear(dst)
	if len(dst) == 0 {
		return
	}
	enc := charmap.Windows1252.NewEncoder()
	raw := make([]byte, 0, len(s))
	for _, r := range s {
		b, err := enc.Bytes([]byte(string(r)))
		if err != nil {
			b = []byte{'?'}
		}
		raw = append(raw, b...)
	}
	copy(dst[:len(dst)-1], raw)
}

// CleanPath turns an engine path (backslash separated, possibly with a drive
// or leading separators) into a relative slash path with "." and ".."
// elements resolved. The result may still start with "..".
func CleanPath(p string) string {
	p = string(bytes.ReplaceAll([]byte(p), []byte{'\\'}, []byte{'/'}))
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	if p == "" {
		return ""
	}
	if p = path.Clean(p); p == "." {
		return ""
	}
	return p
}
