package extract

import (
	"fmt"
	"os"
	"sort"

	"github.com/goopsie/soiTools/pkg/format"
	"gopkg.in/yaml.v3"
)

// ManifestName is the file name of the manifest written into the output directory.
const ManifestName = "manifest.yaml"

// Source tells where an extracted asset came from.
type Source string

const (
	SourceStreamed Source = "streamed"
	SourceStatic   Source = "static"
)

// Manifest lists every file written by an extraction.
type Manifest struct {
	Package string  `yaml:"package"`
	Entries []Entry `yaml:"entries"`
}

// Entry describes one output file.
type Entry struct {
	Section    uint32 `yaml:"section"`
	Kind       string `yaml:"kind"`
	ID         uint32 `yaml:"id"`
	Instance   uint32 `yaml:"instance"`
	Name       string `yaml:"name,omitempty"`
	Path       string `yaml:"path"`
	Size       int64  `yaml:"size"`
	Source     Source `yaml:"source"`
	Compressed bool   `yaml:"compressed,omitempty"`
}

// FileCount returns the number of entries.
func (m *Manifest) FileCount() int {
	return len(m.Entries)
}

// TotalSize returns the number of bytes written across all entries.
func (m *Manifest) TotalSize() int64 {
	var n int64
	for _, e := range m.Entries {
		n += e.Size
	}
	return n
}

// CountByKind returns the number of entries per kind.
func (m *Manifest) CountByKind() map[string]int {
	counts := make(map[string]int)
	for _, e := range m.Entries {
		counts[e.Kind]++
	}
	return counts
}

// Kinds returns the kinds present, sorted.
func (m *Manifest) Kinds() []string {
	counts := m.CountByKind()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// ReadManifest reads a manifest from a YAML file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, format.IOError("read manifest", err)
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w: %w", format.ErrFormat, err)
	}
	return m, nil
}

// WriteManifest writes a manifest to a YAML file.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return format.IOError("write manifest", err)
	}
	return nil
}
