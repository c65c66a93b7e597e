// Package fixture assembles synthetic packages for tests.
package fixture

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/goopsie/soiTools/pkg/soi"
	"github.com/goopsie/soiTools/pkg/str"
	"github.com/goopsie/soiTools/pkg/toc"
)

// DefaultPageSize is used when Package.PageSize is zero.
const DefaultPageSize = 64

// Section lists the components streamed by one section.
type Section struct {
	Uncached []str.Component
	Cached   []str.Component
}

// Package describes a package to synthesize.
type Package struct {
	Objects           *soi.ObjectIndex
	StreamingTextures []*toc.StreamingTexture
	Sections          []Section
	PageSize          int
	StreamingMode     toc.StreamingMode
}

// Files holds the encoded package.
type Files struct {
	Layout *toc.Layout
	TOC    []byte
	SOI    []byte
	STR    []byte
}

// Build encodes the package. Each page group is padded with zeros to a whole
// number of pages; every uncached page is stored before every cached page.
func (p *Package) Build() (*Files, error) {
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	objects := p.Objects
	if objects == nil {
		objects = &soi.ObjectIndex{}
	}

	soiData, blocks, err := objects.Encode()
	if err != nil {
		return nil, err
	}

	l := &toc.Layout{
		Header: toc.Header{
			Version:       toc.Version,
			StreamingMode: p.StreamingMode,
		},
		UncachedPageSizes: []int32{},
		CachedPageSizes:   []int32{},
		StreamingTextures: p.StreamingTextures,
	}
	l.SetBlocks(blocks)

	var uncached, cached []byte
	for i, s := range p.Sections {
		rec := toc.SectionRecord{
			UncachedFirstPage: int32(len(l.UncachedPageSizes)),
			CachedFirstPage:   int32(len(l.CachedPageSizes)),
		}
		var n int
		uncached, l.UncachedPageSizes, n = appendGroup(uncached, l.UncachedPageSizes, s.Uncached, pageSize)
		rec.UncachedPageCount = int32(n)
		cached, l.CachedPageSizes, n = appendGroup(cached, l.CachedPageSizes, s.Cached, pageSize)
		rec.CachedPageCount = int32(n)
		l.Sections = append(l.Sections, toc.Section{ID: uint32(i), SectionRecord: rec})
	}

	tocData, err := l.MarshalBinary()
	if err != nil {
		return nil, err
	}
	// Decode again so the layout carries its page offsets.
	l, err = toc.Read(bytes.NewReader(tocData))
	if err != nil {
		return nil, err
	}
	return &Files{
		Layout: l,
		TOC:    tocData,
		SOI:    soiData,
		STR:    append(uncached, cached...),
	}, nil
}

func appendGroup(dst []byte, sizes []int32, comps []str.Component, pageSize int) ([]byte, []int32, int) {
	var group []byte
	for _, c := range comps {
		group = str.AppendComponent(group, c)
	}
	if len(group) == 0 {
		return dst, sizes, 0
	}
	for len(group)%pageSize != 0 {
		group = append(group, 0)
	}
	pages := len(group) / pageSize
	for i := 0; i < pages; i++ {
		sizes = append(sizes, int32(pageSize))
	}
	return append(dst, group...), sizes, pages
}

// Paths locates the three files of a package written to disk.
type Paths struct {
	TOC string
	SOI string
	STR string
}

// WriteFiles writes name.toc, name.soi and name.str into dir.
func (f *Files) WriteFiles(dir, name string) (Paths, error) {
	base := filepath.Join(dir, name)
	paths := Paths{TOC: base + ".toc", SOI: base + ".soi", STR: base + ".str"}
	for path, data := range map[string][]byte{paths.TOC: f.TOC, paths.SOI: f.SOI, paths.STR: f.STR} {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, err
		}
	}
	return paths, nil
}
