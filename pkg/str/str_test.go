package str_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goopsie/soiTools/internal/fixture"
	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/str"
	"github.com/goopsie/soiTools/pkg/toc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func component(kind str.Kind, id uint32, path string, size int) str.Component {
	return str.Component{
		Kind: kind,
		ID:   id,
		Path: path,
		Data: bytes.Repeat([]byte{byte(id)}, size),
	}
}

func testPackage(t *testing.T) *fixture.Files {
	t.Helper()
	p := &fixture.Package{
		PageSize: 32,
		Sections: []fixture.Section{
			{
				// The second component straddles a page boundary.
				Uncached: []str.Component{
					component(str.KindUserData, 1, `data\a.bin`, 4),
					component(str.KindRenderableModel, 2, `models\tree`, 40),
				},
				Cached: []str.Component{
					component(str.KindTexture, 3, "", 8),
				},
			},
			{
				Uncached: []str.Component{
					component(str.KindMotionPack, 4, "walk", 2),
				},
			},
		},
	}
	files, err := p.Build()
	require.NoError(t, err)
	return files
}

func TestReadSectionData(t *testing.T) {
	files := testPackage(t)
	r := str.NewReader(bytes.NewReader(files.STR), int64(len(files.STR)), files.Layout)
	defer r.Close()

	data, err := r.ReadSectionData(files.Layout.Sections[0])
	require.NoError(t, err)

	require.Len(t, data.Uncached, 2)
	assert.Equal(t, str.KindUserData, data.Uncached[0].Kind)
	assert.Equal(t, `data\a.bin`, data.Uncached[0].Path)
	assert.Equal(t, component(str.KindRenderableModel, 2, `models\tree`, 40), data.Uncached[1])

	require.Len(t, data.Cached, 1)
	assert.Equal(t, uint32(3), data.Cached[0].ID)
	assert.Empty(t, data.Cached[0].Path)

	all := data.All()
	require.Len(t, all, 3)
	assert.Equal(t, str.KindTexture, all[2].Kind)

	data, err = r.ReadSectionData(files.Layout.Sections[1])
	require.NoError(t, err)
	assert.Len(t, data.Uncached, 1)
	assert.Empty(t, data.Cached)
}

func TestReadSectionDataTruncated(t *testing.T) {
	l := &toc.Layout{
		Header:            toc.Header{Version: toc.Version},
		UncachedPageSizes: []int32{100},
		CachedPageSizes:   []int32{},
		Sections:          []toc.Section{{SectionRecord: toc.SectionRecord{UncachedPageCount: 1}}},
	}
	encoded, err := l.MarshalBinary()
	require.NoError(t, err)
	l, err = toc.Read(bytes.NewReader(encoded))
	require.NoError(t, err)

	stream := make([]byte, 80)
	r := str.NewReader(bytes.NewReader(stream), int64(len(stream)), l)
	_, err = r.ReadSectionData(l.Sections[0])
	assert.ErrorIs(t, err, format.ErrFormat)
}

func TestReadSectionDataOversizedPages(t *testing.T) {
	sizes := make([]int32, 16)
	for i := range sizes {
		sizes[i] = 0x7FFFFFFF
	}
	l := &toc.Layout{
		Header:            toc.Header{Version: toc.Version},
		UncachedPageSizes: sizes,
		CachedPageSizes:   []int32{},
		Sections:          []toc.Section{{SectionRecord: toc.SectionRecord{UncachedPageCount: 16}}},
	}
	encoded, err := l.MarshalBinary()
	require.NoError(t, err)
	l, err = toc.Read(bytes.NewReader(encoded))
	require.NoError(t, err)

	stream := make([]byte, 80)
	r := str.NewReader(bytes.NewReader(stream), int64(len(stream)), l)
	_, err = r.ReadSectionData(l.Sections[0])
	assert.ErrorIs(t, err, format.ErrFormat)
}

func TestParseComponents(t *testing.T) {
	t.Run("Padding", func(t *testing.T) {
		data := str.AppendComponent(nil, component(str.KindCollisionGrid, 9, "grid", 3))
		data = append(data, make([]byte, 13)...)
		comps, err := str.ParseComponents(data)
		require.NoError(t, err)
		require.Len(t, comps, 1)
		assert.Equal(t, []byte{9, 9, 9}, comps[0].Data)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		data := str.AppendComponent(nil, component(42, 1, "", 0))
		_, err := str.ParseComponents(data)
		assert.ErrorIs(t, err, format.ErrFormat)
	})

	t.Run("Overrun", func(t *testing.T) {
		data := str.AppendComponent(nil, component(str.KindUserData, 1, "x", 10))
		_, err := str.ParseComponents(data[:len(data)-1])
		assert.ErrorIs(t, err, format.ErrFormat)
	})

	t.Run("TruncatedHeader", func(t *testing.T) {
		_, err := str.ParseComponents([]byte{0, 4, 0, 0})
		assert.ErrorIs(t, err, format.ErrFormat)
	})

	t.Run("DataIsolated", func(t *testing.T) {
		data := str.AppendComponent(nil, component(str.KindUserData, 1, "", 2))
		data = str.AppendComponent(data, component(str.KindUserData, 2, "", 2))
		comps, err := str.ParseComponents(data)
		require.NoError(t, err)
		before := bytes.Clone(data)
		_ = append(comps[0].Data, 0xFF)
		assert.Equal(t, before, data)
	})
}

func TestOpen(t *testing.T) {
	files := testPackage(t)
	path := filepath.Join(t.TempDir(), "pkg.str")
	require.NoError(t, os.WriteFile(path, files.STR, 0644))

	r, err := str.Open(path, files.Layout)
	require.NoError(t, err)
	assert.Equal(t, int64(len(files.STR)), r.Size())

	data, err := r.ReadSectionData(files.Layout.Sections[1])
	require.NoError(t, err)
	assert.Equal(t, "walk", data.Uncached[0].Path)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = str.Open(filepath.Join(t.TempDir(), "missing.str"), files.Layout)
	assert.ErrorIs(t, err, format.ErrIO)
}

func TestParseKind(t *testing.T) {
	for _, k := range str.Kinds {
		assert.True(t, k.Valid(), k.String())
		got, err := str.ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := str.ParseKind("sound")
	assert.Error(t, err)
	assert.False(t, str.Kind(0).Valid())
	assert.False(t, str.Kind(42).Valid())
}
