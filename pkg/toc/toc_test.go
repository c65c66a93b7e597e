package toc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/soi"
	"github.com/goopsie/soiTools/pkg/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() *Layout {
	info := soi.ModelInfo{SectionID: 1, ComponentID: 7, Zone: soi.NoZone}
	info.SetName("rock_diffuse")
	return &Layout{
		Header: Header{
			Version:       Version,
			StreamingMode: StreamingTwoD,
		},
		UncachedPageSizes: []int32{100, 80, 64},
		CachedPageSizes:   []int32{32, 16},
		Sections: []Section{
			{ID: 0, SectionRecord: SectionRecord{UncachedFirstPage: 0, UncachedPageCount: 2, CachedFirstPage: 0, CachedPageCount: 1}},
			{ID: 1, SectionRecord: SectionRecord{UncachedFirstPage: 2, UncachedPageCount: 1, CachedFirstPage: 1, CachedPageCount: 1}},
		},
		StreamingTextures: []*StreamingTexture{{
			Info: info,
			Header: &texture.Header{
				Version:  texture.VersionStatic,
				Format:   texture.FormatCMPRMipmap,
				MipCount: 3,
				Width:    64,
				Height:   64,
			},
		}},
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	data, err := testLayout().MarshalBinary()
	require.NoError(t, err)

	l, err := Read(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, int32(2), l.Header.Sections)
	assert.Equal(t, StreamingTwoD, l.Header.StreamingMode)
	assert.Equal(t, []int32{100, 80, 64}, l.UncachedPageSizes)
	require.Len(t, l.StreamingTextures, 1)
	st := l.StreamingTextures[0]
	assert.Equal(t, "rock_diffuse", st.Info.DisplayName())
	assert.Equal(t, int32(7), st.Info.ComponentID)
	assert.Equal(t, uint32(64), st.Header.Width)
	assert.Equal(t, int64(292), l.StreamSize())
}

func TestOnDiskOrder(t *testing.T) {
	l := testLayout()
	data, err := l.MarshalBinary()
	require.NoError(t, err)

	// Streaming textures start right after the five page sizes.
	var info soi.ModelInfo
	require.NoError(t, format.NewReader(bytes.NewReader(data[HeaderSize+5*4:])).Read(&info))
	assert.Equal(t, "rock_diffuse", info.DisplayName())

	// The section table closes the file.
	recordSize := binary.Size(SectionRecord{})
	records := make([]SectionRecord, 2)
	require.NoError(t, format.NewReader(bytes.NewReader(data[len(data)-2*recordSize:])).Read(records))
	assert.Equal(t, l.Sections[1].SectionRecord, records[1])
}

func TestPages(t *testing.T) {
	data, err := testLayout().MarshalBinary()
	require.NoError(t, err)
	l, err := Read(bytes.NewReader(data))
	require.NoError(t, err)

	t.Run("FirstSection", func(t *testing.T) {
		uncached, cached := l.Pages(l.Sections[0])
		assert.Equal(t, []Page{
			{Index: 0, Offset: 0, Size: 100},
			{Index: 1, Offset: 100, Size: 80},
		}, uncached)
		// Cached pages start after every uncached page.
		assert.Equal(t, []Page{{Index: 0, Cached: true, Offset: 244, Size: 32}}, cached)
	})

	t.Run("SecondSection", func(t *testing.T) {
		uncached, cached := l.Pages(l.Sections[1])
		assert.Equal(t, []Page{{Index: 2, Offset: 180, Size: 64}}, uncached)
		assert.Equal(t, []Page{{Index: 1, Cached: true, Offset: 276, Size: 16}}, cached)
	})
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(l *Layout)
	}{
		{"WrongVersion", func(l *Layout) { l.Header.Version = 4 }},
		{"BadStreamingMode", func(l *Layout) { l.Header.StreamingMode = 9 }},
		{"NegativeCount", func(l *Layout) { l.Header.MotionPacks = -1 }},
		{"UnorderedOffsets", func(l *Layout) {
			l.Header.MotionPacksOffset = 400
			l.Header.RenderableModelsOffset = 200
		}},
		{"NegativePageSize", func(l *Layout) { l.CachedPageSizes[1] = -16 }},
		{"PageRangeOutsideTable", func(l *Layout) { l.Sections[1].UncachedPageCount = 5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testLayout()
			tt.modify(l)
			data, err := l.MarshalBinary()
			require.NoError(t, err)

			_, err = Read(bytes.NewReader(data))
			assert.ErrorIs(t, err, format.ErrFormat)
		})
	}

	t.Run("Truncated", func(t *testing.T) {
		data, err := testLayout().MarshalBinary()
		require.NoError(t, err)
		_, err = Read(bytes.NewReader(data[:HeaderSize+8]))
		assert.ErrorIs(t, err, format.ErrFormat)
	})
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile("does/not/exist.toc")
	assert.ErrorIs(t, err, format.ErrIO)
}

func TestBlocks(t *testing.T) {
	l := testLayout()
	b := soi.Blocks{
		MotionPacks:      soi.Block{Offset: 0, Count: 2},
		RenderableModels: soi.Block{Offset: 700, Count: 1},
		StaticTextures:   soi.Block{Offset: 1200, Count: 3},
	}
	l.SetBlocks(b)
	assert.Equal(t, b, l.Blocks())
	assert.NoError(t, l.Header.Validate())
}
