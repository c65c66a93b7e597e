package extract_test

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goopsie/soiTools/internal/fixture"
	"github.com/goopsie/soiTools/pkg/archive"
	"github.com/goopsie/soiTools/pkg/cook"
	"github.com/goopsie/soiTools/pkg/dds"
	"github.com/goopsie/soiTools/pkg/extract"
	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/model"
	"github.com/goopsie/soiTools/pkg/soi"
	"github.com/goopsie/soiTools/pkg/str"
	"github.com/goopsie/soiTools/pkg/texture"
	"github.com/goopsie/soiTools/pkg/toc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func info(name string, section, component int32) soi.ModelInfo {
	m := soi.ModelInfo{SectionID: section, ComponentID: component, Zone: soi.NoZone}
	m.SetName(name)
	return m
}

// meshHeader describes one F32 position-only mesh: 36 vertex bytes, then a
// 6-byte face chunk at offset 64.
func meshHeader() *model.Header {
	return &model.Header{LODs: []model.LOD{{Meshes: []model.Mesh{{
		VertexType:    0x1,
		VertexData:    model.CompF32,
		VertexCount:   3,
		FaceChunkSize: 6,
	}}}}}
}

func cmprPayload() []byte {
	size := texture.FormatCMPR.MipSize(64, 64) + texture.FormatCMPR.MipSize(32, 32) + texture.FormatCMPR.MipSize(16, 16)
	return bytes.Repeat([]byte{0x5A}, size)
}

type testPackage struct {
	index  *cook.Index
	stream *str.Reader
}

func buildPackage(t *testing.T, sections []fixture.Section) testPackage {
	t.Helper()
	lamp := info("lamp", 0, 10)
	lamp.IsAnimated = 1
	p := &fixture.Package{
		PageSize: 256,
		Objects: &soi.ObjectIndex{
			MotionPacks: []*soi.MotionPack{{Info: info("idle", 0, 1), Header: []byte("MOT")}},
			RenderableModels: []*soi.RenderableModel{
				{Info: lamp, Parameters: []soi.Parameter{soi.NewParameter("light", "on")}, Header: meshHeader()},
				{Info: info("broken", 0, 11), Header: meshHeader()},
			},
			CollisionModels: []*soi.CollisionModel{{Info: info("lamp_col", 0, 12), Header: []byte("COL")}},
			StaticTextures: []*soi.StaticTexture{
				{Info: info(`tex\sky`, 0, 20), File: []byte("GCT-sky")},
				{Info: info(`tex\moon`, 0, 21), File: []byte("GCT-moon")},
			},
		},
		StreamingTextures: []*toc.StreamingTexture{{
			Info: info("ground", 0, 30),
			Header: &texture.Header{
				Version:  texture.VersionStatic,
				Format:   texture.FormatCMPRMipmap,
				MipCount: 3,
				Width:    64,
				Height:   64,
			},
		}},
		Sections: sections,
	}
	files, err := p.Build()
	require.NoError(t, err)

	index, err := cook.New(files.Layout, p.Objects)
	require.NoError(t, err)
	return testPackage{
		index:  index,
		stream: str.NewReader(bytes.NewReader(files.STR), int64(len(files.STR)), files.Layout),
	}
}

func fullSection() fixture.Section {
	return fixture.Section{
		Uncached: []str.Component{
			{Kind: str.KindMotionPack, ID: 1, Path: `anim\idle`, Data: []byte("-data")},
			{Kind: str.KindRenderableModel, ID: 10, Path: `models\lamp`, Data: bytes.Repeat([]byte{1}, 70)},
			{Kind: str.KindRenderableModel, ID: 11, Path: `models\broken`, Data: bytes.Repeat([]byte{1}, 50)},
			{Kind: str.KindCollisionModel, ID: 12, Path: `models\lamp`, Data: []byte("-mesh")},
			{Kind: str.KindUserData, ID: 40, Path: `data\script`, Data: []byte("user")},
		},
		Cached: []str.Component{
			{Kind: str.KindTexture, ID: 30, Path: `tex\ground`, Data: cmprPayload()},
			{Kind: str.KindTexture, ID: 20, Path: `tex\sky`, Data: nil},
			{Kind: str.KindCollisionGrid, ID: 41, Data: []byte{7, 7}},
		},
	}
}

func TestRun(t *testing.T) {
	pkg := buildPackage(t, []fixture.Section{fullSection()})
	out := t.TempDir()
	reg := prometheus.NewRegistry()
	metrics := extract.NewMetrics(reg)
	var logged bytes.Buffer

	e := extract.New(pkg.index, pkg.stream, out,
		extract.WithPackageName("CR_03"),
		extract.WithConverter(dds.CMPRConverter{}, ".dds"),
		extract.WithMetrics(metrics),
		extract.WithLogger(slog.New(slog.NewTextHandler(&logged, nil))),
	)
	m, err := e.Run()
	require.NoError(t, err)

	read := func(rel string) []byte {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, []byte("MOT-data"), read("anim/idle.got"))
	assert.Equal(t, []byte("COL-mesh"), read("models/lamp.gol"))
	assert.Equal(t, []byte("user"), read("data/script.bin"))
	assert.Equal(t, []byte{7, 7}, read("collision_grid/41.bin"))
	assert.Equal(t, []byte("GCT-sky"), read("tex/sky.gct"))
	assert.Equal(t, []byte("GCT-moon"), read("tex/moon.gct"))

	a, err := model.ReadArchive(bytes.NewReader(read("models/lamp.gcg")))
	require.NoError(t, err)
	require.Len(t, a.Meshes, 1)
	assert.Len(t, a.Meshes[0].Vertices, 36)
	assert.Len(t, a.Meshes[0].Faces, 6)

	h, surfaces, err := texture.ReadArchive(bytes.NewReader(read("tex/ground.gct")))
	require.NoError(t, err)
	assert.Equal(t, texture.VersionStreamed, h.Version)
	require.Len(t, surfaces, 3)
	assert.Equal(t, uint32(16), surfaces[0].Width)

	img := read("tex/ground.dds")
	assert.Equal(t, "DDS ", string(img[:4]))

	_, err = os.Stat(filepath.Join(out, "models", "broken.gcg"))
	assert.True(t, os.IsNotExist(err), "malformed model must not leave a file")
	lines := strings.Split(strings.TrimSpace(logged.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `msg="skip component"`)
	assert.Contains(t, lines[0], "kind=renderable_model")

	assert.Equal(t, "CR_03", m.Package)
	assert.Equal(t, 9, m.FileCount())
	assert.Equal(t, 4, m.CountByKind()["texture"])
	assert.Equal(t, []string{"collision_grid", "collision_model", "motion_pack", "renderable_model", "texture", "user_data"}, m.Kinds())

	onDisk, err := extract.ReadManifest(filepath.Join(out, extract.ManifestName))
	require.NoError(t, err)
	assert.Equal(t, m, onDisk)

	expected := fmt.Sprintf(`
# HELP soitools_bytes_written_total Bytes written to output files.
# TYPE soitools_bytes_written_total counter
soitools_bytes_written_total %d
# HELP soitools_components_total Components extracted, by kind.
# TYPE soitools_components_total counter
soitools_components_total{kind="collision_grid"} 1
soitools_components_total{kind="collision_model"} 1
soitools_components_total{kind="motion_pack"} 1
soitools_components_total{kind="renderable_model"} 1
soitools_components_total{kind="texture"} 4
soitools_components_total{kind="user_data"} 1
# HELP soitools_failures_total Components skipped because their data was malformed, by kind.
# TYPE soitools_failures_total counter
soitools_failures_total{kind="renderable_model"} 1
`, m.TotalSize())
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"soitools_bytes_written_total", "soitools_components_total", "soitools_failures_total"))
	n, err := testutil.GatherAndCount(reg, "soitools_section_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunOptions(t *testing.T) {
	t.Run("KindFilterAndSectionDirs", func(t *testing.T) {
		pkg := buildPackage(t, []fixture.Section{fullSection()})
		out := t.TempDir()
		m, err := extract.New(pkg.index, pkg.stream, out,
			extract.WithKindFilter([]str.Kind{str.KindMotionPack, str.KindUserData}),
			extract.WithSectionDirs(true),
		).Run()
		require.NoError(t, err)

		assert.Equal(t, []string{"motion_pack", "user_data"}, m.Kinds())
		assert.FileExists(t, filepath.Join(out, "section_000", "anim", "idle.got"))
		assert.NoFileExists(t, filepath.Join(out, "section_000", "tex", "moon.gct"))
	})

	t.Run("Compression", func(t *testing.T) {
		pkg := buildPackage(t, []fixture.Section{fullSection()})
		out := t.TempDir()
		m, err := extract.New(pkg.index, pkg.stream, out,
			extract.WithKindFilter([]str.Kind{str.KindMotionPack}),
			extract.WithCompression(true, 0),
		).Run()
		require.NoError(t, err)

		require.Len(t, m.Entries, 1)
		entry := m.Entries[0]
		assert.True(t, entry.Compressed)
		assert.Equal(t, "anim/idle.got"+archive.Extension, entry.Path)

		h, data, err := archive.ReadFile(filepath.Join(out, filepath.FromSlash(entry.Path)))
		require.NoError(t, err)
		assert.Equal(t, uint16(str.KindMotionPack), h.Kind)
		assert.Equal(t, []byte("MOT-data"), data)
	})

	t.Run("PNG", func(t *testing.T) {
		pkg := buildPackage(t, []fixture.Section{fullSection()})
		out := t.TempDir()
		_, err := extract.New(pkg.index, pkg.stream, out,
			extract.WithKindFilter([]str.Kind{str.KindTexture}),
			extract.WithConverter(dds.PNGConverter{}, ".png"),
		).Run()
		require.NoError(t, err)

		f, err := os.Open(filepath.Join(out, "tex", "ground.png"))
		require.NoError(t, err)
		defer f.Close()
		cfg, err := png.DecodeConfig(f)
		require.NoError(t, err)
		assert.Equal(t, 64, cfg.Width)
		assert.Equal(t, 64, cfg.Height)
		assert.NoFileExists(t, filepath.Join(out, "tex", "ground.dds"))
	})

	t.Run("RepeatedPlacement", func(t *testing.T) {
		pkg := buildPackage(t, []fixture.Section{{
			Uncached: []str.Component{{Kind: str.KindUserData, ID: 40, InstanceID: 2, Path: "data/script", Data: []byte("x")}},
		}})
		out := t.TempDir()
		_, err := extract.New(pkg.index, pkg.stream, out, extract.WithKindFilter([]str.Kind{str.KindUserData})).Run()
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(out, "data", "script_2.bin"))
	})
}

func TestRunPathOutsideOutput(t *testing.T) {
	pkg := buildPackage(t, []fixture.Section{{
		Uncached: []str.Component{
			{Kind: str.KindUserData, ID: 40, Path: `..\..\escaped`, Data: []byte("x")},
			{Kind: str.KindUserData, ID: 41, Path: `data\..\kept`, Data: []byte("y")},
		},
	}})
	root := t.TempDir()
	out := filepath.Join(root, "a", "b")
	reg := prometheus.NewRegistry()

	m, err := extract.New(pkg.index, pkg.stream, out,
		extract.WithKindFilter([]str.Kind{str.KindUserData}),
		extract.WithMetrics(extract.NewMetrics(reg)),
	).Run()
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(root, "escaped.bin"))
	assert.FileExists(t, filepath.Join(out, "kept.bin"))
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "kept.bin", m.Entries[0].Path)

	expected := `
# HELP soitools_failures_total Components skipped because their data was malformed, by kind.
# TYPE soitools_failures_total counter
soitools_failures_total{kind="user_data"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "soitools_failures_total"))
}

func TestRunLookupMiss(t *testing.T) {
	pkg := buildPackage(t, []fixture.Section{{
		Cached: []str.Component{{Kind: str.KindTexture, ID: 99, Path: "tex/missing", Data: []byte{0}}},
	}})
	_, err := extract.New(pkg.index, pkg.stream, t.TempDir()).Run()
	assert.ErrorIs(t, err, format.ErrLookupMiss)
}

func TestDumpScene(t *testing.T) {
	pkg := buildPackage(t, []fixture.Section{{
		Uncached: []str.Component{
			{Kind: str.KindRenderableModel, ID: 10},
			{Kind: str.KindRenderableModel, ID: 11},
			{Kind: str.KindUserData, ID: 40},
			{Kind: str.KindCollisionModel, ID: 12},
		},
	}})

	var buf bytes.Buffer
	require.NoError(t, extract.DumpScene(&buf, pkg.index, pkg.stream))

	want := strings.Join([]string{
		"[AnimatedModel1]",
		"SLT=lamp",
		"Position=0,0,0,0",
		"LookVector=0,0,0,0",
		"UpVector=0,0,0,0",
		"light=on",
		"",
		"[Model1]",
		"SLT=broken",
		"Position=0,0,0,0",
		"LookVector=0,0,0,0",
		"UpVector=0,0,0,0",
		"",
		"[Object1]",
		"SLT=lamp_col",
		"Position=0,0,0,0",
		"LookVector=0,0,0,0",
		"UpVector=0,0,0,0",
		"",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}
