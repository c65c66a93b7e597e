// Package extract writes the components of a cooked package to disk.
//
// Each streamed component is matched against its metadata record and turned
// into a standalone file: archived models (.gcg), archived textures (.gct and
// optionally a converted image), motion packs (.got), collision models (.gol) and raw
// user data or collision grids (.bin). Static textures embedded in the object
// index are written afterwards. Every file is listed in a YAML manifest.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goopsie/soiTools/pkg/archive"
	"github.com/goopsie/soiTools/pkg/cook"
	"github.com/goopsie/soiTools/pkg/dds"
	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/model"
	"github.com/goopsie/soiTools/pkg/soi"
	"github.com/goopsie/soiTools/pkg/str"
	"github.com/goopsie/soiTools/pkg/texture"
	"github.com/goopsie/soiTools/pkg/toc"
)

// File extensions by component kind.
var extensions = map[str.Kind]string{
	str.KindRenderableModel: ".gcg",
	str.KindCollisionModel:  ".gol",
	str.KindTexture:         ".gct",
	str.KindUserData:        ".bin",
	str.KindMotionPack:      ".got",
	str.KindCollisionGrid:   ".bin",
}

// SectionReader yields the components of a section.
type SectionReader interface {
	ReadSectionData(s toc.Section) (*str.SectionData, error)
}

// Extractor writes the components of one package.
type Extractor struct {
	index       *cook.Index
	stream      SectionReader
	outputDir   string
	cfg         extractConfig
	createdDirs map[string]struct{}
	written     map[*soi.StaticTexture]bool
	manifest    *Manifest
}

// New returns an Extractor writing into outputDir.
func New(index *cook.Index, stream SectionReader, outputDir string, opts ...Option) *Extractor {
	cfg := extractConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  archive.DefaultCompressionLevel,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewMetrics(nil)
	}
	return &Extractor{
		index:       index,
		stream:      stream,
		outputDir:   outputDir,
		cfg:         cfg,
		createdDirs: make(map[string]struct{}),
		written:     make(map[*soi.StaticTexture]bool),
		manifest:    &Manifest{Package: cfg.name},
	}
}

// Run extracts every section, uncached components first, then every static
// texture, and finally writes the manifest. Malformed assets are logged,
// counted and skipped; lookup misses and i/o failures abort the run.
func (e *Extractor) Run() (*Manifest, error) {
	for _, section := range e.index.Sections() {
		start := time.Now()
		data, err := e.stream.ReadSectionData(section)
		if err != nil {
			return e.manifest, err
		}
		for _, c := range data.All() {
			if err := e.ExtractComponent(section.ID, c); err != nil {
				return e.manifest, err
			}
		}
		e.cfg.metrics.sectionDuration.Observe(time.Since(start).Seconds())
	}

	if e.cfg.allows(str.KindTexture) {
		for _, st := range e.index.StaticTextures() {
			if e.written[st] {
				continue
			}
			if err := e.writeStatic(st); err != nil {
				if !errors.Is(err, format.ErrFormat) {
					return e.manifest, err
				}
				e.cfg.metrics.failures.WithLabelValues(str.KindTexture.String()).Inc()
				e.cfg.logger.Warn("skip static texture", "name", st.Info.DisplayName(), "err", err)
			}
		}
	}

	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return e.manifest, format.IOError("create output dir", err)
	}
	if err := WriteManifest(filepath.Join(e.outputDir, ManifestName), e.manifest); err != nil {
		return e.manifest, err
	}
	return e.manifest, nil
}

// Manifest returns the entries written so far.
func (e *Extractor) Manifest() *Manifest {
	return e.manifest
}

// ExtractComponent writes one component of the given section.
func (e *Extractor) ExtractComponent(section uint32, c str.Component) error {
	if !e.cfg.allows(c.Kind) {
		return nil
	}

	var err error
	switch c.Kind {
	case str.KindMotionPack:
		err = e.writeMotionPack(section, c)
	case str.KindRenderableModel:
		err = e.writeModel(section, c)
	case str.KindCollisionModel:
		err = e.writeCollisionModel(section, c)
	case str.KindTexture:
		err = e.writeTexture(section, c)
	default:
		err = e.emit(section, c, "", SourceStreamed, c.Data)
	}

	if errors.Is(err, format.ErrFormat) {
		e.cfg.metrics.failures.WithLabelValues(c.Kind.String()).Inc()
		e.cfg.logger.Warn("skip component",
			"kind", c.Kind, "path", c.Path, "section", section, "id", c.ID, "instance", c.InstanceID, "err", err)
		return nil
	}
	return err
}

func miss(kind str.Kind, section uint32, c str.Component) error {
	return fmt.Errorf("%w: %s %q (section %d, id %d, instance %d)",
		format.ErrLookupMiss, kind, c.Path, section, c.ID, c.InstanceID)
}

func (e *Extractor) writeMotionPack(section uint32, c str.Component) error {
	mp, ok := e.index.FindMotionPack(section, c.ID, c.InstanceID)
	if !ok {
		return miss(c.Kind, section, c)
	}
	out := make([]byte, 0, len(mp.Header)+len(c.Data))
	out = append(append(out, mp.Header...), c.Data...)
	return e.emit(section, c, mp.Info.DisplayName(), SourceStreamed, out)
}

func (e *Extractor) writeModel(section uint32, c str.Component) error {
	m, ok := e.index.FindModel(section, c.ID, c.InstanceID)
	if !ok {
		return miss(c.Kind, section, c)
	}
	var buf bytes.Buffer
	if err := model.Encode(&buf, m.Header, c.Data); err != nil {
		return err
	}
	return e.emit(section, c, m.Info.DisplayName(), SourceStreamed, buf.Bytes())
}

func (e *Extractor) writeCollisionModel(section uint32, c str.Component) error {
	m, ok := e.index.FindCollisionModel(section, c.ID, c.InstanceID)
	if !ok {
		return miss(c.Kind, section, c)
	}
	out := make([]byte, 0, len(m.Header)+len(c.Data))
	out = append(append(out, m.Header...), c.Data...)
	return e.emit(section, c, m.Info.DisplayName(), SourceStreamed, out)
}

func (e *Extractor) writeTexture(section uint32, c str.Component) error {
	ref, err := e.index.FindTexture(section, c.ID, c.InstanceID)
	if err != nil {
		if errors.Is(err, format.ErrLookupMiss) {
			return miss(c.Kind, section, c)
		}
		return err
	}

	if ref.Static != nil {
		e.written[ref.Static] = true
		return e.emit(section, c, ref.Static.Info.DisplayName(), SourceStatic, ref.Static.File)
	}

	st := ref.Streaming
	var buf bytes.Buffer
	if err := texture.WriteArchive(&buf, st.Header, c.Data); err != nil {
		return err
	}
	if err := e.emit(section, c, st.Info.DisplayName(), SourceStreamed, buf.Bytes()); err != nil {
		return err
	}

	if e.cfg.converter == nil {
		return nil
	}
	var img bytes.Buffer
	if err := e.cfg.converter.Convert(st.Header.Description(), c.Data, &img); err != nil {
		if errors.Is(err, dds.ErrUnsupportedFormat) {
			e.cfg.logger.Info("no image conversion", "kind", c.Kind, "path", c.Path, "format", st.Header.Format)
			return nil
		}
		return err
	}
	rel, err := e.relPath(section, c.Path, c.Kind, c.ID, c.InstanceID)
	if err != nil {
		return err
	}
	return e.write(rel+e.cfg.imageExt, entryFor(section, c, st.Info.DisplayName(), SourceStreamed), img.Bytes())
}

func (e *Extractor) writeStatic(st *soi.StaticTexture) error {
	e.written[st] = true
	section := uint32(st.Info.SectionID)
	c := str.Component{Kind: str.KindTexture, ID: uint32(st.Info.ComponentID), Path: st.Info.DisplayName()}
	return e.emit(section, c, c.Path, SourceStatic, st.File)
}

func entryFor(section uint32, c str.Component, name string, src Source) Entry {
	return Entry{
		Section:  section,
		Kind:     c.Kind.String(),
		ID:       c.ID,
		Instance: c.InstanceID,
		Name:     name,
		Source:   src,
	}
}

// emit writes data for c under its component path with the kind's extension.
func (e *Extractor) emit(section uint32, c str.Component, name string, src Source, data []byte) error {
	rel, err := e.relPath(section, c.Path, c.Kind, c.ID, c.InstanceID)
	if err != nil {
		return err
	}
	return e.write(rel+extensions[c.Kind], entryFor(section, c, name, src), data)
}

// relPath derives the output path of a component, without extension.
// Repeated placements of one component get an _<instance> suffix. Paths that
// would leave the output directory are rejected.
func (e *Extractor) relPath(section uint32, path string, kind str.Kind, id, instance uint32) (string, error) {
	rel := format.CleanPath(path)
	if rel != "" && !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", format.Errorf("component path %q escapes the output directory", path)
	}
	if rel == "" {
		rel = filepath.Join(kind.String(), strconv.FormatUint(uint64(id), 10))
	}
	if instance > 0 {
		rel += "_" + strconv.FormatUint(uint64(instance), 10)
	}
	if e.cfg.sectionDirs {
		rel = filepath.Join(fmt.Sprintf("section_%03d", section), rel)
	}
	return filepath.FromSlash(rel), nil
}

func (e *Extractor) write(rel string, entry Entry, data []byte) error {
	path := filepath.Join(e.outputDir, rel)
	dir := filepath.Dir(path)

	// Only create directory if not already created
	if _, exists := e.createdDirs[dir]; !exists {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return format.IOError("create dir "+dir, err)
		}
		e.createdDirs[dir] = struct{}{}
	}

	var size int64
	if e.cfg.compress {
		path += archive.Extension
		rel += archive.Extension
		kind, _ := str.ParseKind(entry.Kind)
		n, err := archive.WriteFile(path, uint16(kind), data, archive.WithCompressionLevel(e.cfg.level))
		if err != nil {
			return err
		}
		size = n
		entry.Compressed = true
	} else {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return format.IOError("write file "+path, err)
		}
		size = int64(len(data))
	}

	entry.Path = filepath.ToSlash(rel)
	entry.Size = size
	e.manifest.Entries = append(e.manifest.Entries, entry)
	e.cfg.metrics.components.WithLabelValues(entry.Kind).Inc()
	e.cfg.metrics.bytesWritten.Add(float64(size))
	return nil
}

// extractConfig holds extraction options.
type extractConfig struct {
	name         string
	sectionDirs  bool
	allowedKinds map[str.Kind]bool
	converter    dds.Converter
	imageExt     string
	compress     bool
	level        int
	logger       *slog.Logger
	metrics      *Metrics
}

func (c *extractConfig) allows(k str.Kind) bool {
	return len(c.allowedKinds) == 0 || c.allowedKinds[k]
}

// Option configures extraction behavior.
type Option func(*extractConfig)

// WithPackageName records the package name in the manifest.
func WithPackageName(name string) Option {
	return func(c *extractConfig) {
		c.name = name
	}
}

// WithSectionDirs places each section's output in its own directory.
func WithSectionDirs(enabled bool) Option {
	return func(c *extractConfig) {
		c.sectionDirs = enabled
	}
}

// WithKindFilter configures extraction to only include specific component kinds.
func WithKindFilter(kinds []str.Kind) Option {
	return func(c *extractConfig) {
		if len(kinds) > 0 {
			c.allowedKinds = make(map[str.Kind]bool, len(kinds))
			for _, k := range kinds {
				c.allowedKinds[k] = true
			}
		}
	}
}

// WithConverter also writes streamed textures as images produced by conv,
// named with the extension ext.
func WithConverter(conv dds.Converter, ext string) Option {
	return func(c *extractConfig) {
		c.converter = conv
		c.imageExt = ext
	}
}

// WithCompression stores every output as a ZSTD container at the given level.
func WithCompression(enabled bool, level int) Option {
	return func(c *extractConfig) {
		c.compress = enabled
		if level != 0 {
			c.level = level
		}
	}
}

// WithLogger sets the logger for skip and conversion messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *extractConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records extraction counters in m.
func WithMetrics(m *Metrics) Option {
	return func(c *extractConfig) {
		c.metrics = m
	}
}
