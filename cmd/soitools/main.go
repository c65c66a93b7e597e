// Package main provides a command-line tool for working with streamed
// TOC/SOI/STR packages.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goopsie/soiTools/internal/config"
	"github.com/goopsie/soiTools/pkg/cook"
	"github.com/goopsie/soiTools/pkg/dds"
	"github.com/goopsie/soiTools/pkg/extract"
	"github.com/goopsie/soiTools/pkg/str"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

type options struct {
	mode           string
	packages       string
	configPath     string
	outputDir      string
	kinds          string
	metricsFile    string
	workers        int
	sectionDirs    bool
	compress       bool
	convert        bool
	imageFormat    string
	forceOverwrite bool
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("soitools", flag.ContinueOnError)
	fs.StringVar(&opts.mode, "mode", "", "Operation mode: extract, dump, info")
	fs.StringVar(&opts.packages, "package", "", "Comma-separated package base paths (e.g., data/CR_03.gcn)")
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (default $"+config.EnvConfig+")")
	fs.StringVar(&opts.outputDir, "output", "", "Output directory")
	fs.StringVar(&opts.kinds, "kinds", "", "Comma-separated component kinds to extract (default all)")
	fs.StringVar(&opts.metricsFile, "metrics", "", "Write Prometheus metrics to this file after extraction")
	fs.IntVar(&opts.workers, "workers", 0, "Packages processed in parallel (default CPU count)")
	fs.BoolVar(&opts.sectionDirs, "section-dirs", false, "Write each section into its own directory")
	fs.BoolVar(&opts.compress, "compress", false, "Store outputs as ZSTD containers")
	fs.BoolVar(&opts.convert, "convert", false, "Also convert streamed textures to images")
	fs.StringVar(&opts.imageFormat, "image-format", "", "Converted image format: dds or png (default dds)")
	fs.BoolVar(&opts.forceOverwrite, "force", false, "Allow non-empty output directory")
	return fs
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	merge(cfg, &opts)

	if err := validate(cfg, &opts); err != nil {
		fs.Usage()
		return err
	}

	switch opts.mode {
	case "extract":
		if err := prepareOutputDir(cfg.GetOutput(), opts.forceOverwrite); err != nil {
			return err
		}
		return runExtract(cfg, stdout)
	case "dump":
		return runDump(cfg, stdout)
	case "info":
		return runInfo(cfg, stdout)
	default:
		return fmt.Errorf("unknown mode: %s", opts.mode)
	}
}

// merge applies command-line flags over the configuration file.
func merge(cfg *config.Config, opts *options) {
	for _, base := range strings.Split(opts.packages, ",") {
		if base = strings.TrimSpace(base); base != "" {
			cfg.Packages = append(cfg.Packages, config.PackageConfig{Base: base})
		}
	}
	if opts.outputDir != "" {
		cfg.Output = opts.outputDir
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.metricsFile != "" {
		cfg.Metrics = opts.metricsFile
	}
	if opts.kinds != "" {
		cfg.Extract.Kinds = strings.Split(opts.kinds, ",")
	}
	cfg.Extract.SectionDirs = cfg.Extract.SectionDirs || opts.sectionDirs
	cfg.Extract.Compress = cfg.Extract.Compress || opts.compress
	cfg.Extract.ConvertTextures = cfg.Extract.ConvertTextures || opts.convert
	if opts.imageFormat != "" {
		cfg.Extract.ImageFormat = opts.imageFormat
	}
}

func validate(cfg *config.Config, opts *options) error {
	if opts.mode == "" {
		return fmt.Errorf("mode is required")
	}
	switch opts.mode {
	case "extract", "dump", "info":
	default:
		return fmt.Errorf("mode must be 'extract', 'dump' or 'info'")
	}
	if len(cfg.Packages) == 0 {
		return fmt.Errorf("at least one package is required (-package or config)")
	}
	if _, err := parseKinds(cfg.Extract.Kinds); err != nil {
		return err
	}
	return cfg.Validate()
}

func parseKinds(names []string) ([]str.Kind, error) {
	kinds := make([]str.Kind, 0, len(names))
	for _, name := range names {
		k, err := str.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func prepareOutputDir(outputDir string, force bool) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if !force {
		empty, err := isDirEmpty(outputDir)
		if err != nil {
			return fmt.Errorf("check output directory: %w", err)
		}
		if !empty {
			return fmt.Errorf("output directory is not empty (use -force to override)")
		}
	}

	return nil
}

func isDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdir(1)
	return err == io.EOF, nil
}

// openPackage cooks a package and maps its streamed data.
func openPackage(p config.PackageConfig) (*cook.Index, *str.Reader, error) {
	tocPath, soiPath, strPath := p.Paths()
	index, err := cook.Cook(tocPath, soiPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cook %s: %w", p.DisplayName(), err)
	}
	stream, err := str.Open(strPath, index.Layout())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", strPath, err)
	}
	return index, stream, nil
}

func runExtract(cfg *config.Config, stdout io.Writer) error {
	kinds, _ := parseKinds(cfg.Extract.Kinds)
	reg := prometheus.NewRegistry()
	metrics := extract.NewMetrics(reg)

	var g errgroup.Group
	g.SetLimit(cfg.GetWorkers())

	results := make([]*extract.Manifest, len(cfg.Packages))
	for i, p := range cfg.Packages {
		g.Go(func() error {
			name := p.DisplayName()
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("package", name)

			index, stream, err := openPackage(p)
			if err != nil {
				return err
			}
			defer stream.Close()

			opts := []extract.Option{
				extract.WithPackageName(name),
				extract.WithSectionDirs(cfg.Extract.SectionDirs),
				extract.WithKindFilter(kinds),
				extract.WithCompression(cfg.Extract.Compress, cfg.Extract.CompressionLevel),
				extract.WithLogger(logger),
				extract.WithMetrics(metrics),
			}
			if cfg.Extract.ConvertTextures {
				conv, ext, err := dds.ForImageFormat(cfg.Extract.ImageFormat)
				if err != nil {
					return err
				}
				opts = append(opts, extract.WithConverter(conv, ext))
			}

			logger.Info("extracting", "sections", len(index.Sections()))
			m, err := extract.New(index, stream, filepath.Join(cfg.GetOutput(), name), opts...).Run()
			if err != nil {
				return fmt.Errorf("extract %s: %w", name, err)
			}
			results[i] = m
			return nil
		})
	}
	err := g.Wait()

	for _, m := range results {
		if m != nil {
			fmt.Fprintf(stdout, "%s: %d files, %d bytes\n", m.Package, m.FileCount(), m.TotalSize())
		}
	}
	if cfg.Metrics != "" {
		if werr := prometheus.WriteToTextfile(cfg.Metrics, reg); werr != nil && err == nil {
			err = fmt.Errorf("write metrics: %w", werr)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Extraction complete. Files written to %s\n", cfg.GetOutput())
	return nil
}

func runDump(cfg *config.Config, stdout io.Writer) error {
	for _, p := range cfg.Packages {
		index, stream, err := openPackage(p)
		if err != nil {
			return err
		}
		err = extract.DumpScene(stdout, index, stream)
		stream.Close()
		if err != nil {
			return fmt.Errorf("dump %s: %w", p.DisplayName(), err)
		}
	}
	return nil
}

func runInfo(cfg *config.Config, stdout io.Writer) error {
	for _, p := range cfg.Packages {
		tocPath, soiPath, _ := p.Paths()
		index, err := cook.Cook(tocPath, soiPath)
		if err != nil {
			return fmt.Errorf("cook %s: %w", p.DisplayName(), err)
		}
		l := index.Layout()
		h := &l.Header
		fmt.Fprintf(stdout, "%s\n", p.DisplayName())
		fmt.Fprintf(stdout, "  version:            %d\n", h.Version)
		fmt.Fprintf(stdout, "  streaming mode:     %s\n", h.StreamingMode)
		fmt.Fprintf(stdout, "  sections:           %d\n", len(index.Sections()))
		fmt.Fprintf(stdout, "  pages:              %d uncached, %d cached (%d bytes)\n",
			len(l.UncachedPageSizes), len(l.CachedPageSizes), l.StreamSize())
		fmt.Fprintf(stdout, "  renderable models:  %d\n", len(index.Models()))
		fmt.Fprintf(stdout, "  collision models:   %d\n", len(index.CollisionModels()))
		fmt.Fprintf(stdout, "  motion packs:       %d\n", h.MotionPacks)
		fmt.Fprintf(stdout, "  streaming textures: %d\n", len(l.StreamingTextures))
		fmt.Fprintf(stdout, "  static textures:    %d\n", len(index.StaticTextures()))
	}
	return nil
}
