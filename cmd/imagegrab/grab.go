package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/settings"
	"github.com/user/imagegrab-service/internal/usecase"
	"github.com/user/imagegrab-service/pkg/config"
	"github.com/user/imagegrab-service/pkg/logger"
	"github.com/user/imagegrab-service/pkg/metrics"
)

type grabFlags struct {
	minSizeKB float64
	minWidth  int
	minHeight int
	sortKey   string
	selection []string
	out       string
	source    string
	list      bool
}

func getCmdGrab(gs *globalState) *cobra.Command {
	flags := &grabFlags{}
	grabCmd := &cobra.Command{
		Use:   "grab <page-url>",
		Short: "Grab the images of a page into a zip archive",
		Long: `Grab the images of a page into a zip archive.

  Thresholds default to the settings file; the --min-* flags override it.
  --select keeps only images whose file name matches one of the globs.`,
		Example: `  imagegrab grab https://example.com --min-width 800 --select '*.jpg' --out photos.zip`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}
			store, err := settings.Load(gs.fs, gs.settingsPath)
			if err != nil {
				return err
			}
			th, details := settings.Parse(store)
			if cmd.Flags().Changed("min-size-kb") {
				th.MinSizeKB = max(flags.minSizeKB, 0)
			}
			if cmd.Flags().Changed("min-width") {
				th.MinWidth = max(flags.minWidth, 0)
			}
			if cmd.Flags().Changed("min-height") {
				th.MinHeight = max(flags.minHeight, 0)
			}
			if flags.source == "" {
				flags.source = cfg.PageSource
			}

			log, err := logger.New(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("could not build logger: %w", err)
			}
			defer log.Sync() //nolint:errcheck

			return runGrab(gs, cfg, log, args[0], th, details, flags)
		},
	}

	grabCmd.Flags().Float64Var(&flags.minSizeKB, "min-size-kb", 0, "minimum image size in KB")
	grabCmd.Flags().IntVar(&flags.minWidth, "min-width", 0, "minimum natural width in pixels")
	grabCmd.Flags().IntVar(&flags.minHeight, "min-height", 0, "minimum natural height in pixels")
	grabCmd.Flags().StringVar(&flags.sortKey, "sort", string(entity.SortBySize), "order images by size, width or height")
	grabCmd.Flags().StringSliceVar(&flags.selection, "select", nil, "file name globs of the images to archive (default all)")
	grabCmd.Flags().StringVarP(&flags.out, "out", "o", usecase.ArchiveFileName, "archive path")
	grabCmd.Flags().StringVar(&flags.source, "source", "", "page source: browser or static (default PAGE_SOURCE)")
	grabCmd.Flags().BoolVar(&flags.list, "list", false, "only list the collection, do not download")
	return grabCmd
}

func runGrab(gs *globalState, cfg *config.Config, log *zap.Logger, pageURL string, th entity.FilterThresholds, details bool, flags *grabFlags) error {
	key := entity.SortKey(flags.sortKey)
	if !key.Valid() {
		return entity.ErrInvalidSortKey
	}

	c, err := newCore(cfg, flags.source, metrics.New(prometheus.NewRegistry()), log)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := context.WithTimeout(gs.ctx, cfg.GrabTimeout())
	defer cancel()

	collection, err := c.pipeline.Collect(ctx, pageURL, th, nil)
	if err != nil {
		return err
	}
	ranked, err := usecase.RankBy(collection, key)
	if err != nil {
		return err
	}
	if err := printCollection(gs.stdOut, ranked, details); err != nil {
		return err
	}
	if flags.list {
		return nil
	}

	selected, err := selectImages(ranked, flags.selection)
	if err != nil {
		return err
	}
	archive, err := c.packager.Build(ctx, selected, func(url string) (string, bool) {
		d, ok := ranked.Lookup(url)
		return d.DerivedName, ok
	})
	if err != nil {
		return err
	}
	if err := writeArchive(gs.fs, flags.out, archive); err != nil {
		return err
	}
	_, err = fmt.Fprintf(gs.stdOut, "wrote %d images to %s\n", len(selected), flags.out)
	return err
}

// selectImages returns the identifiers whose derived name matches one of the
// patterns, in collection order. No patterns selects everything.
func selectImages(c entity.Collection, patterns []string) ([]string, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid --select pattern %q: %w", p, err)
		}
		matchers = append(matchers, g)
	}

	var selected []string
	for _, d := range c {
		if len(matchers) == 0 {
			selected = append(selected, d.URL)
			continue
		}
		for _, g := range matchers {
			if g.Match(d.DerivedName) {
				selected = append(selected, d.URL)
				break
			}
		}
	}
	if len(selected) == 0 {
		return nil, entity.ErrEmptySelection
	}
	return selected, nil
}

func writeArchive(afs afero.Fs, path string, archive []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := afs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(afs, path, archive, 0o644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

type listedImage struct {
	URL      string   `yaml:"url"`
	FileName string   `yaml:"file_name,omitempty"`
	SizeKB   *float64 `yaml:"size_kb,omitempty"`
	Width    int      `yaml:"width,omitempty"`
	Height   int      `yaml:"height,omitempty"`
}

func printCollection(w io.Writer, c entity.Collection, details bool) error {
	list := make([]listedImage, len(c))
	for i, d := range c {
		list[i] = listedImage{URL: d.URL}
		if details {
			list[i].FileName = d.DerivedName
			list[i].SizeKB = d.SizeKB
			list[i].Width = d.Width
			list[i].Height = d.Height
		}
	}
	return yamlPrint(w, list)
}

func yamlPrint(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("could not marshal YAML: %w", err)
	}
	return enc.Close()
}
