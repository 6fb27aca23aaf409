// Package site runs a full build: page discovery, templating, asset bundling
// and writing the output directory.
package site

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/sitebundle/internal/assets"
	"github.com/wolfeidau/sitebundle/internal/config"
	"github.com/wolfeidau/sitebundle/internal/entry"
	"github.com/wolfeidau/sitebundle/internal/page"
	"github.com/wolfeidau/sitebundle/internal/templating"
)

// ManifestFile is written into the output directory when the manifest is enabled.
const ManifestFile = "manifest.json"

// Report summarises a finished build.
type Report struct {
	BuildID    string
	Entries    entry.Map
	Collisions []entry.Collision
	// Pages are the written page files in entry key order
	Pages    []string
	Assets   []string
	Duration time.Duration
}

// Manifest describes a build for deployment tooling.
type Manifest struct {
	BuildID string                   `json:"buildId"`
	Entries map[string]ManifestEntry `json:"entries"`
}

type ManifestEntry struct {
	Source string   `json:"source"`
	File   string   `json:"file"`
	Assets []string `json:"assets,omitempty"`
}

type Builder struct {
	cfg config.Config
	fs  afero.Fs
	mu  sync.Mutex
}

// New creates a builder for cfg reading sources from the host filesystem.
func New(cfg config.Config) *Builder {
	return &Builder{
		cfg: cfg,
		fs:  afero.NewOsFs(),
	}
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() config.Config {
	return b.cfg
}

// Resolve discovers the entry points without building.
func (b *Builder) Resolve() (*entry.Result, error) {
	r := &entry.Resolver{
		Finder:     &entry.AferoFinder{Fs: b.fs},
		Extensions: b.cfg.Pages.Extensions,
		Ignore:     b.cfg.Pages.Ignore,
		Strict:     b.cfg.Pages.Strict,
		Exclude:    []string{b.cfg.OutputDir()},
	}
	return r.Resolve(b.cfg.RootDir(), b.cfg.ExcludeDir())
}

type rendered struct {
	key    string
	source string
	doc    *page.Document
	assets []string
}

// Build produces the site. Nothing in the output directory is touched until
// every page has rendered.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	started := time.Now()
	log := zerolog.Ctx(ctx)

	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	res, err := b.Resolve()
	if err != nil {
		return nil, err
	}

	for _, key := range res.Entries.Keys() {
		log.Debug().Str("key", key).Str("file", res.Entries[key]).Msg("Entry point")
	}
	for _, c := range res.Collisions {
		log.Warn().Str("key", c.Key).Str("kept", c.Kept).Str("dropped", c.Dropped).Msg("Duplicate entry key, later file wins")
	}
	log.Info().Int("entries", len(res.Entries)).Str("root", b.cfg.RootDir()).Msg("Resolved entry points")

	tctx, err := templating.LoadContext(b.fs, b.cfg.ContextFile())
	if err != nil {
		return nil, err
	}
	partials, err := templating.LoadPartials(b.fs, b.cfg.PartialsDir())
	if err != nil {
		return nil, err
	}
	log.Debug().Strs("partials", partials.Names()).Msg("Loaded partials")

	pages, err := b.render(ctx, res.Entries, templating.New(partials, tctx))
	if err != nil {
		return nil, err
	}

	outDir := b.cfg.OutputDir()
	if err := b.prepareOutDir(ctx, outDir); err != nil {
		return nil, err
	}

	pipeline := assets.New(assets.Config{
		WorkingDir: b.cfg.RootDir(),
		OutputDir:  outDir,
		AssetsDir:  b.cfg.AssetsDir,
		Base:       b.cfg.Base,
		Minify:     b.cfg.Minify,
		SourceMap:  b.cfg.Sourcemap,
	})

	outputs, err := pipeline.Build(ctx, collectAssets(pages))
	if err != nil {
		return nil, fmt.Errorf("failed to build assets: %w", err)
	}

	report := &Report{
		BuildID:    uuid.NewString(),
		Entries:    res.Entries,
		Collisions: res.Collisions,
		Assets:     outputs.Files(),
	}
	manifest := Manifest{BuildID: report.BuildID, Entries: map[string]ManifestEntry{}}

	for _, p := range pages {
		file, urls, err := b.writePage(p, outDir, outputs)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("key", p.key).Str("file", file).Msg("Wrote page")

		report.Pages = append(report.Pages, file)
		manifest.Entries[p.key] = ManifestEntry{
			Source: relSlash(b.cfg.RootDir(), p.source),
			File:   relSlash(outDir, file),
			Assets: urls,
		}
	}

	if b.cfg.Manifest {
		if err := writeManifest(filepath.Join(outDir, ManifestFile), manifest); err != nil {
			return nil, err
		}
	}

	report.Duration = time.Since(started)

	log.Info().
		Str("build_id", report.BuildID).
		Int("pages", len(report.Pages)).
		Int("assets", len(report.Assets)).
		Dur("duration", report.Duration).
		Msg("Build complete")

	return report, nil
}

func (b *Builder) render(ctx context.Context, entries entry.Map, engine *templating.Engine) ([]*rendered, error) {
	keys := entries.Keys()
	pages := make([]*rendered, len(keys))
	root := b.cfg.RootDir()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, key := range keys {
		g.Go(func() error {
			source := entries[key]

			src, err := afero.ReadFile(b.fs, source)
			if err != nil {
				return fmt.Errorf("failed to read page %s: %w", source, err)
			}

			out, err := engine.Render(key, string(src))
			if err != nil {
				return err
			}

			doc, err := page.Parse(out)
			if err != nil {
				return fmt.Errorf("page %s: %w", key, err)
			}

			p := &rendered{key: key, source: source, doc: doc}
			for _, ref := range doc.Refs() {
				abs, err := page.ResolveRef(root, filepath.Dir(source), ref.Value)
				if err != nil {
					return fmt.Errorf("page %s: %w", key, err)
				}
				p.assets = append(p.assets, abs)
			}

			pages[i] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return pages, nil
}

func (b *Builder) prepareOutDir(ctx context.Context, outDir string) error {
	if b.cfg.EmptyOutDir {
		zerolog.Ctx(ctx).Debug().Str("dir", outDir).Msg("Cleaning output directory")
		if err := os.RemoveAll(outDir); err != nil {
			return fmt.Errorf("failed to remove output directory '%s': %w", outDir, err)
		}
	}
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory '%s': %w", outDir, err)
	}
	return nil
}

func (b *Builder) writePage(p *rendered, outDir string, outputs *assets.Outputs) (string, []string, error) {
	root := b.cfg.RootDir()
	var urls []string

	p.doc.Rewrite(func(ref page.Ref) (page.Replacement, bool) {
		abs, err := page.ResolveRef(root, filepath.Dir(p.source), ref.Value)
		if err != nil {
			return page.Replacement{}, false
		}
		asset, ok := outputs.Lookup(abs)
		if !ok {
			return page.Replacement{}, false
		}
		urls = append(urls, asset.URL)
		return page.Replacement{URL: asset.URL, Preload: asset.Preload, CSS: asset.CSS}, true
	})

	out, err := p.doc.Render()
	if err != nil {
		return "", nil, fmt.Errorf("failed to render page %s: %w", p.key, err)
	}

	if b.cfg.Minify {
		out, err = page.Minify(out)
		if err != nil {
			return "", nil, fmt.Errorf("failed to minify page %s: %w", p.key, err)
		}
	}

	file := OutputPath(outDir, p.key)
	if err := os.MkdirAll(filepath.Dir(file), os.ModePerm); err != nil {
		return "", nil, fmt.Errorf("failed to create directory for page %s: %w", p.key, err)
	}
	if err := os.WriteFile(file, []byte(out), 0o644); err != nil { // #nosec G306 - published site content
		return "", nil, fmt.Errorf("failed to write page %s: %w", p.key, err)
	}

	return file, urls, nil
}

// OutputPath is the file an entry key is written to, "/blog/post" becomes <outDir>/blog/post.html.
func OutputPath(outDir, key string) string {
	return filepath.Join(outDir, filepath.FromSlash(strings.TrimPrefix(key, "/"))+".html")
}

func collectAssets(pages []*rendered) []string {
	seen := map[string]bool{}
	var list []string
	for _, p := range pages {
		for _, a := range p.assets {
			if !seen[a] {
				seen[a] = true
				list = append(list, a)
			}
		}
	}
	sort.Strings(list)
	return list
}

func writeManifest(path string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 - published site content
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func relSlash(base, p string) string {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
