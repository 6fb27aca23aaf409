package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no config file is named.
const DefaultFile = "sitebundle.yaml"

type Config struct {
	// Root is the directory pages are discovered under.
	Root string `yaml:"root"`
	// OutDir receives the build, it is emptied first when EmptyOutDir is set.
	OutDir      string `yaml:"outDir"`
	EmptyOutDir bool   `yaml:"emptyOutDir"`
	Minify      bool   `yaml:"minify"`
	Sourcemap   bool   `yaml:"sourcemap"`
	// Base is prefixed to asset URLs written into pages.
	Base string `yaml:"base"`
	// AssetsDir is the OutDir relative directory bundled assets are written to.
	AssetsDir string `yaml:"assetsDir"`
	// Manifest writes manifest.json describing the build into OutDir.
	Manifest bool `yaml:"manifest"`

	Pages      Pages      `yaml:"pages"`
	Handlebars Handlebars `yaml:"handlebars"`

	// dir is the directory relative paths are resolved against.
	dir string
}

type Pages struct {
	Extensions []string `yaml:"extensions"`
	// Exclude is the Root relative directory holding partials, never treated as pages.
	Exclude string   `yaml:"exclude"`
	Ignore  []string `yaml:"ignore"`
	Strict  bool     `yaml:"strict"`
}

type Handlebars struct {
	// Partials defaults to the excluded pages directory.
	Partials string `yaml:"partials"`
	// Context is a JSON or YAML file injected into every page.
	Context string `yaml:"context"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Root:        "src",
		OutDir:      "dist",
		EmptyOutDir: true,
		Minify:      true,
		Sourcemap:   false,
		Base:        "/",
		AssetsDir:   "assets",
		Pages: Pages{
			Extensions: []string{".html"},
			Exclude:    "components",
		},
	}
}

// Load reads the config file at path on top of the defaults. An empty path
// looks for DefaultFile in the working directory and falls back to the
// defaults when it is absent; a named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return cfg, err
	}
	cfg.dir = filepath.Dir(abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// WithDir returns a copy of cfg resolving relative paths against dir.
func (c Config) WithDir(dir string) Config {
	c.dir = dir
	return c
}

// Dir is the project directory relative paths are resolved against.
func (c Config) Dir() string {
	if c.dir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return c.dir
}

func (c Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// RootDir is the absolute page root.
func (c Config) RootDir() string {
	return c.resolve(c.Root)
}

// OutputDir is the absolute output directory.
func (c Config) OutputDir() string {
	return c.resolve(c.OutDir)
}

// ExcludeDir is the absolute directory excluded from page discovery.
func (c Config) ExcludeDir() string {
	if c.Pages.Exclude == "" {
		return ""
	}
	if filepath.IsAbs(c.Pages.Exclude) {
		return c.Pages.Exclude
	}
	return filepath.Join(c.RootDir(), c.Pages.Exclude)
}

// PartialsDir is the absolute handlebars partials directory.
func (c Config) PartialsDir() string {
	if c.Handlebars.Partials != "" {
		return c.resolve(c.Handlebars.Partials)
	}
	return c.ExcludeDir()
}

// ContextFile is the absolute path of the templating context, empty when unset.
func (c Config) ContextFile() string {
	return c.resolve(c.Handlebars.Context)
}

// Validate checks the configuration is usable for a build.
func (c Config) Validate() error {
	if c.Root == "" {
		return errors.New("root is required")
	}
	if c.OutDir == "" {
		return errors.New("outDir is required")
	}
	if c.AssetsDir == "" || filepath.IsAbs(c.AssetsDir) || strings.HasPrefix(filepath.Clean(c.AssetsDir), "..") {
		return fmt.Errorf("assetsDir %q must be a relative directory inside outDir", c.AssetsDir)
	}
	if !strings.HasPrefix(c.Base, "/") && !strings.Contains(c.Base, "://") {
		return fmt.Errorf("base %q must start with / or be an absolute URL", c.Base)
	}
	for _, ext := range c.Pages.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("page extension %q must start with a dot", ext)
		}
	}
	for _, p := range c.Pages.Ignore {
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
	}

	root, out := c.RootDir(), c.OutputDir()
	if c.EmptyOutDir && contains(out, root) {
		return fmt.Errorf("outDir %s contains root %s and would be emptied", out, root)
	}

	return nil
}

// contains reports whether p is dir or below it.
func contains(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
