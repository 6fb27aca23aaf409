package assets

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	CSSBundle  string       `json:"cssBundle"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

// BuildError carries the formatted esbuild error messages.
type BuildError struct {
	Messages []string
}

func (e *BuildError) Error() string {
	if len(e.Messages) == 0 {
		return "esbuild failed with errors"
	}
	return fmt.Sprintf("esbuild failed with %d error(s): %s", len(e.Messages), strings.TrimSpace(e.Messages[0]))
}

// Pipeline manages the asset build process
type Pipeline struct {
	config Config
}

// New creates a new asset pipeline with the given configuration
func New(config Config) *Pipeline {
	return &Pipeline{
		config: config,
	}
}

// Asset describes what a page needs to load one of its source scripts or stylesheets.
type Asset struct {
	// URL of the bundle replacing the source reference
	URL string
	// Preload lists chunks statically imported by a script bundle
	Preload []string
	// CSS lists stylesheets extracted from a script bundle
	CSS []string
}

// Outputs is the result of one build.
type Outputs struct {
	config   Config
	metadata *BuildMetadata
	files    []string
}

// Files returns the absolute paths of every file esbuild wrote.
func (o *Outputs) Files() []string {
	return o.files
}

// Lookup returns the bundle built for the absolute source path.
func (o *Outputs) Lookup(source string) (Asset, bool) {
	if o == nil || o.metadata == nil {
		return Asset{}, false
	}

	source = filepath.Clean(source)

	// Find the output file for this entrypoint
	for outputPath, info := range o.metadata.Outputs {
		if info.EntryPoint == "" || o.abs(info.EntryPoint) != source {
			continue
		}

		asset := Asset{URL: o.url(outputPath)}
		visited := map[string]bool{outputPath: true}
		o.addDependencies(info, &asset.Preload, visited)

		if info.CSSBundle != "" {
			asset.CSS = append(asset.CSS, o.url(info.CSSBundle))
		}

		return asset, true
	}

	return Asset{}, false
}

func (o *Outputs) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || imp.Kind != "import-statement" {
			continue
		}
		if !visited[imp.Path] {
			visited[imp.Path] = true
			*scripts = append(*scripts, o.url(imp.Path))

			if chunkInfo, exists := o.metadata.Outputs[imp.Path]; exists {
				o.addDependencies(chunkInfo, scripts, visited)
			}
		}
	}
}

// abs converts a metafile path, relative to the working directory, to an absolute path.
func (o *Outputs) abs(p string) string {
	return filepath.Join(o.config.WorkingDir, filepath.FromSlash(p))
}

// url converts a metafile output path into the public URL below Base.
func (o *Outputs) url(p string) string {
	rel, err := filepath.Rel(o.config.OutputDir, o.abs(p))
	if err != nil {
		rel = p
	}
	return PublicURL(o.config.Base, filepath.ToSlash(rel))
}

// PublicURL joins base and a slash separated path relative to the output directory.
func PublicURL(base, rel string) string {
	if base == "" {
		base = "/"
	}
	if strings.Contains(base, "://") {
		return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(rel, "/")
	}
	return path.Join("/", base, rel)
}
