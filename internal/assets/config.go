package assets

type Config struct {
	// Directory source paths in the metafile are relative to, normally the page root
	WorkingDir string
	// Output directory of the whole site
	OutputDir string
	// Directory bundles are written to, relative to OutputDir
	AssetsDir string
	// Public path prefix for URLs pointing at OutputDir
	Base string
	// Whether to minify output
	Minify bool
	// Whether to enable source maps
	SourceMap bool
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		WorkingDir: "src",
		OutputDir:  "dist",
		AssetsDir:  "assets",
		Base:       "/",
		Minify:     true,
		SourceMap:  false,
	}
}
