package assets

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
)

// fileLoaders copies files referenced from stylesheets and scripts next to the bundles.
var fileLoaders = map[string]api.Loader{
	".png":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".gif":   api.LoaderFile,
	".svg":   api.LoaderFile,
	".webp":  api.LoaderFile,
	".avif":  api.LoaderFile,
	".ico":   api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
	".ttf":   api.LoaderFile,
	".otf":   api.LoaderFile,
}

// Build bundles the given absolute entry points with esbuild and loads the metadata
// needed to map each one to its output.
func (p *Pipeline) Build(ctx context.Context, entryPoints []string) (*Outputs, error) {
	log := zerolog.Ctx(ctx)

	cfg, err := p.absConfig()
	if err != nil {
		return nil, err
	}

	if len(entryPoints) == 0 {
		log.Debug().Msg("No assets referenced, skipping bundling")
		return &Outputs{config: cfg, metadata: &BuildMetadata{Outputs: map[string]OutputInfo{}}}, nil
	}

	entryPoints = append([]string(nil), entryPoints...)
	sort.Strings(entryPoints)

	log.Info().Strs("entrypoints", entryPoints).Msg("Building assets")

	result := api.Build(api.BuildOptions{
		EntryPoints:       entryPoints,
		AbsWorkingDir:     cfg.WorkingDir,
		Bundle:            true,
		Splitting:         true,
		Write:             true,
		JSX:               api.JSXAutomatic,
		Outdir:            filepath.Join(cfg.OutputDir, cfg.AssetsDir),
		EntryNames:        "[name]-[hash]",
		ChunkNames:        "chunk-[hash]",
		AssetNames:        "[name]-[hash]",
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Loader:            fileLoaders,
		MinifyWhitespace:  cfg.Minify,
		MinifyIdentifiers: cfg.Minify,
		MinifySyntax:      cfg.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(cfg.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
	})

	for _, msg := range api.FormatMessages(result.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}) {
		log.Warn().Str("warning", msg).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		for _, msg := range msgs {
			log.Error().Str("error", msg).Msg("Build error")
		}
		return nil, &BuildError{Messages: msgs}
	}

	files := make([]string, 0, len(result.OutputFiles))
	for _, file := range result.OutputFiles {
		log.Debug().Str("file", file.Path).Msg("Built file")
		files = append(files, file.Path)
	}
	sort.Strings(files)

	// Parse metadata
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, err
	}

	return &Outputs{config: cfg, metadata: &metadata, files: files}, nil
}

func (p *Pipeline) absConfig() (Config, error) {
	cfg := p.config

	wd, err := filepath.Abs(cfg.WorkingDir)
	if err != nil {
		return cfg, err
	}
	out, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return cfg, err
	}

	cfg.WorkingDir, cfg.OutputDir = wd, out
	return cfg, nil
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
