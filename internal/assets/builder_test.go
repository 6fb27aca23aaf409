package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func testPipeline(t *testing.T) (*Pipeline, string, string) {
	t.Helper()

	dir := t.TempDir()
	root := filepath.Join(dir, "src")
	out := filepath.Join(dir, "dist")

	cfg := DefaultConfig()
	cfg.WorkingDir = root
	cfg.OutputDir = out

	return New(cfg), root, out
}

func TestPipeline_Build(t *testing.T) {
	p, root, out := testPipeline(t)

	writeFiles(t, root, map[string]string{
		"main.js":         "import './style.css'\nimport { greet } from './lib/greet.js'\nconsole.log(greet('world'))\n",
		"lib/greet.js":    "export function greet(name) { return 'hello ' + name }\n",
		"style.css":       "body { color: red; }\n",
		"styles/site.css": "h1 { margin: 0; }\n",
	})

	outputs, err := p.Build(context.Background(), []string{
		filepath.Join(root, "styles", "site.css"),
		filepath.Join(root, "main.js"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, outputs.Files())

	for _, f := range outputs.Files() {
		rel, err := filepath.Rel(filepath.Join(out, "assets"), f)
		require.NoError(t, err)
		require.False(t, strings.HasPrefix(rel, ".."), "file %s written outside assets dir", f)
		_, err = os.Stat(f)
		require.NoError(t, err)
	}

	script, ok := outputs.Lookup(filepath.Join(root, "main.js"))
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(script.URL, "/assets/main-"), script.URL)
	assert.True(t, strings.HasSuffix(script.URL, ".js"), script.URL)
	require.Len(t, script.CSS, 1)
	assert.True(t, strings.HasSuffix(script.CSS[0], ".css"), script.CSS[0])

	style, ok := outputs.Lookup(filepath.Join(root, "styles", "site.css"))
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(style.URL, "/assets/site-"), style.URL)
	assert.True(t, strings.HasSuffix(style.URL, ".css"), style.URL)

	_, ok = outputs.Lookup(filepath.Join(root, "lib", "greet.js"))
	assert.False(t, ok, "only entry points have outputs")

	_, err = os.Stat(filepath.Join(out, strings.TrimPrefix(script.URL, "/")))
	require.NoError(t, err)
}

func TestPipeline_BuildSharedChunks(t *testing.T) {
	p, root, _ := testPipeline(t)

	writeFiles(t, root, map[string]string{
		"a.js":      "import { shared } from './shared.js'\nconsole.log('a', shared())\n",
		"b.js":      "import { shared } from './shared.js'\nconsole.log('b', shared())\n",
		"shared.js": "export function shared() { return Date.now() }\n",
	})

	outputs, err := p.Build(context.Background(), []string{
		filepath.Join(root, "a.js"),
		filepath.Join(root, "b.js"),
	})
	require.NoError(t, err)

	a, ok := outputs.Lookup(filepath.Join(root, "a.js"))
	require.True(t, ok)
	require.Len(t, a.Preload, 1)
	assert.True(t, strings.HasPrefix(a.Preload[0], "/assets/chunk-"), a.Preload[0])

	b, ok := outputs.Lookup(filepath.Join(root, "b.js"))
	require.True(t, ok)
	require.Equal(t, a.Preload, b.Preload)
}

func TestPipeline_BuildNoEntryPoints(t *testing.T) {
	p, root, _ := testPipeline(t)

	outputs, err := p.Build(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, outputs.Files())

	_, ok := outputs.Lookup(filepath.Join(root, "main.js"))
	require.False(t, ok)
}

func TestPipeline_BuildError(t *testing.T) {
	p, root, _ := testPipeline(t)

	writeFiles(t, root, map[string]string{
		"main.js": "import './missing.js'\n",
	})

	_, err := p.Build(context.Background(), []string{filepath.Join(root, "main.js")})
	require.Error(t, err)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	require.NotEmpty(t, be.Messages)
	require.Contains(t, be.Messages[0], "missing.js")
}

func TestPipeline_BuildSourcemap(t *testing.T) {
	p, root, out := testPipeline(t)
	p.config.SourceMap = true

	writeFiles(t, root, map[string]string{
		"main.js": "console.log('map me')\n",
	})

	outputs, err := p.Build(context.Background(), []string{filepath.Join(root, "main.js")})
	require.NoError(t, err)

	script, ok := outputs.Lookup(filepath.Join(root, "main.js"))
	require.True(t, ok)

	_, err = os.Stat(filepath.Join(out, strings.TrimPrefix(script.URL, "/")+".map"))
	require.NoError(t, err)
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		rel      string
		expected string
	}{
		{
			name:     "root base",
			base:     "/",
			rel:      "assets/main-ABC.js",
			expected: "/assets/main-ABC.js",
		},
		{
			name:     "empty base",
			base:     "",
			rel:      "assets/main-ABC.js",
			expected: "/assets/main-ABC.js",
		},
		{
			name:     "sub path base",
			base:     "/docs/",
			rel:      "assets/main-ABC.js",
			expected: "/docs/assets/main-ABC.js",
		},
		{
			name:     "absolute url base",
			base:     "https://cdn.example.com/site/",
			rel:      "assets/main-ABC.js",
			expected: "https://cdn.example.com/site/assets/main-ABC.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, PublicURL(tt.base, tt.rel))
		})
	}
}
