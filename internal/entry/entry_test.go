package entry

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memTree(t *testing.T, files ...string) afero.Fs {
	t.Helper()

	mfs := afero.NewMemMapFs()
	require.NoError(t, mfs.MkdirAll("/src", 0o755))
	for _, f := range files {
		require.NoError(t, mfs.MkdirAll(filepath.Dir(f), 0o755))
		require.NoError(t, afero.WriteFile(mfs, f, []byte("<html></html>"), 0o644))
	}
	return mfs
}

func TestResolve(t *testing.T) {
	mfs := memTree(t,
		"/src/index.html",
		"/src/about.html",
		"/src/blog/post.html",
		"/src/blog/2024/recap.html",
		"/src/components/header.html",
		"/src/components/nav/link.html",
		"/src/main.js",
		"/src/styles/site.css",
		"/src/UPPER.HTML",
	)

	r := &Resolver{Finder: &AferoFinder{Fs: mfs}}
	res, err := r.Resolve("/src", "/src/components")
	require.NoError(t, err)

	require.Equal(t, Map{
		"/index":           "/src/index.html",
		"/about":           "/src/about.html",
		"/blog/post":       "/src/blog/post.html",
		"/blog/2024/recap": "/src/blog/2024/recap.html",
	}, res.Entries)
	require.Empty(t, res.Collisions)
}

func TestResolve_exclusion(t *testing.T) {
	mfs := memTree(t,
		"/src/index.html",
		"/src/components/header.html",
		"/src/components/deep/footer.html",
		"/src/componentsish/page.html",
	)

	r := &Resolver{Finder: &AferoFinder{Fs: mfs}}
	res, err := r.Resolve("/src", "/src/components")
	require.NoError(t, err)

	for _, p := range res.Entries {
		require.NotContains(t, []string{"/src/components/header.html", "/src/components/deep/footer.html"}, p)
	}

	// a sibling sharing the prefix is not excluded
	require.Equal(t, "/src/componentsish/page.html", res.Entries["/componentsish/page"])
}

func TestResolve_excludeOutsideRoot(t *testing.T) {
	mfs := memTree(t,
		"/src/index.html",
		"/src/components/header.html",
	)

	r := &Resolver{Finder: &AferoFinder{Fs: mfs}}
	res, err := r.Resolve("/src", "/elsewhere/components")
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	require.Equal(t, "/src/components/header.html", res.Entries["/components/header"])
}

func TestResolve_completeness(t *testing.T) {
	files := []string{
		"/src/a.html",
		"/src/b/c.html",
		"/src/b/d/e.html",
		"/src/f/g.html",
	}
	mfs := memTree(t, files...)

	r := &Resolver{Finder: &AferoFinder{Fs: mfs}}
	res, err := r.Resolve("/src", "/src/components")
	require.NoError(t, err)

	counts := map[string]int{}
	for _, p := range res.Entries {
		counts[p]++
	}
	for _, f := range files {
		assert.Equal(t, 1, counts[f], "file %s", f)
	}
}

func TestResolve_deterministic(t *testing.T) {
	mfs := memTree(t,
		"/src/z.html",
		"/src/a.html",
		"/src/m/n.html",
	)

	r := &Resolver{Finder: &AferoFinder{Fs: mfs}}
	first, err := r.Resolve("/src", "")
	require.NoError(t, err)
	second, err := r.Resolve("/src", "")
	require.NoError(t, err)

	require.Equal(t, first.Entries, second.Entries)
	require.Equal(t, []string{"/a", "/m/n", "/z"}, first.Entries.Keys())
	require.Equal(t, first.Entries.Keys(), second.Entries.Keys())
}

func TestResolve_emptyTree(t *testing.T) {
	mfs := memTree(t, "/src/readme.md")

	r := &Resolver{Finder: &AferoFinder{Fs: mfs}}
	res, err := r.Resolve("/src", "/src/components")
	require.NoError(t, err)
	require.NotNil(t, res.Entries)
	require.Empty(t, res.Entries)
}

func TestResolve_missingRoot(t *testing.T) {
	mfs := afero.NewMemMapFs()

	r := &Resolver{Finder: &AferoFinder{Fs: mfs}}
	res, err := r.Resolve("/nope", "/nope/components")
	require.Error(t, err)
	require.Nil(t, res)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, "/nope", nf.Path)
	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestResolve_rootIsFile(t *testing.T) {
	mfs := memTree(t, "/src/index.html")

	r := &Resolver{Finder: &AferoFinder{Fs: mfs}}
	_, err := r.Resolve("/src/index.html", "")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestResolve_extraExclude(t *testing.T) {
	mfs := memTree(t,
		"/src/index.html",
		"/src/components/header.html",
		"/src/dist/index.html",
		"/src/dist/blog/post.html",
	)

	r := &Resolver{
		Finder:  &AferoFinder{Fs: mfs},
		Exclude: []string{"/src/dist", ""},
	}

	res, err := r.Resolve("/src", "/src/components")
	require.NoError(t, err)
	require.Equal(t, Map{"/index": "/src/index.html"}, res.Entries)
}

// unreadableFs fails to open one directory the way a permission problem would.
type unreadableFs struct {
	afero.Fs
	dir string
}

func (u *unreadableFs) Open(name string) (afero.File, error) {
	if name == u.dir {
		return nil, &os.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return u.Fs.Open(name)
}

func TestResolve_unreadableDirectory(t *testing.T) {
	mfs := memTree(t,
		"/src/index.html",
		"/src/private/secret.html",
	)

	r := &Resolver{Finder: &AferoFinder{Fs: &unreadableFs{Fs: mfs, dir: "/src/private"}}}
	res, err := r.Resolve("/src", "")
	require.Error(t, err)
	require.Nil(t, res)

	var nf *NotFoundError
	require.False(t, errors.As(err, &nf))
	require.True(t, errors.Is(err, fs.ErrPermission))

	var pe *os.PathError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "/src/private", pe.Path)
}

func TestResolve_collisionLastWins(t *testing.T) {
	mfs := memTree(t,
		"/src/a.html",
		"/src/a.htm",
	)

	r := &Resolver{
		Finder:     &AferoFinder{Fs: mfs},
		Extensions: []string{".html", ".htm"},
	}

	for range 3 {
		res, err := r.Resolve("/src", "")
		require.NoError(t, err)
		require.Equal(t, Map{"/a": "/src/a.html"}, res.Entries)
		require.Equal(t, []Collision{{Key: "/a", Kept: "/src/a.html", Dropped: "/src/a.htm"}}, res.Collisions)
	}
}

func TestResolve_collisionStrict(t *testing.T) {
	mfs := memTree(t,
		"/src/a.html",
		"/src/a.htm",
	)

	r := &Resolver{
		Finder:     &AferoFinder{Fs: mfs},
		Extensions: []string{".htm", ".html"},
		Strict:     true,
	}

	_, err := r.Resolve("/src", "")
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "/a", dup.Key)
	require.Equal(t, "/src/a.htm", dup.First)
	require.Equal(t, "/src/a.html", dup.Second)
}

func TestResolve_ignore(t *testing.T) {
	mfs := memTree(t,
		"/src/index.html",
		"/src/_draft.html",
		"/src/blog/_wip.html",
		"/src/blog/post.html",
	)

	r := &Resolver{
		Finder: &AferoFinder{Fs: mfs},
		Ignore: []string{"**/_*.html", "_*.html"},
	}

	res, err := r.Resolve("/src", "")
	require.NoError(t, err)
	require.Equal(t, []string{"/blog/post", "/index"}, res.Entries.Keys())
}

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		file     string
		ext      string
		expected string
	}{
		{
			name:     "nested page",
			root:     "/src",
			file:     "/src/pages/about.html",
			ext:      ".html",
			expected: "/pages/about",
		},
		{
			name:     "root page",
			root:     "/src",
			file:     "/src/index.html",
			ext:      ".html",
			expected: "/index",
		},
		{
			name:     "dotted name keeps inner dots",
			root:     "/src",
			file:     "/src/v1.2/notes.tmpl.html",
			ext:      ".html",
			expected: "/v1.2/notes.tmpl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Key(tt.root, tt.file, tt.ext)
			require.NoError(t, err)
			require.Equal(t, tt.expected, key)
		})
	}
}

func TestKey_outsideRoot(t *testing.T) {
	_, err := Key("/src", "/other/index.html", ".html")
	require.Error(t, err)
}

func TestResolveEntryPoints(t *testing.T) {
	root := filepath.Join(t.TempDir(), "src")
	write := func(rel string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("<p>hi</p>"), 0o600))
	}
	write("index.html")
	write("docs/guide.html")
	write("components/card.html")

	entries, err := ResolveEntryPoints(root, filepath.Join(root, "components"), ".html")
	require.NoError(t, err)
	require.Equal(t, Map{
		"/index":      filepath.Join(root, "index.html"),
		"/docs/guide": filepath.Join(root, "docs", "guide.html"),
	}, entries)

	for _, p := range entries {
		require.True(t, filepath.IsAbs(p))
		_, err := os.Stat(p)
		require.NoError(t, err)
	}
}

func TestResolveEntryPoints_missingRoot(t *testing.T) {
	_, err := ResolveEntryPoints(filepath.Join(t.TempDir(), "missing"), "", ".html")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}
