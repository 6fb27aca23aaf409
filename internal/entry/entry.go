// Package entry discovers the HTML pages of a site and maps each one to the
// key the bundler uses to name its output.
package entry

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultExtension identifies page files when no extensions are configured.
const DefaultExtension = ".html"

// Map associates an entry key such as "/blog/post" with the absolute path of its page file.
type Map map[string]string

// Keys returns the keys in lexicographic order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Collision records a key derived from more than one page file. Kept is the
// file that remained in the map.
type Collision struct {
	Key     string
	Kept    string
	Dropped string
}

// Result is the outcome of a resolve.
type Result struct {
	Entries    Map
	Collisions []Collision
}

// Resolver finds page files under a root directory.
type Resolver struct {
	Finder Finder
	// Extensions are matched case-sensitively against file names.
	Extensions []string
	// Ignore holds glob patterns matched against the root relative, slash separated path.
	Ignore []string
	// Strict turns key collisions into a DuplicateKeyError.
	Strict bool
	// Exclude lists further directories never searched, such as an output
	// directory placed inside the root.
	Exclude []string
}

// ResolveEntryPoints walks rootDir on the host filesystem and returns every
// file ending in extension that is not below excludeDir.
func ResolveEntryPoints(rootDir, excludeDir, extension string) (Map, error) {
	r := &Resolver{
		Finder:     NewOsFinder(),
		Extensions: []string{extension},
	}

	res, err := r.Resolve(rootDir, excludeDir)
	if err != nil {
		return nil, err
	}

	return res.Entries, nil
}

// Resolve builds the entry map for rootDir. An excludeDir outside rootDir,
// or an empty one, excludes nothing.
func (r *Resolver) Resolve(rootDir, excludeDir string) (*Result, error) {
	finder := r.Finder
	if finder == nil {
		finder = NewOsFinder()
	}

	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}

	info, err := finder.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: root, Err: err}
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, &NotFoundError{Path: root, Err: fmt.Errorf("%s is not a directory", root)}
	}

	var excludes []string
	for _, dir := range append([]string{excludeDir}, r.Exclude...) {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		excludes = append(excludes, abs)
	}

	exts := r.extensions()

	ignore, err := compileIgnore(r.Ignore)
	if err != nil {
		return nil, err
	}

	excluded := func(p string) bool {
		for _, dir := range excludes {
			if within(dir, p) {
				return true
			}
		}
		return false
	}

	match := func(p string) bool {
		if pageExtension(p, exts) == "" {
			return false
		}
		if excluded(p) {
			return false
		}
		if len(ignore) > 0 {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return false
			}
			rel = filepath.ToSlash(rel)
			for _, g := range ignore {
				if g.Match(rel) {
					return false
				}
			}
		}
		return true
	}

	files, err := finder.Find(root, excluded, match)
	if err != nil {
		return nil, err
	}

	res := &Result{Entries: make(Map, len(files))}

	for _, file := range files {
		key, err := Key(root, file, pageExtension(file, exts))
		if err != nil {
			return nil, err
		}

		if prev, ok := res.Entries[key]; ok {
			if r.Strict {
				return nil, &DuplicateKeyError{Key: key, First: prev, Second: file}
			}
			res.Collisions = append(res.Collisions, Collision{Key: key, Kept: file, Dropped: prev})
		}

		res.Entries[key] = file
	}

	return res, nil
}

// Key derives the entry key of file relative to root: the extension is
// removed and segments are joined with "/", always with a leading slash.
// Files directly in root get one too, index.html is "/index" rather than "index".
func Key(root, file, ext string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", err
	}

	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is not below %s", file, root)
	}

	key := path.Join("/", strings.TrimSuffix(rel, ext))
	if key == "/" {
		return "", fmt.Errorf("empty entry key for %s", file)
	}

	return key, nil
}

// extensions returns the configured extensions, longest first, so ".tmpl.html"
// is stripped in preference to ".html".
func (r *Resolver) extensions() []string {
	exts := r.Extensions
	if len(exts) == 0 {
		exts = []string{DefaultExtension}
	}

	sorted := make([]string, len(exts))
	copy(sorted, exts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	return sorted
}

func pageExtension(p string, exts []string) string {
	name := filepath.Base(p)
	for _, ext := range exts {
		if ext != "" && len(name) > len(ext) && strings.HasSuffix(name, ext) {
			return ext
		}
	}
	return ""
}

func compileIgnore(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// within reports whether p is dir or below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
