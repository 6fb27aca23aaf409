package entry

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Finder enumerates files below a root. Implementations must not modify the tree.
type Finder interface {
	Stat(name string) (fs.FileInfo, error)
	// Find returns the files under root accepted by match, sorted lexicographically.
	// Directories for which skip returns true are not descended into.
	Find(root string, skip, match func(path string) bool) ([]string, error)
}

// AferoFinder walks any afero filesystem.
type AferoFinder struct {
	Fs afero.Fs
}

var _ Finder = (*AferoFinder)(nil)

// NewOsFinder returns a Finder backed by the host filesystem.
func NewOsFinder() *AferoFinder {
	return &AferoFinder{Fs: afero.NewOsFs()}
}

func (f *AferoFinder) Stat(name string) (fs.FileInfo, error) {
	return f.Fs.Stat(name)
}

func (f *AferoFinder) Find(root string, skip, match func(path string) bool) ([]string, error) {
	var paths []string

	err := afero.Walk(f.Fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && skip != nil && skip(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if match(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}
