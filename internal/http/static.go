package http

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// StaticHandler serves a built site from dir. Extensionless paths map to the
// page written for that entry key, so /blog/post serves blog/post.html.
// Directories are served through their index.html and are never listed.
func StaticHandler(dir string) http.Handler {
	fsys := http.Dir(dir)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		name := path.Clean("/" + r.URL.Path)

		for _, candidate := range candidates(name, strings.HasSuffix(r.URL.Path, "/")) {
			ok, err := serveFile(w, r, fsys, candidate)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if ok {
				return
			}
		}

		http.NotFound(w, r)
	})
}

func candidates(name string, dirRequest bool) []string {
	if name == "/" || dirRequest {
		return []string{path.Join(name, "index.html")}
	}

	if path.Ext(name) == "" {
		return []string{name + ".html", name, path.Join(name, "index.html")}
	}

	return []string{name}
}

// serveFile writes name if it is a regular file, reporting false when it is
// missing or a directory.
func serveFile(w http.ResponseWriter, r *http.Request, fsys http.FileSystem, name string) (bool, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true, nil
}
