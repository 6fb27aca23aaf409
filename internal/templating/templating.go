// Package templating renders page sources through handlebars with a shared
// set of partials and a read-only context.
package templating

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// PartialExtensions are the file suffixes loaded as partials.
var PartialExtensions = []string{".html", ".hbs", ".handlebars"}

// Context is the data every page is rendered with. It is loaded once per
// build and never modified afterwards.
type Context map[string]any

// Partials maps a partial name such as "nav/link" to its source.
type Partials map[string]string

// Names returns the partial names in lexicographic order.
func (p Partials) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RenderError wraps a template failure with the page it came from.
type RenderError struct {
	Page string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// LoadContext reads a JSON or YAML object from path. An empty path yields an empty context.
func LoadContext(fsys afero.Fs, path string) (Context, error) {
	if path == "" {
		return Context{}, nil
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	ctx := Context{}
	// yaml is a superset of json so one decoder covers both
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file %s: %w", path, err)
	}

	return ctx, nil
}

// LoadPartials reads every partial below dir. A missing directory yields no partials.
func LoadPartials(fsys afero.Fs, dir string) (Partials, error) {
	partials := Partials{}
	if dir == "" {
		return partials, nil
	}

	if _, err := fsys.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return partials, nil
		}
		return nil, err
	}

	err := afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := partialExtension(info.Name())
		if ext == "" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(strings.TrimSuffix(rel, ext))

		src, err := afero.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read partial %s: %w", path, err)
		}
		if _, err := raymond.Parse(string(src)); err != nil {
			return fmt.Errorf("failed to parse partial %s: %w", path, err)
		}

		partials[name] = string(src)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return partials, nil
}

func partialExtension(name string) string {
	for _, ext := range PartialExtensions {
		if strings.HasSuffix(name, ext) {
			return ext
		}
	}
	return ""
}

// Engine renders pages. It is safe for concurrent use as each render parses its own template.
type Engine struct {
	partials Partials
	context  Context
	helpers  map[string]any
}

// New creates an engine over the given partials and context.
func New(partials Partials, context Context) *Engine {
	return NewWithHelpers(partials, context, nil)
}

// NewWithHelpers creates an engine and registers custom helpers alongside the built in ones.
func NewWithHelpers(partials Partials, context Context, customHelpers map[string]any) *Engine {
	helpers := map[string]any{
		"json": marshal,
	}

	// Merge custom helpers
	maps.Copy(helpers, customHelpers)

	if context == nil {
		context = Context{}
	}

	return &Engine{
		partials: partials,
		context:  context,
		helpers:  helpers,
	}
}

// Render executes source, identified by page in errors, against the engine context.
func (e *Engine) Render(page, source string) (string, error) {
	tpl, err := raymond.Parse(source)
	if err != nil {
		return "", &RenderError{Page: page, Err: err}
	}

	tpl.RegisterPartials(e.partials)
	tpl.RegisterHelpers(e.helpers)

	out, err := tpl.Exec(map[string]any(e.context))
	if err != nil {
		return "", &RenderError{Page: page, Err: err}
	}

	return out, nil
}

func marshal(value any) raymond.SafeString {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return raymond.SafeString(strings.TrimSpace(buf.String()))
}
