package commands

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/wolfeidau/sitebundle/internal/config"
)

type Globals struct {
	Debug   bool
	Version string
}

// ConfigFlags locate the config file and override individual settings from it.
type ConfigFlags struct {
	Config string `help:"path to config file (default: ./sitebundle.yaml when present)" short:"c" env:"SITEBUNDLE_CONFIG"`
	Root   string `help:"override the directory pages are discovered under" env:"SITEBUNDLE_ROOT"`
	OutDir string `help:"override the output directory" env:"SITEBUNDLE_OUT_DIR"`
	Base   string `help:"override the public base path for assets" env:"SITEBUNDLE_BASE"`
}

// Load reads the config and applies the flag overrides. Overridden paths are
// relative to the working directory.
func (f *ConfigFlags) Load() (config.Config, error) {
	cfg, err := config.Load(f.Config)
	if err != nil {
		return cfg, err
	}

	if f.Root != "" {
		if cfg.Root, err = filepath.Abs(f.Root); err != nil {
			return cfg, err
		}
	}
	if f.OutDir != "" {
		if cfg.OutDir, err = filepath.Abs(f.OutDir); err != nil {
			return cfg, err
		}
	}
	if f.Base != "" {
		cfg.Base = f.Base
	}

	return cfg, nil
}

func stdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
