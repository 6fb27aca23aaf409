package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/sitebundle/internal/config"
	"github.com/wolfeidau/sitebundle/internal/logger"
	"github.com/wolfeidau/sitebundle/internal/site"
)

// BuildCmd runs a single build.
type BuildCmd struct {
	ConfigFlags

	Stdout io.Writer `kong:"-"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := c.Load()
	if err != nil {
		return err
	}

	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	log.Debug().Str("version", globals.Version).Str("root", cfg.RootDir()).Str("out_dir", cfg.OutputDir()).Msg("Starting build")

	report, err := site.New(cfg).Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	printReport(stdout(c.Stdout), cfg, report)
	return nil
}

func printReport(out io.Writer, cfg config.Config, report *site.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSOURCE\tOUTPUT")

	for _, key := range report.Entries.Keys() {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			key,
			relPath(cfg.RootDir(), report.Entries[key]),
			relPath(cfg.Dir(), site.OutputPath(cfg.OutputDir(), key)),
		)
	}
	w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Built %d pages and %d assets in %s\n", len(report.Pages), len(report.Assets), report.Duration.Round(time.Millisecond))
}

func relPath(base, p string) string {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return p
	}
	return rel
}
