package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wolfeidau/sitebundle/internal/logger"
	"github.com/wolfeidau/sitebundle/internal/site"
)

// EntriesCmd prints the entry map without building.
type EntriesCmd struct {
	ConfigFlags
	JSON bool `help:"print the entry map as JSON" default:"false"`

	Stdout io.Writer `kong:"-"`
}

func (c *EntriesCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := c.Load()
	if err != nil {
		return err
	}

	log := logger.Setup(globals.Debug)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	res, err := site.New(cfg).Resolve()
	if err != nil {
		return err
	}

	for _, col := range res.Collisions {
		log.Warn().Str("key", col.Key).Str("kept", col.Kept).Str("dropped", col.Dropped).Msg("Duplicate entry key, later file wins")
	}

	out := stdout(c.Stdout)

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Entries)
	}

	if len(res.Entries) == 0 {
		fmt.Fprintf(out, "No pages found under %s\n", cfg.RootDir())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tFILE")
	for _, key := range res.Entries.Keys() {
		fmt.Fprintf(w, "%s\t%s\n", key, relPath(cfg.RootDir(), res.Entries[key]))
	}
	return w.Flush()
}
