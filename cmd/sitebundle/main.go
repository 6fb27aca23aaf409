package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/sitebundle/cmd/sitebundle/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build   commands.BuildCmd   `cmd:"" help:"Build the site into the output directory"`
		Entries commands.EntriesCmd `cmd:"" help:"List the pages discovered under the root"`
		Serve   commands.ServeCmd   `cmd:"" help:"Build, watch for changes and serve the site"`
		Debug   bool                `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("sitebundle"),
		kong.Description("Bundle a multi-page static site."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
