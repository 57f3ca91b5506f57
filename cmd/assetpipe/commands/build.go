package commands

import (
	"context"
	"fmt"
	"io"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/daemon"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct{}

func (b *BuildCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx = logfields.WithLogger(ctx, g.Logger)
	report, err := daemon.Build(ctx, daemon.Options{Root: root.Dir, Config: cfg, Mode: root.Mode()})
	if report != nil {
		printReport(g.Out, report)
	}
	return err
}

func printReport(w io.Writer, r *build.Report) {
	_, _ = fmt.Fprintf(w, "Build %s (%s) finished in %s\n", r.BuildID, r.Mode, r.Duration().Round(1e6))
	for _, s := range r.Stages {
		_, _ = fmt.Fprintf(w, "  %-12s %3d in  %3d out  %s\n", s.Stage, s.Inputs, len(s.Written), s.Duration.Round(1e5))
	}
	for _, name := range r.Failed {
		_, _ = fmt.Fprintf(w, "  %-12s FAILED\n", name)
	}
}
