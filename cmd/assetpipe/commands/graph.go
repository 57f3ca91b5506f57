package commands

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/daemon"
)

// GraphCmd implements the 'graph' command.
type GraphCmd struct {
	Format string `short:"f" help:"Output format: text, dot" default:"text" enum:"text,dot"`
}

func (c *GraphCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	p, err := daemon.NewPipeline(daemon.Options{Root: root.Dir, Config: cfg, Mode: root.Mode()}, nil, nil)
	if err != nil {
		return err
	}
	plan := p.Orchestrator.Plan()
	if c.Format == "dot" {
		return build.WriteDOT(g.Out, plan)
	}
	if err := build.WriteTree(g.Out, plan); err != nil {
		return err
	}
	order, err := build.TopologicalOrder(plan)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(g.Out, "\norder: %s\n", strings.Join(order, " -> "))
	return err
}
