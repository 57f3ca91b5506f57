package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/daemon"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// DevCmd implements the default command: build, then watch and serve in the
// resolved mode.
type DevCmd struct {
	Port   int  `short:"p" help:"Override the dev server port"`
	NoLive bool `name:"no-live-reload" help:"Serve without injecting the live reload client"`
}

func (d *DevCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if d.Port != 0 {
		cfg.Server.Port = d.Port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if d.NoLive {
		cfg.Server.DisableLiveReload = true
	}

	ctx = logfields.WithLogger(ctx, g.Logger)
	return daemon.RunDev(ctx, daemon.Options{
		Root:   root.Dir,
		Config: cfg,
		Mode:   root.Mode(),
		OnReady: func(url string) {
			_, _ = fmt.Fprintf(g.Out, "Serving %s\n", url)
		},
	})
}
