// Package daemon wires the pipeline together: a one-shot build, or a build
// followed by watching, rebuilding and serving until interrupted.
package daemon

import (
	"context"
	"log/slog"
	"path/filepath"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/assets"
	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/events"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/server"
	"git.home.luguber.info/inful/assetpipe/internal/stages"
	"git.home.luguber.info/inful/assetpipe/internal/transform/js"
	"git.home.luguber.info/inful/assetpipe/internal/transform/sass"
	"git.home.luguber.info/inful/assetpipe/internal/watch"
)

// changeBuffer bounds how far the watcher may run ahead of a subscriber.
const changeBuffer = 64

// Options configures a build or dev session.
type Options struct {
	Root   string
	Config *config.Config
	Mode   config.Mode
	// Compiler and Bundler replace the default collaborators when set.
	Compiler sass.Compiler
	Bundler  js.Bundler
	// OnReady is called with the server URL once the dev loop is serving.
	OnReady func(url string)
}

// Pipeline holds the components shared by every entry point.
type Pipeline struct {
	Table        *assets.Table
	Stages       *stages.Set
	Orchestrator *build.Orchestrator
	Recorder     metrics.Recorder
}

// NewPipeline builds the path table, the stages and the orchestrator. Stage output
// is reported to notifier when non-nil.
func NewPipeline(opts Options, rec metrics.Recorder, notifier pipeline.Notifier) (*Pipeline, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, ferrors.FileSystemError("failed to resolve project root").WithCause(err).WithPath(opts.Root).Build()
	}
	rec = metrics.OrNoop(rec)
	table := assets.NewTable(root, opts.Config)
	set, err := stages.New(table, opts.Config, opts.Mode, stages.Deps{
		Compiler: opts.Compiler,
		Bundler:  opts.Bundler,
		Notifier: notifier,
		Recorder: rec,
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Table:        table,
		Stages:       set,
		Orchestrator: build.NewOrchestrator(table, set, opts.Mode, build.WithRecorder(rec)),
		Recorder:     rec,
	}, nil
}

// Build runs one full build.
func Build(ctx context.Context, opts Options) (*build.Report, error) {
	p, err := NewPipeline(opts, nil, nil)
	if err != nil {
		return nil, err
	}
	return p.Orchestrator.Build(ctx)
}

// RunDev builds once and then watches, rebuilds and serves until ctx is done.
// Stage failures during the initial build are logged and the loop starts anyway;
// a failure to clean the destination aborts.
func RunDev(ctx context.Context, opts Options) error {
	cfg := opts.Config
	log := logfields.Logger(ctx)

	var (
		reg *prom.Registry
		rec metrics.Recorder = metrics.NoopRecorder{}
	)
	if cfg.Server.Metrics {
		reg = prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(reg)
	}

	var (
		hub      *server.LiveReloadHub
		reloader *server.Reloader
		notifier pipeline.Notifier
	)
	if !cfg.Server.DisableLiveReload {
		hub = server.NewLiveReloadHub(rec, 0)
		reloader = server.NewReloader(hub, cfg.Server.ReloadDelay)
		notifier = reloader
	}

	p, err := NewPipeline(opts, rec, notifier)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		Dir:      p.Table.Abs(p.Table.DestBase()),
		Hub:      hub,
		Registry: reg,
		Logger:   log,
	})
	if err := srv.Listen(ctx); err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if _, err := p.Orchestrator.Build(ctx); err != nil {
		if ctx.Err() != nil || p.Orchestrator.State() == build.StateFailed {
			return err
		}
		log.Warn("Initial build finished with errors; watching for fixes")
	}

	bus := events.NewBus()
	defer bus.Close()
	source, err := watch.NewFSSource(p.Table, bus, rec)
	if err != nil {
		return err
	}
	coordinator := watch.NewCoordinator(p.Stages)
	changes, unsubscribe := events.Subscribe[events.ChangeEvent](bus, changeBuffer)
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return source.Run(gctx) })
	g.Go(func() error { return coordinator.Run(gctx, changes) })
	if reloader != nil {
		reloads, unsubscribeReloads := events.Subscribe[events.ChangeEvent](bus, changeBuffer)
		defer unsubscribeReloads()
		g.Go(func() error { return reloader.Run(gctx, reloads) })
	}
	g.Go(func() error { return srv.Serve(gctx) })

	log.Info("Watching for changes", slog.Any("roots", p.Table.WatchRoots()))
	if opts.OnReady != nil {
		opts.OnReady(srv.URL())
	}
	return g.Wait()
}
