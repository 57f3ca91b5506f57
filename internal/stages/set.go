package stages

import (
	"path"

	"git.home.luguber.info/inful/assetpipe/internal/assets"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/transform/css"
	"git.home.luguber.info/inful/assetpipe/internal/transform/font"
	"git.home.luguber.info/inful/assetpipe/internal/transform/imageopt"
	"git.home.luguber.info/inful/assetpipe/internal/transform/include"
	"git.home.luguber.info/inful/assetpipe/internal/transform/js"
	"git.home.luguber.info/inful/assetpipe/internal/transform/sass"
	"git.home.luguber.info/inful/assetpipe/internal/transform/sprite"
)

// Stage names.
const (
	NameMarkup     = "markup"
	NameStyles     = "styles"
	NameScripts    = "scripts"
	NameFontsWOFF  = "fonts-woff"
	NameFontsWOFF2 = "fonts-woff2"
	NameFontsTTF   = "fonts-ttf"
	NameImages     = "images"
	NameSprites    = "sprites"
)

// Deps are the collaborators shared by all stages. Nil fields get defaults:
// the sass binary, the esbuild bundler, no notifier and no metrics.
type Deps struct {
	Compiler sass.Compiler
	Bundler  js.Bundler
	Notifier pipeline.Notifier
	Recorder metrics.Recorder
}

// Set holds the stages of one project in declaration order.
type Set struct {
	stages     []*Stage
	byName     map[string]*Stage
	byCategory map[assets.Category][]*Stage
}

// New builds every stage for the given mode. Mode only flips optional steps
// between their real effect and the identity bridge.
func New(table *assets.Table, cfg *config.Config, mode config.Mode, deps Deps) (*Set, error) {
	engines, err := css.ParseEngines(cfg.Tools.Browsers)
	if err != nil {
		return nil, err
	}
	target, err := js.ParseTarget(cfg.Tools.ScriptTarget)
	if err != nil {
		return nil, err
	}
	if deps.Compiler == nil {
		deps.Compiler = &sass.BinaryCompiler{Binary: cfg.Tools.Sass, LoadPaths: cfg.Tools.SassLoadPaths, Root: table.Root()}
	}
	if deps.Bundler == nil {
		deps.Bundler = &js.ESBuildBundler{Root: table.Root(), Target: target}
	}
	rec := metrics.OrNoop(deps.Recorder)
	prod := mode.IsProduction()

	dest := func(c assets.Category) string { return table.Abs(table.Lookup(c).Dest) }
	served := table.Abs(table.DestBase())
	minSuffix := cfg.Dist.MinSuffix

	set := &Set{byName: map[string]*Stage{}, byCategory: map[assets.Category][]*Stage{}}
	add := func(name string, c assets.Category, scope Scope, chain pipeline.Chain) {
		st := &Stage{Name: name, Category: c, Chain: chain, Scope: scope, table: table, recorder: rec}
		set.stages = append(set.stages, st)
		set.byName[name] = st
		set.byCategory[c] = append(set.byCategory[c], st)
	}

	add(NameMarkup, assets.Markup, Aggregate, pipeline.NewBuilder().
		Add(include.New(table.Root()).Step("include")).
		Add(pipeline.Write("write", dest(assets.Markup))).
		Add(pipeline.Stream("stream", deps.Notifier, served)).
		Build())

	cssMin := css.NewMinifier()
	add(NameStyles, assets.Styles, Aggregate, pipeline.NewBuilder().
		Add(sass.Step("compile", table.Root(), deps.Compiler)).
		AddIf(prod, css.NewPrefixer(engines).Step("autoprefix")).
		Add(pipeline.Write("write", dest(assets.Styles))).
		AddIf(prod, cssMin.Step("minify")).
		Add(pipeline.Rename("rename", minSuffix)).
		Add(pipeline.Write("write-min", dest(assets.Styles))).
		Add(pipeline.Stream("stream", deps.Notifier, served)).
		Build())

	scripts := table.Lookup(assets.Scripts)
	add(NameScripts, assets.Scripts, Aggregate, pipeline.NewBuilder().
		Add(js.BundleStep("bundle", deps.Bundler, table.Root(), scripts.Entry, dest(assets.Scripts), cfg.Dist.ScriptName)).
		Add(pipeline.Write("write", dest(assets.Scripts))).
		AddIf(prod, js.NewMinifier().Step("minify")).
		Add(pipeline.Rename("rename", minSuffix)).
		Add(pipeline.Write("write-min", dest(assets.Scripts))).
		Add(pipeline.Stream("stream", deps.Notifier, served)).
		Build())

	fonts := dest(assets.Fonts)
	add(NameFontsWOFF, assets.Fonts, PerFile, pipeline.NewBuilder().
		Add(font.WOFFStep("woff")).
		Add(pipeline.Write("write", fonts)).
		Build())
	add(NameFontsWOFF2, assets.Fonts, PerFile, pipeline.NewBuilder().
		Add(font.WOFF2Step("woff2")).
		Add(pipeline.Write("write", fonts)).
		Build())
	add(NameFontsTTF, assets.Fonts, PerFile, pipeline.NewBuilder().
		Add(pipeline.Write("write", fonts)).
		Build())

	images := dest(assets.RasterImages)
	add(NameImages, assets.RasterImages, PerFile, pipeline.NewBuilder().
		AddIf(prod, imageopt.NewerStep("newer", images)).
		AddIf(prod, imageopt.NewOptimizer(cfg.Images.JPEGQuality).Step("optimize")).
		Add(pipeline.Write("write", images)).
		AddIf(prod, imageopt.NewWebPEncoder(cfg.Images.WebPQuality).Step("webp")).
		Add(pipeline.WriteIf("write-webp", images, imageopt.IsWebP)).
		Build())

	add(NameSprites, assets.VectorSprites, Aggregate, pipeline.NewBuilder().
		Add(sprite.Step("sprite", path.Clean(table.SpriteFile()))).
		Add(pipeline.Write("write", dest(assets.VectorSprites))).
		Build())

	return set, nil
}

// All returns every stage in declaration order.
func (s *Set) All() []*Stage {
	out := make([]*Stage, len(s.stages))
	copy(out, s.stages)
	return out
}

// For returns the stages owning category c; Fonts has three.
func (s *Set) For(c assets.Category) []*Stage {
	return s.byCategory[c]
}

// Get returns the stage with the given name, or nil.
func (s *Set) Get(name string) *Stage {
	return s.byName[name]
}
