// Package commands holds the kong command tree of the assetpipe binary.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// Global is bound into every command's Run.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// CLI is the root of the command tree.
type CLI struct {
	Production bool             `help:"Build optimized assets" env:"ASSETPIPE_PRODUCTION"`
	Verbose    bool             `short:"v" help:"Enable verbose logging"`
	LogFormat  string           `name:"log-format" help:"Log output format (text, json); overrides the config file" placeholder:"text|json"`
	Config     string           `short:"c" help:"Configuration file path (default: <dir>/assetpipe.yaml when present)" type:"path"`
	Dir        string           `short:"C" help:"Project root" default:"." type:"existingdir"`
	Version    kong.VersionFlag `name:"version" help:"Show version and exit"`

	Dev   DevCmd   `cmd:"" default:"1" help:"Build, then watch sources and serve with live reload (default)"`
	Build BuildCmd `cmd:"" help:"Run one full build and exit"`
	Graph GraphCmd `cmd:"" help:"Print the build task plan"`

	global *Global
}

// AfterApply installs the process logger once flags are parsed.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := config.LogLevelInfo
	if c.Verbose {
		level = config.LogLevelDebug
	}
	g.Logger = config.NewLogger(os.Stderr, level, config.NormalizeLogFormat(c.LogFormat))
	slog.SetDefault(g.Logger)
	c.global = g
	return nil
}

// Mode resolves the build mode from --production.
func (c *CLI) Mode() config.Mode { return config.ModeFromFlag(c.Production) }

// LoadConfig loads the project configuration. A level or format set in the file
// applies unless overridden on the command line.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Dir, c.Config)
	if err != nil {
		return nil, err
	}
	if c.global != nil {
		level := cfg.Logging.Level
		if c.Verbose {
			level = config.LogLevelDebug
		}
		format := cfg.Logging.Format
		if c.LogFormat != "" {
			format = config.NormalizeLogFormat(c.LogFormat)
		}
		c.global.Logger = config.NewLogger(os.Stderr, level, format)
		slog.SetDefault(c.global.Logger)
	}
	return cfg, nil
}
