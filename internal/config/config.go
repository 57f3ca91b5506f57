package config

import (
	"time"
)

// DefaultFileName is looked up in the project root when no --config is given.
const DefaultFileName = "assetpipe.yaml"

// Config holds the path table and the settings of every collaborator.
// It is built once at startup and treated as read-only afterwards.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Dist    DistConfig    `yaml:"dist"`
	Server  ServerConfig  `yaml:"server"`
	Tools   ToolsConfig   `yaml:"tools"`
	Images  ImagesConfig  `yaml:"images"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig lists the source globs, relative to the project root.
type SourceConfig struct {
	Base        string `yaml:"base"`
	Markup      string `yaml:"markup"`
	Styles      string `yaml:"styles"`
	Scripts     string `yaml:"scripts"`
	ScriptEntry string `yaml:"script_entry"`
	Fonts       string `yaml:"fonts"`
	Pictures    string `yaml:"pictures"`
	Sprites     string `yaml:"sprites"`
}

// DistConfig lists destination directories. All of them live beneath Base.
type DistConfig struct {
	Base       string `yaml:"base"`
	Styles     string `yaml:"styles"`
	Scripts    string `yaml:"scripts"`
	Fonts      string `yaml:"fonts"`
	Images     string `yaml:"images"`
	SpriteFile string `yaml:"sprite_file"`
	ScriptName string `yaml:"script_name"`
	MinSuffix  string `yaml:"min_suffix"`
}

type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ReloadDelay       time.Duration `yaml:"reload_delay"`
	DisableLiveReload bool          `yaml:"disable_live_reload"`
	Metrics           bool          `yaml:"metrics"`
}

// ToolsConfig configures the external transform collaborators.
type ToolsConfig struct {
	Sass          string   `yaml:"sass"`
	SassLoadPaths []string `yaml:"sass_load_paths"`
	ScriptTarget  string   `yaml:"script_target"`
	// Browsers are esbuild engine targets ("chrome80", "safari13") used for vendor prefixing.
	Browsers []string `yaml:"browsers"`
}

type ImagesConfig struct {
	JPEGQuality int     `yaml:"jpeg_quality"`
	WebPQuality float32 `yaml:"webp_quality"`
}

type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Default returns the built-in path table and settings.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Base:        "src",
			Markup:      "src/*.html",
			Styles:      "src/scss/*.scss",
			Scripts:     "src/js/**/*.js",
			ScriptEntry: "src/js/script.js",
			Fonts:       "src/fonts/*.ttf",
			Pictures:    "src/images/**/*.{png,jpg,jpeg,gif,svg}",
			Sprites:     "src/images/sprites/**/*.svg",
		},
		Dist: DistConfig{
			Base:       "dist",
			Styles:     "dist/css",
			Scripts:    "dist/js",
			Fonts:      "dist/fonts",
			Images:     "dist/images",
			SpriteFile: "sprite.svg",
			ScriptName: "script.js",
			MinSuffix:  ".min",
		},
		Server: ServerConfig{
			Host:        "localhost",
			Port:        3000,
			ReloadDelay: 300 * time.Millisecond,
			Metrics:     true,
		},
		Tools: ToolsConfig{
			Sass:         "sass",
			ScriptTarget: "es2015",
			Browsers:     []string{"chrome80", "edge80", "firefox78", "safari13", "ios13"},
		},
		Images: ImagesConfig{
			JPEGQuality: 70,
			WebPQuality: 75,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}
