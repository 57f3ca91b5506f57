package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Load resolves the configuration for the project rooted at root.
//
// An explicit configPath must exist. Without one, root/assetpipe.yaml is used when present and
// the built-in defaults otherwise. .env and .env.local in root are loaded first so the YAML can
// reference their variables; variables already set in the process win.
func Load(root, configPath string) (*Config, error) {
	loadEnvFiles(root)

	cfg := Default()
	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(root, DefaultFileName)
	} else if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(root, configPath)
	}

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err) && !explicit:
		slog.Debug("No configuration file, using defaults", logfields.Path(configPath))
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read configuration file").
			Fatal().WithPath(configPath).Build()
	default:
		if err := decode(data, cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse configuration file").
				Fatal().WithPath(configPath).Build()
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode expands environment references and unmarshals over the defaults already in cfg.
func decode(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty file
		}
		return err
	}
	return nil
}

func loadEnvFiles(root string) {
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Failed to load env file", logfields.Path(p), logfields.Error(err))
			continue
		}
		slog.Debug("Loaded environment variables", logfields.Path(p))
	}
}

// normalize rewrites every path into clean slash form without a leading "./".
func (c *Config) normalize() {
	for _, p := range []*string{
		&c.Source.Base, &c.Source.Markup, &c.Source.Styles, &c.Source.Scripts, &c.Source.ScriptEntry,
		&c.Source.Fonts, &c.Source.Pictures, &c.Source.Sprites,
		&c.Dist.Base, &c.Dist.Styles, &c.Dist.Scripts, &c.Dist.Fonts, &c.Dist.Images,
	} {
		*p = cleanSlash(*p)
	}
	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
}

func cleanSlash(p string) string {
	if p == "" {
		return ""
	}
	p = filepath.ToSlash(strings.TrimSpace(p))
	return path.Clean(strings.TrimPrefix(p, "./"))
}
