package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "src/images/**/*.{png,jpg,jpeg,gif,svg}", cfg.Source.Pictures)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, DefaultFileName), `
source:
  markup: ./pages/*.html
dist:
  base: public
  styles: public/css
  scripts: public/js
  fonts: public/fonts
  images: public/img
server:
  port: 8080
  reload_delay: 1s
logging:
  level: DEBUG
  format: Json
`)

	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, "pages/*.html", cfg.Source.Markup)
	assert.Equal(t, "src/scss/*.scss", cfg.Source.Styles, "unset fields keep their default")
	assert.Equal(t, "public/img", cfg.Dist.Images)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Server.ReloadDelay)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestLoad_EnvFileExpansion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "ASSETPIPE_TEST_PORT=4100\n")
	writeFile(t, filepath.Join(root, DefaultFileName), "server:\n  port: ${ASSETPIPE_TEST_PORT}\n")
	t.Cleanup(func() { _ = os.Unsetenv("ASSETPIPE_TEST_PORT") })

	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Server.Port)
}

func TestLoad_ExistingEnvWins(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ASSETPIPE_TEST_HOST", "0.0.0.0")
	writeFile(t, filepath.Join(root, ".env"), "ASSETPIPE_TEST_HOST=example.invalid\n")
	writeFile(t, filepath.Join(root, DefaultFileName), "server:\n  host: ${ASSETPIPE_TEST_HOST}\n")

	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_EmptyFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, DefaultFileName), "")

	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit path missing", func(t *testing.T) {
		_, err := Load(t.TempDir(), "nope.yaml")
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	})

	t.Run("unknown field", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, DefaultFileName), "server:\n  prot: 1\n")
		_, err := Load(root, "")
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	})

	t.Run("validation failure surfaces", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "custom.yaml"), "server:\n  port: 70000\n")
		_, err := Load(root, "custom.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"invalid glob", func(c *Config) { c.Source.Styles = "src/scss/[*.scss" }, false},
		{"empty glob", func(c *Config) { c.Source.Fonts = "" }, false},
		{"missing script entry", func(c *Config) { c.Source.ScriptEntry = "" }, false},
		{"dist base is root", func(c *Config) { c.Dist.Base = "." }, false},
		{"dist base escapes root", func(c *Config) { c.Dist.Base = "../out" }, false},
		{"dist base absolute", func(c *Config) { c.Dist.Base = "/tmp/dist" }, false},
		{"dist base inside source", func(c *Config) { c.Dist.Base = "src/dist" }, false},
		{"dist dir outside base", func(c *Config) { c.Dist.Styles = "css" }, false},
		{"dist dir shares prefix only", func(c *Config) { c.Dist.Fonts = "distfonts" }, false},
		{"sprite escapes images", func(c *Config) { c.Dist.SpriteFile = "../../sprite.svg" }, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, false},
		{"negative delay", func(c *Config) { c.Server.ReloadDelay = -time.Second }, false},
		{"jpeg quality", func(c *Config) { c.Images.JPEGQuality = 0 }, false},
		{"webp quality", func(c *Config) { c.Images.WebPQuality = 101 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestMode(t *testing.T) {
	assert.Equal(t, Production, ModeFromFlag(true))
	assert.Equal(t, Development, ModeFromFlag(false))
	assert.True(t, Production.IsProduction())
	assert.Equal(t, "development", Development.String())
	assert.Equal(t, "production", Production.String())
}

func TestNormalizeLogging(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel("Warning"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("verbose"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat(""))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat(" JSON "))
}

func TestLoad_UnreadableEnvFileIsLoggedWithCanonicalFields(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".env"), 0o755))

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, err := Load(root, "")
	require.NoError(t, err)

	var warned map[string]any
	for line := range bytes.SplitSeq(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		if rec[slog.LevelKey] == "WARN" {
			warned = rec
		}
	}
	require.NotNil(t, warned, "expected a warning for the unreadable env file")
	assert.Equal(t, filepath.Join(root, ".env"), warned[logfields.KeyPath])
	assert.NotEmpty(t, warned[logfields.KeyError])
}
