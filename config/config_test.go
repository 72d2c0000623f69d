package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shiftbook/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shiftbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "shiftbook.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "USD", cfg.DefaultCurrency, "derived from en-US")
	assert.Equal(t, "day", cfg.SpecialToggle.OnEnableRemove)
	assert.Equal(t, "holiday", cfg.SpecialToggle.OnDisableRemove)
	assert.Empty(t, cfg.Backup.Dir)
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("SHIFTBOOK_TEST_DATA", "/var/lib/shiftbook")
	path := writeConfig(t, `
db_path: ${SHIFTBOOK_TEST_DATA}/data.db
listen_addr: 127.0.0.1:9999
locale: de-DE
log_level: DEBUG
log_format: json
allowed_origins: [http://localhost:4000]
backup:
  dir: ${SHIFTBOOK_TEST_DATA}/backups
  interval: 6h
  keep: 3
special_toggle:
  on_enable_remove: early
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/shiftbook/data.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"http://localhost:4000"}, cfg.AllowedOrigins)
	assert.Equal(t, "/var/lib/shiftbook/backups", cfg.Backup.Dir)
	assert.Equal(t, 6*time.Hour, cfg.Backup.Interval)
	assert.Equal(t, 3, cfg.Backup.Keep)
	assert.Equal(t, "early", cfg.SpecialToggle.OnEnableRemove)
	assert.Equal(t, "holiday", cfg.SpecialToggle.OnDisableRemove, "unset key keeps default")
}

func TestLoad_DotEnvFillsOnlyUnsetVariables(t *testing.T) {
	// GIVEN: a .env file in the working directory and one variable it names
	//   already set in the environment
	// WHEN: loading a YAML file that expands a .env variable
	// THEN: .env feeds both the expansion and the overrides, and never
	//   replaces the variable that was already set
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"SHIFTBOOK_DB_PATH=from-dotenv.db\nSHIFTBOOK_LOCALE=fr-FR\nSHIFTBOOK_TEST_DIR=/srv\n"), 0o600))
	path := writeConfig(t, "backup:\n  dir: ${SHIFTBOOK_TEST_DIR}/backups\n")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("SHIFTBOOK_DB_PATH", "from-env.db")
	// registered for cleanup, then unset so .env can fill them
	for _, k := range []string{"SHIFTBOOK_LOCALE", "SHIFTBOOK_TEST_DIR"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, "fr-FR", cfg.Locale)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.Equal(t, "/srv/backups", cfg.Backup.Dir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "db_path: from-file.db\ndefault_currency: eur\n")
	t.Setenv("SHIFTBOOK_DB_PATH", "from-env.db")
	t.Setenv("SHIFTBOOK_ALLOWED_ORIGINS", "http://a, http://b")
	t.Setenv("SHIFTBOOK_BACKUP_KEEP", "9")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowedOrigins)
	assert.Equal(t, 9, cfg.Backup.Keep)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "db_path: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("bad env duration", func(t *testing.T) {
		t.Setenv("SHIFTBOOK_BACKUP_INTERVAL", "often")
		_, err := config.Load("")
		assert.Error(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, `
default_currency: XXXX
log_format: xml
backup:
  dir: /tmp/b
  interval: 1s
  keep: 0
`))
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "default_currency")
		assert.Contains(t, msg, "log_format")
		assert.Contains(t, msg, "backup.interval")
		assert.Contains(t, msg, "backup.keep")
	})
}

func TestCurrencyForLocale(t *testing.T) {
	tests := map[string]string{
		"en-GB":          "GBP",
		"ja-JP":          "JPY",
		"fr-FR":          "EUR",
		"en-US":          "USD",
		"not a locale!!": "USD",
	}
	for locale, want := range tests {
		assert.Equal(t, want, config.CurrencyForLocale(locale), locale)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := config.ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = config.ParseLevel("loud")
	assert.Error(t, err)
}
