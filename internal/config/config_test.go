package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "dumps", cfg.Dumps.Dir)
	assert.Equal(t, "commonswiki-latest-linktarget.sql.gz", cfg.Dumps.LinkTargetFile)
	assert.Equal(t, "categories.txt", cfg.Categories.File)
	assert.True(t, cfg.Categories.Recursive)
	assert.Equal(t, "https://commons.wikimedia.org", cfg.Download.BaseURL)
	assert.Equal(t, 10, cfg.Download.Workers)
	assert.Equal(t, 20, cfg.Download.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Download.MaxRetries)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestConfigPaths(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, filepath.Join("dumps", "commonswiki-latest-linktarget.sql.gz"), cfg.LinkTargetPath())
	assert.Equal(t, filepath.Join("dumps", "commonswiki-latest-categorylinks.sql.gz"), cfg.CategoryLinksPath())
	assert.Equal(t, filepath.Join("dumps", "commonswiki-latest-page.sql.gz"), cfg.PagePath())
	assert.Equal(t, filepath.Join("checkpoint", "index.json"), cfg.IndexPath())
	assert.Equal(t, filepath.Join("checkpoint", "invalid.txt"), cfg.FailureLogPath())
	assert.Equal(t, filepath.Join("checkpoint", "cwbd.lock"), cfg.LockPath())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadYAMLFile(t *testing.T) {
	content := `
dumps:
  dir: /data/dumps
categories:
  file: my-cats.txt
  recursive: false
download:
  workers: 4
  output_dir: /data/media
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "cwbd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/dumps", cfg.Dumps.Dir)
	assert.Equal(t, "my-cats.txt", cfg.Categories.File)
	assert.False(t, cfg.Categories.Recursive)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.Equal(t, "/data/media", cfg.Download.OutputDir)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields keep their defaults.
	assert.Equal(t, "https://commons.wikimedia.org", cfg.Download.BaseURL)
	assert.Equal(t, 5, cfg.Download.MaxRetries)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cwbd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dumps: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvVarSubstitution(t *testing.T) {
	t.Setenv("CWBD_TEST_PASS", "s3cret")
	t.Setenv("CWBD_TEST_DIR", "/mnt/dumps")

	content := `
dumps:
  dir: ${CWBD_TEST_DIR}
database:
  password: ${CWBD_TEST_PASS}
  user: $CWBD_TEST_UNSET
`
	path := filepath.Join(t.TempDir(), "cwbd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/mnt/dumps", cfg.Dumps.Dir)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "$CWBD_TEST_UNSET", cfg.Database.User, "unset vars are left as-is")
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()
	recursive := false

	cfg.ApplyOverrides("debug", "json", 20, "cats.txt", "/d", "/out", &recursive)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 20, cfg.Download.Workers)
	assert.Equal(t, "cats.txt", cfg.Categories.File)
	assert.Equal(t, "/d", cfg.Dumps.Dir)
	assert.Equal(t, "/out", cfg.Download.OutputDir)
	assert.False(t, cfg.Categories.Recursive)
}

func TestApplyOverridesZeroValuesIgnored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyOverrides("", "", 0, "", "", "", nil)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidateDumpSource(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"missing category file", func(c *Config) { c.Categories.File = "" }, "categories.file"},
		{"missing dumps dir", func(c *Config) { c.Dumps.Dir = "" }, "dumps.dir"},
		{"missing page dump", func(c *Config) { c.Dumps.PageFile = "" }, "dumps.page_file"},
		{"missing output dir", func(c *Config) { c.Download.OutputDir = "" }, "download.output_dir"},
		{"bad base url", func(c *Config) { c.Download.BaseURL = "ftp://x" }, "download.base_url"},
		{"zero workers", func(c *Config) { c.Download.Workers = 0 }, "download.workers"},
		{"zero timeout", func(c *Config) { c.Download.TimeoutSeconds = 0 }, "download.timeout_seconds"},
		{"zero retries", func(c *Config) { c.Download.MaxRetries = 0 }, "download.max_retries"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDatabaseSource(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.Database.Enabled = true
		cfg.Database.Host = "replica.local"
		cfg.Database.User = "wiki"
		cfg.Database.Database = "commonswiki"
		return cfg
	}

	assert.NoError(t, base().Validate())

	// Dump fields are not required when the replica is the source.
	cfg := base()
	cfg.Dumps = DumpsConfig{}
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Database.Host = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")

	cfg = base()
	cfg.Database.Port = 70000
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.port")

	cfg = base()
	cfg.Database.TLS = "maybe"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.tls")
}

func TestValidationErrorsFormat(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Message: "is bad"},
		{Field: "b", Message: "is worse"},
	}
	msg := errs.Error()
	assert.Contains(t, msg, "validation failed")
	assert.Contains(t, msg, "a: is bad")
	assert.Contains(t, msg, "b: is worse")

	assert.Equal(t, "", ValidationErrors{}.Error())
}
