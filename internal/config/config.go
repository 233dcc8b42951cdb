// Package config provides configuration structures and loading for cwbd.
package config

import "path/filepath"

// Config represents the complete application configuration.
type Config struct {
	Dumps      DumpsConfig      `yaml:"dumps" mapstructure:"dumps"`
	Categories CategoriesConfig `yaml:"categories" mapstructure:"categories"`
	Download   DownloadConfig   `yaml:"download" mapstructure:"download"`
	Index      IndexConfig      `yaml:"index" mapstructure:"index"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// DumpsConfig locates the three SQL dump files inside the dumps directory.
type DumpsConfig struct {
	Dir               string `yaml:"dir" mapstructure:"dir"`
	LinkTargetFile    string `yaml:"linktarget_file" mapstructure:"linktarget_file"`
	CategoryLinksFile string `yaml:"categorylinks_file" mapstructure:"categorylinks_file"`
	PageFile          string `yaml:"page_file" mapstructure:"page_file"`
}

// CategoriesConfig controls which categories are resolved and how.
type CategoriesConfig struct {
	File      string `yaml:"file" mapstructure:"file"`
	Recursive bool   `yaml:"recursive" mapstructure:"recursive"`
}

// DownloadConfig controls the download engine.
type DownloadConfig struct {
	OutputDir         string   `yaml:"output_dir" mapstructure:"output_dir"`
	BaseURL           string   `yaml:"base_url" mapstructure:"base_url"`
	Workers           int      `yaml:"workers" mapstructure:"workers"`
	TimeoutSeconds    int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries        int      `yaml:"max_retries" mapstructure:"max_retries"`
	FlushEvery        int      `yaml:"flush_every" mapstructure:"flush_every"`
	UserAgent         string   `yaml:"user_agent" mapstructure:"user_agent"`
	AllowedExtensions []string `yaml:"allowed_extensions" mapstructure:"allowed_extensions"`
}

// IndexConfig locates the persisted progress index and its sibling files.
type IndexConfig struct {
	CheckpointDir string `yaml:"checkpoint_dir" mapstructure:"checkpoint_dir"`
	IndexFile     string `yaml:"index_file" mapstructure:"index_file"`
	FailureLog    string `yaml:"failure_log" mapstructure:"failure_log"`
}

// DatabaseConfig represents the optional live MediaWiki replica used as a
// relation source instead of dump files.
type DatabaseConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TablePrefix        string `yaml:"table_prefix" mapstructure:"table_prefix"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Dumps: DumpsConfig{
			Dir:               "dumps",
			LinkTargetFile:    "commonswiki-latest-linktarget.sql.gz",
			CategoryLinksFile: "commonswiki-latest-categorylinks.sql.gz",
			PageFile:          "commonswiki-latest-page.sql.gz",
		},
		Categories: CategoriesConfig{
			File:      "categories.txt",
			Recursive: true,
		},
		Download: DownloadConfig{
			OutputDir:      "imgs",
			BaseURL:        "https://commons.wikimedia.org",
			Workers:        10,
			TimeoutSeconds: 20,
			MaxRetries:     5,
			FlushEvery:     25,
			UserAgent:      "cwbd/1.0 (bulk media downloader)",
		},
		Index: IndexConfig{
			CheckpointDir: "checkpoint",
			IndexFile:     "index.json",
			FailureLog:    "invalid.txt",
		},
		Database: DatabaseConfig{
			Enabled:            false,
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// LinkTargetPath returns the full path to the linktarget dump.
func (c *Config) LinkTargetPath() string {
	return filepath.Join(c.Dumps.Dir, c.Dumps.LinkTargetFile)
}

// CategoryLinksPath returns the full path to the categorylinks dump.
func (c *Config) CategoryLinksPath() string {
	return filepath.Join(c.Dumps.Dir, c.Dumps.CategoryLinksFile)
}

// PagePath returns the full path to the page dump.
func (c *Config) PagePath() string {
	return filepath.Join(c.Dumps.Dir, c.Dumps.PageFile)
}

// IndexPath returns the full path to the persisted progress index.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Index.CheckpointDir, c.Index.IndexFile)
}

// FailureLogPath returns the full path to the append-only failure log.
func (c *Config) FailureLogPath() string {
	return filepath.Join(c.Index.CheckpointDir, c.Index.FailureLog)
}

// LockPath returns the full path to the run lock file guarding the index.
func (c *Config) LockPath() string {
	return filepath.Join(c.Index.CheckpointDir, "cwbd.lock")
}

// ApplyOverrides applies non-zero CLI flag values over the loaded config.
func (c *Config) ApplyOverrides(logLevel, logFormat string, workers int,
	categoryFile, dumpsDir, outputDir string, recursive *bool) {

	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if workers > 0 {
		c.Download.Workers = workers
	}
	if categoryFile != "" {
		c.Categories.File = categoryFile
	}
	if dumpsDir != "" {
		c.Dumps.Dir = dumpsDir
	}
	if outputDir != "" {
		c.Download.OutputDir = outputDir
	}
	if recursive != nil {
		c.Categories.Recursive = *recursive
	}
}
