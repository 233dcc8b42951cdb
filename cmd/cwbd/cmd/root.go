package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile      string
	logLevel     string
	logFormat    string
	workers      int
	categoryFile string
	dumpsDir     string
	outputDir    string
	recursive    bool
)

var rootCmd = &cobra.Command{
	Use:   "cwbd",
	Short: "Wikimedia Commons bulk media downloader",
	Long: `A CLI tool for bulk-downloading media files from Wikimedia Commons
by category, driven by the public SQL dumps.

Features:
  - Streaming extraction from linktarget, categorylinks and page dumps
  - Recursive subcategory resolution with cycle detection
  - Resumable progress index: interrupted runs continue where they stopped
  - Bounded concurrent downloads with adaptive rate limiting`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "cwbd.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Pipeline overrides
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0,
		"Override number of concurrent download workers")
	rootCmd.PersistentFlags().StringVar(&categoryFile, "categories", "",
		"Override path to the category list file")
	rootCmd.PersistentFlags().StringVar(&dumpsDir, "dumps-dir", "",
		"Override directory containing the SQL dump files")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "",
		"Override directory downloaded files are written to")
	rootCmd.PersistentFlags().BoolVar(&recursive, "recursive", true,
		"Resolve subcategories recursively")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel     string
	LogFormat    string
	Workers      int
	CategoryFile string
	DumpsDir     string
	OutputDir    string
	// Recursive is nil when the flag was not set on the command line.
	Recursive *bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	overrides := CLIOverrides{
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		Workers:      workers,
		CategoryFile: categoryFile,
		DumpsDir:     dumpsDir,
		OutputDir:    outputDir,
	}
	if rootCmd.PersistentFlags().Changed("recursive") {
		r := recursive
		overrides.Recursive = &r
	}
	return overrides
}
