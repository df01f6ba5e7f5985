package packager

import (
	"fmt"
	"runtime"
)

// Constants for file processing.
const (
	// ChunkSize is the read size used when encoding binary payloads.
	ChunkSize = 8192

	// SniffSize is how many leading bytes the classifier inspects when a
	// file's name and extension are both unknown.
	SniffSize = 1024

	// DefaultMaxFileSize is the per-file content cutoff in bytes.
	DefaultMaxFileSize = 100_000

	// MaxTokensPerDocument and CharsPerToken derive the default per-document
	// serialized size budget from a practical model context limit.
	MaxTokensPerDocument = 100_000
	CharsPerToken        = 4

	// DefaultBatchBudget is the default serialized size budget per output
	// document, in bytes.
	DefaultBatchBudget = MaxTokensPerDocument * CharsPerToken
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
)

// Config holds the options for one packaging run.
type Config struct {
	Root        string // project directory to package
	Output      string // output document path; parts derive from it
	Format      string // "json" or "xml"
	MaxFileSize int64  // maximum size of individual files to include (bytes)
	BatchBudget int    // serialized size budget per output document (bytes)
	Workers     int    // number of concurrent content readers
	CountTokens bool   // annotate text files with model token counts
}

// ApplyDefaults fills zero values with run defaults.
func (c *Config) ApplyDefaults() {
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == "" {
		c.Output = DefaultOutputName(c.Format)
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.BatchBudget <= 0 {
		c.BatchBudget = DefaultBatchBudget
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate rejects configurations that cannot produce output.
func (c *Config) Validate() error {
	if c.Format != FormatJSON && c.Format != FormatXML {
		return fmt.Errorf("unsupported output format %q (want %s or %s)", c.Format, FormatJSON, FormatXML)
	}
	return nil
}

// DefaultOutputName returns the default bundle name for a format.
func DefaultOutputName(format string) string {
	return "project-bundle." + format
}
