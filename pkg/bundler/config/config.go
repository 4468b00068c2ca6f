package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/edgeops/opsctl/pkg/discovery"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/edgeops/opsctl/pkg/serializer"
)

const (
	// DefaultLogAge is how far back logs and traces are collected.
	DefaultLogAge = 24 * time.Hour
	// DefaultWorkers bounds how many services are collected concurrently.
	DefaultWorkers = 4
	// DefaultLogConcurrency bounds concurrent log streams within one service.
	DefaultLogConcurrency = 4
)

// Config is the bundle request. It is immutable after creation and safe
// for concurrent use.
type Config struct {
	opsService     opsservice.Type
	logAge         time.Duration
	includeTraces  bool
	bundleDir      string
	kubeContext    string
	kubeconfig     string
	namespace      string
	catalogPath    string
	workers        int
	logConcurrency int
	qps            float64
	burst          int
	toolName       string
	toolVersion    string
	outputFormat   serializer.Format
}

// Option is a functional option for configuring Config instances.
type Option func(*Config)

// NewConfig creates a Config with defaults and applies opts.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		opsService:     opsservice.TypeAuto,
		logAge:         DefaultLogAge,
		workers:        DefaultWorkers,
		logConcurrency: DefaultLogConcurrency,
		qps:            discovery.DefaultQPS,
		burst:          discovery.DefaultBurst,
		toolName:       "opsctl",
		toolVersion:    "dev",
		outputFormat:   serializer.FormatYAML,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithOpsService sets the service scope.
func WithOpsService(t opsservice.Type) Option {
	return func(c *Config) { c.opsService = t }
}

// WithLogAge sets the log and trace window.
func WithLogAge(d time.Duration) Option {
	return func(c *Config) { c.logAge = d }
}

// WithLogAgeSeconds sets the log and trace window in whole seconds.
func WithLogAgeSeconds(s int) Option {
	return WithLogAge(time.Duration(s) * time.Second)
}

// WithIncludeTraces enables broker trace collection.
func WithIncludeTraces(v bool) Option {
	return func(c *Config) { c.includeTraces = v }
}

// WithBundleDir sets the directory the archive is written to.
func WithBundleDir(dir string) Option {
	return func(c *Config) { c.bundleDir = dir }
}

// WithKubeContext selects a kubeconfig context.
func WithKubeContext(name string) Option {
	return func(c *Config) { c.kubeContext = name }
}

// WithKubeconfig sets an explicit kubeconfig path.
func WithKubeconfig(path string) Option {
	return func(c *Config) { c.kubeconfig = path }
}

// WithNamespace overrides platform namespace detection.
func WithNamespace(ns string) Option {
	return func(c *Config) { c.namespace = ns }
}

// WithCatalogPath replaces the embedded service catalog with a file.
func WithCatalogPath(path string) Option {
	return func(c *Config) { c.catalogPath = path }
}

// WithWorkers bounds concurrent service collection.
func WithWorkers(n int) Option {
	return func(c *Config) { c.workers = n }
}

// WithLogConcurrency bounds concurrent log streams per service.
func WithLogConcurrency(n int) Option {
	return func(c *Config) { c.logConcurrency = n }
}

// WithAPIRateLimit sets the cluster API rate limit.
func WithAPIRateLimit(qps float64, burst int) Option {
	return func(c *Config) {
		c.qps = qps
		c.burst = burst
	}
}

// WithTool records the tool name and version in the bundle metadata.
func WithTool(name, version string) Option {
	return func(c *Config) {
		if name != "" {
			c.toolName = name
		}
		if version != "" {
			c.toolVersion = version
		}
	}
}

// WithOutputFormat sets the format of the printed result.
func WithOutputFormat(f serializer.Format) Option {
	return func(c *Config) { c.outputFormat = f }
}

func (c *Config) OpsService() opsservice.Type      { return c.opsService }
func (c *Config) LogAge() time.Duration            { return c.logAge }
func (c *Config) LogAgeSeconds() int64             { return int64(c.logAge / time.Second) }
func (c *Config) IncludeTraces() bool              { return c.includeTraces }
func (c *Config) BundleDir() string                { return c.bundleDir }
func (c *Config) KubeContext() string              { return c.kubeContext }
func (c *Config) Kubeconfig() string               { return c.kubeconfig }
func (c *Config) Namespace() string                { return c.namespace }
func (c *Config) CatalogPath() string              { return c.catalogPath }
func (c *Config) Workers() int                     { return c.workers }
func (c *Config) LogConcurrency() int              { return c.logConcurrency }
func (c *Config) QPS() float64                     { return c.qps }
func (c *Config) Burst() int                       { return c.burst }
func (c *Config) ToolName() string                 { return c.toolName }
func (c *Config) ToolVersion() string              { return c.toolVersion }
func (c *Config) OutputFormat() serializer.Format { return c.outputFormat }

// ResolvedBundleDir returns the absolute archive directory. An empty bundle
// dir resolves to the working directory.
func (c *Config) ResolvedBundleDir() (string, error) {
	dir := c.bundleDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve bundle dir %q: %w", dir, err)
	}
	return abs, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !c.opsService.IsValid() {
		return fmt.Errorf("invalid ops service %q (valid: %v)", c.opsService, opsservice.SupportedAsStrings())
	}
	if c.logAge < time.Second {
		return fmt.Errorf("log age must be at least 1 second, got %s", c.logAge)
	}
	if c.workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.workers)
	}
	if c.logConcurrency < 1 {
		return fmt.Errorf("log concurrency must be positive, got %d", c.logConcurrency)
	}
	if c.qps <= 0 || c.burst < 1 {
		return fmt.Errorf("api rate limit must be positive, got qps=%v burst=%d", c.qps, c.burst)
	}
	if c.outputFormat.IsUnknown() {
		return fmt.Errorf("invalid output format %q (valid: %v)", c.outputFormat, serializer.SupportedFormats())
	}
	return nil
}
