// Package config holds the explicit run configuration passed to every
// component: file and flag settings through viper, credentials through
// the environment only.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-annotate/internal/genebe"
	"github.com/inodb/vibe-annotate/internal/variant"
)

// Config file and environment naming.
const (
	FileName  = ".vibe-annotate"
	EnvPrefix = "VIBE_ANNOTATE"

	DefaultCacheFile = "annotation_cache.duckdb"
	DefaultOutputDir = "annotated"
	DefaultSortBy    = variant.InfoAF
)

// ErrMissingCredentials is returned when only one of the two service
// credentials is set.
var ErrMissingCredentials = errors.New("both GENEBE_USERNAME and GENEBE_API_KEY must be set")

// Credentials authenticate against the annotation service. They are read
// from the environment and never written to the config file.
type Credentials struct {
	Username string `envconfig:"GENEBE_USERNAME"`
	APIKey   string `envconfig:"GENEBE_API_KEY"`
}

// Anonymous reports whether no credentials were supplied.
func (c Credentials) Anonymous() bool {
	return c.Username == "" && c.APIKey == ""
}

type ServiceConfig struct {
	URL               string        `mapstructure:"url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	UseRefSeq         bool          `mapstructure:"use_refseq"`
	UseEnsembl        bool          `mapstructure:"use_ensembl"`
}

type CacheConfig struct {
	Path string `mapstructure:"path"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type ReportConfig struct {
	SortBy string `mapstructure:"sort_by"`
}

type AnnotationsConfig struct {
	OncoKB string `mapstructure:"oncokb"`
}

// Config is the full run configuration.
type Config struct {
	Genome      string            `mapstructure:"genome"`
	BatchSize   int               `mapstructure:"batch_size"`
	Service     ServiceConfig     `mapstructure:"service"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Output      OutputConfig      `mapstructure:"output"`
	Report      ReportConfig      `mapstructure:"report"`
	Annotations AnnotationsConfig `mapstructure:"annotations"`

	Credentials Credentials `mapstructure:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	svc := genebe.DefaultConfig()
	return Config{
		Genome:    svc.Genome,
		BatchSize: svc.BatchSize,
		Service: ServiceConfig{
			URL:               svc.BaseURL,
			Timeout:           svc.Timeout,
			RequestsPerSecond: svc.RequestsPerSecond,
			UseRefSeq:         svc.UseRefSeq,
			UseEnsembl:        svc.UseEnsembl,
		},
		Cache:  CacheConfig{Path: DefaultCachePath()},
		Output: OutputConfig{Dir: DefaultOutputDir},
		Report: ReportConfig{SortBy: DefaultSortBy},
	}
}

// DefaultCachePath places the cache next to the running executable,
// falling back to the working directory.
func DefaultCachePath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultCacheFile
	}
	return filepath.Join(filepath.Dir(exe), DefaultCacheFile)
}

// SetDefaults registers every key's default on v so that AllSettings and
// Unmarshal see the complete key set.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("genome", d.Genome)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("service.url", d.Service.URL)
	v.SetDefault("service.timeout", d.Service.Timeout)
	v.SetDefault("service.requests_per_second", d.Service.RequestsPerSecond)
	v.SetDefault("service.use_refseq", d.Service.UseRefSeq)
	v.SetDefault("service.use_ensembl", d.Service.UseEnsembl)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("report.sort_by", d.Report.SortBy)
	v.SetDefault("annotations.oncokb", d.Annotations.OncoKB)
}

// Load builds a Config from v and the process environment.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	creds, err := LoadCredentials()
	if err != nil {
		return Config{}, err
	}
	cfg.Credentials = creds

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadCredentials reads service credentials from the environment.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	return c, nil
}

// Validate checks value ranges and credential completeness.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.Service.URL == "" {
		return errors.New("service.url must be set")
	}
	if c.Service.Timeout < 0 {
		return fmt.Errorf("service.timeout must not be negative, got %s", c.Service.Timeout)
	}
	if c.Service.RequestsPerSecond < 0 {
		return fmt.Errorf("service.requests_per_second must not be negative, got %g", c.Service.RequestsPerSecond)
	}
	if c.Cache.Path == "" {
		return errors.New("cache.path must be set")
	}
	if (c.Credentials.Username == "") != (c.Credentials.APIKey == "") {
		return ErrMissingCredentials
	}
	return nil
}

// GenebeConfig converts to the service client's configuration.
func (c Config) GenebeConfig() genebe.Config {
	return genebe.Config{
		BaseURL:           c.Service.URL,
		Username:          c.Credentials.Username,
		APIKey:            c.Credentials.APIKey,
		Genome:            c.Genome,
		BatchSize:         c.BatchSize,
		Timeout:           c.Service.Timeout,
		RequestsPerSecond: c.Service.RequestsPerSecond,
		UseRefSeq:         c.Service.UseRefSeq,
		UseEnsembl:        c.Service.UseEnsembl,
	}
}

// OutputDir resolves the output directory for an input folder. Relative
// directories are placed inside the folder.
func (c Config) OutputDir(folder string) string {
	dir := c.Output.Dir
	if dir == "" {
		dir = DefaultOutputDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(folder, dir)
}
