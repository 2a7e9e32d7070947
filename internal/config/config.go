// Package config loads the metastore configuration: defaults, then an
// optional YAML file, then environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvDataDir       = "METASTORE_DATA_DIR"
	EnvAuthzDriver   = "METASTORE_AUTHZ_DRIVER"
	EnvAuthzDSN      = "METASTORE_AUTHZ_DSN"
	EnvSearchBackend = "METASTORE_SEARCH_BACKEND"
	EnvWeaviateHost  = "METASTORE_WEAVIATE_HOST"
)

// Search backends.
const (
	BackendSQLite   = "sqlite"
	BackendWeaviate = "weaviate"
)

// Authorization drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default values.
const (
	DefaultDataDir          = "./metastore-data"
	DefaultMetadataGraph    = "https://w3id.org/metastore/graph/metadata"
	DefaultVocabularyGraph  = "https://w3id.org/metastore/graph/vocabulary"
	DefaultBatchSize        = 1000
	DefaultMaxFactsToReturn = 50000
	DefaultEventBuffer      = 256
	DefaultEventTimeout     = 5 * time.Second
	DefaultGCInterval       = 5 * time.Minute
	DefaultGCDiscardRatio   = 0.5
	DefaultSystemActor      = "system"
	DefaultWeaviateScheme   = "http"
	DefaultWeaviateClass    = "MetastoreEntity"
)

// Config is the full configuration.
type Config struct {
	DataDir          string            `yaml:"data_dir"`
	Store            StoreConfig       `yaml:"store"`
	Log              LogConfig         `yaml:"log"`
	Graphs           GraphsConfig      `yaml:"graphs"`
	Search           SearchConfig      `yaml:"search"`
	Authz            AuthzConfig       `yaml:"authz"`
	Validation       ValidationConfig  `yaml:"validation"`
	Inverses         map[string]string `yaml:"inverses"`
	Events           EventsConfig      `yaml:"events"`
	MaxFactsToReturn int               `yaml:"max_facts_to_return"`
	Metrics          MetricsConfig     `yaml:"metrics"`
}

// StoreConfig configures the primary store.
type StoreConfig struct {
	// Path defaults to <data_dir>/store.
	Path           string        `yaml:"path"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio"`
}

// LogConfig configures the transaction log.
type LogConfig struct {
	// Path defaults to <data_dir>/log.db.
	Path string `yaml:"path"`
}

// GraphsConfig names the two graphs.
type GraphsConfig struct {
	Metadata   string `yaml:"metadata"`
	Vocabulary string `yaml:"vocabulary"`
}

// SearchConfig configures the index synchronizer and its engine.
type SearchConfig struct {
	Backend string `yaml:"backend"`
	// Path defaults to <data_dir>/index.db for the sqlite backend.
	Path      string            `yaml:"path"`
	BatchSize int               `yaml:"batch_size"`
	Required  bool              `yaml:"required"`
	Fields    map[string]string `yaml:"fields"`
	Weaviate  WeaviateConfig    `yaml:"weaviate"`
}

// WeaviateConfig addresses a Weaviate instance.
type WeaviateConfig struct {
	Host   string `yaml:"host"`
	Scheme string `yaml:"scheme"`
	Class  string `yaml:"class"`
}

// AuthzConfig configures the authorization repository.
type AuthzConfig struct {
	Driver string `yaml:"driver"`
	// DSN defaults to <data_dir>/authz.db for the sqlite driver.
	DSN              string   `yaml:"dsn"`
	ProtectedClasses []string `yaml:"protected_classes"`
}

// ValidationConfig configures the validator chains.
type ValidationConfig struct {
	SystemActors          []string `yaml:"system_actors"`
	MachineOnlyPredicates []string `yaml:"machine_only_predicates"`
	MachineOnlyClasses    []string `yaml:"machine_only_classes"`
	Shapes                string   `yaml:"shapes"`
	SystemVocabulary      []string `yaml:"system_vocabulary"`
}

// EventsConfig configures the outbound event channel.
type EventsConfig struct {
	Buffer   int           `yaml:"buffer"`
	Required bool          `yaml:"required"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Store: StoreConfig{
			SyncWrites:     true,
			GCInterval:     DefaultGCInterval,
			GCDiscardRatio: DefaultGCDiscardRatio,
		},
		Graphs: GraphsConfig{
			Metadata:   DefaultMetadataGraph,
			Vocabulary: DefaultVocabularyGraph,
		},
		Search: SearchConfig{
			Backend:   BackendSQLite,
			BatchSize: DefaultBatchSize,
			Weaviate: WeaviateConfig{
				Scheme: DefaultWeaviateScheme,
				Class:  DefaultWeaviateClass,
			},
		},
		Authz: AuthzConfig{Driver: DriverSQLite},
		Validation: ValidationConfig{
			SystemActors: []string{DefaultSystemActor},
		},
		Events: EventsConfig{
			Buffer:  DefaultEventBuffer,
			Timeout: DefaultEventTimeout,
		},
		MaxFactsToReturn: DefaultMaxFactsToReturn,
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides, resolves derived paths and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
		cfg.resolveShapes(filepath.Dir(path))
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := getenv(EnvAuthzDriver); v != "" {
		c.Authz.Driver = v
	}
	if v := getenv(EnvAuthzDSN); v != "" {
		c.Authz.DSN = v
	}
	if v := getenv(EnvSearchBackend); v != "" {
		c.Search.Backend = v
	}
	if v := getenv(EnvWeaviateHost); v != "" {
		c.Search.Weaviate.Host = v
	}
}

// shapes paths in a config file are relative to that file.
func (c *Config) resolveShapes(base string) {
	if c.Validation.Shapes != "" && !filepath.IsAbs(c.Validation.Shapes) {
		c.Validation.Shapes = filepath.Join(base, c.Validation.Shapes)
	}
}

func (c *Config) resolvePaths() {
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "store")
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(c.DataDir, "log.db")
	}
	if c.Search.Path == "" && c.Search.Backend == BackendSQLite {
		c.Search.Path = filepath.Join(c.DataDir, "index.db")
	}
	if c.Authz.DSN == "" && c.Authz.Driver == DriverSQLite {
		c.Authz.DSN = filepath.Join(c.DataDir, "authz.db")
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.DataDir == "" {
		add("data_dir is required")
	}
	if c.Graphs.Metadata == "" {
		add("graphs.metadata is required")
	}
	if c.Graphs.Vocabulary == "" {
		add("graphs.vocabulary is required")
	}
	if c.Graphs.Metadata != "" && c.Graphs.Metadata == c.Graphs.Vocabulary {
		add("graphs.metadata and graphs.vocabulary must differ")
	}
	if c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1 {
		add("store.gc_discard_ratio must be in (0, 1), got %s", strconv.FormatFloat(c.Store.GCDiscardRatio, 'g', -1, 64))
	}
	if c.Store.GCInterval < 0 {
		add("store.gc_interval must not be negative")
	}

	switch c.Search.Backend {
	case BackendSQLite:
	case BackendWeaviate:
		if c.Search.Weaviate.Host == "" {
			add("search.weaviate.host is required for the weaviate backend")
		}
		if c.Search.Weaviate.Class == "" {
			add("search.weaviate.class is required for the weaviate backend")
		}
	default:
		add("search.backend must be %q or %q, got %q", BackendSQLite, BackendWeaviate, c.Search.Backend)
	}
	if c.Search.BatchSize <= 0 {
		add("search.batch_size must be positive, got %d", c.Search.BatchSize)
	}

	switch c.Authz.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Authz.DSN == "" {
			add("authz.dsn is required for the postgres driver")
		}
	default:
		add("authz.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Authz.Driver)
	}

	for p, inv := range c.Inverses {
		if p == "" || inv == "" {
			add("inverses must map non-empty predicates")
			break
		}
	}
	if c.Events.Buffer < 0 {
		add("events.buffer must not be negative")
	}
	if c.Events.Timeout <= 0 {
		add("events.timeout must be positive")
	}
	if c.MaxFactsToReturn <= 0 {
		add("max_facts_to_return must be positive, got %d", c.MaxFactsToReturn)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
