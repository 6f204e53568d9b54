// Package config loads the healthstore configuration file. The YAML is
// validated against an embedded CUE schema before it is decoded.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/store"
)

//go:embed schema.cue
var schemaSource string

// Defaults applied to fields left empty.
const (
	DefaultPath   = "healthstore.db"
	DefaultDriver = "sqlite3"
)

// Config is the decoded configuration file.
type Config struct {
	Database    Database              `yaml:"database"`
	Limits      Limits                `yaml:"limits"`
	Permissions map[string]Permission `yaml:"permissions"`
	Priorities  map[string][]string   `yaml:"priorities"`
	AutoDelete  AutoDelete            `yaml:"auto_delete"`
}

// Database selects the SQLite file and driver.
type Database struct {
	Path          string `yaml:"path"`
	Driver        string `yaml:"driver"`
	SchemaVersion int    `yaml:"schema_version"`
}

// Limits overrides store limits. Zero keeps the store default.
type Limits struct {
	MaxDataSourcesPerApp int `yaml:"max_data_sources_per_app"`
	MaxPageSize          int `yaml:"max_page_size"`
	DefaultPageSize      int `yaml:"default_page_size"`
	MaxReadRows          int `yaml:"max_read_rows"`
	MaxBuckets           int `yaml:"max_buckets"`
}

// Permission is the grant set of one package.
type Permission struct {
	Write          bool     `yaml:"write"`
	BackgroundRead bool     `yaml:"background_read"`
	Read           []string `yaml:"read"`
}

// AutoDelete configures the retention sweep. Zero days disables it.
type AutoDelete struct {
	AfterDays int `yaml:"after_days"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes a YAML document. An empty document yields
// the defaults.
func Parse(data []byte) (*Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func validate(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = DefaultPath
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Permissions == nil {
		c.Permissions = map[string]Permission{}
	}
	if c.Priorities == nil {
		c.Priorities = map[string][]string{}
	}
}

// Oracle returns a static permission oracle serving the configured grants.
func (c *Config) Oracle() *identity.StaticOracle {
	grants := make(map[string]identity.Grant, len(c.Permissions))
	for pkg, p := range c.Permissions {
		grants[pkg] = identity.Grant{
			Write:          p.Write,
			BackgroundRead: p.BackgroundRead,
			ReadTypes:      append([]string(nil), p.Read...),
		}
	}
	return identity.NewStaticOracle(grants)
}

// StoreOptions returns the store options the configuration implies.
func (c *Config) StoreOptions() []store.Option {
	opts := []store.Option{
		store.WithDriver(c.Database.Driver),
		store.WithOracle(c.Oracle()),
		store.WithLimits(store.Limits{
			MaxDataSourcesPerApp: c.Limits.MaxDataSourcesPerApp,
			MaxPageSize:          c.Limits.MaxPageSize,
			DefaultPageSize:      c.Limits.DefaultPageSize,
			MaxReadRows:          c.Limits.MaxReadRows,
			MaxBuckets:           c.Limits.MaxBuckets,
		}),
	}
	if c.Database.SchemaVersion > 0 {
		opts = append(opts, store.WithSchemaVersion(c.Database.SchemaVersion))
	}
	return opts
}

// PriorityLists returns the configured priority lists in category order.
func (c *Config) PriorityLists() []PriorityList {
	cats := make([]string, 0, len(c.Priorities))
	for cat := range c.Priorities {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	out := make([]PriorityList, 0, len(cats))
	for _, cat := range cats {
		out = append(out, PriorityList{Category: record.Category(cat), Packages: c.Priorities[cat]})
	}
	return out
}

// PriorityList is one configured category ordering.
type PriorityList struct {
	Category record.Category
	Packages []string
}

// AutoDeleteCutoff returns the sweep cutoff in epoch millis relative to
// now, and false when auto-delete is disabled.
func (c *Config) AutoDeleteCutoff(now time.Time) (int64, bool) {
	if c.AutoDelete.AfterDays <= 0 {
		return 0, false
	}
	return now.Add(-time.Duration(c.AutoDelete.AfterDays) * 24 * time.Hour).UnixMilli(), true
}
