package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of environment variable overrides, e.g.
	// DATAS_ANALYSIS_TOTAL_COST overrides analysis.total_cost.
	EnvPrefix = "DATAS"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultResultsDir is the default directory for analysis reports.
	DefaultResultsDir = "./results"

	// DefaultFullDosageThreshold is the default number of tutoring hours
	// that counts as full dosage.
	DefaultFullDosageThreshold = 60.0

	// DefaultSessionsFile is the default session dataset name.
	DefaultSessionsFile = "sessions.csv"

	// DefaultStudentsFile is the default student dataset name.
	DefaultStudentsFile = "students.csv"

	// SourceLocal reads datasets from a local directory.
	SourceLocal = "local"

	// SourceS3 reads datasets from an S3 bucket.
	SourceS3 = "s3"

	// DriverSQLite selects the sqlite run store.
	DriverSQLite = "sqlite"

	// DriverPostgres selects the postgres run store.
	DriverPostgres = "postgres"

	// DefaultSQLitePath is the default sqlite database file.
	DefaultSQLitePath = "./datas.db"

	// DefaultUploadPrefix is the default S3 key prefix for uploaded reports.
	DefaultUploadPrefix = "reports"
)

// Config is the root configuration for datas.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Upload   UploadConfig   `yaml:"upload" mapstructure:"upload"`
	API      APIConfig      `yaml:"api" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel   string `yaml:"log_level" mapstructure:"log_level"`
	ResultsDir string `yaml:"results_dir" mapstructure:"results_dir"`
}

// AnalysisConfig contains the default analysis parameters.
type AnalysisConfig struct {
	FullDosageThreshold float64      `yaml:"full_dosage_threshold" mapstructure:"full_dosage_threshold"`
	TotalCost           float64      `yaml:"total_cost" mapstructure:"total_cost"`
	Filter              FilterConfig `yaml:"filter,omitempty" mapstructure:"filter"`
}

// FilterConfig is the default subgroup filter. Unset fields apply no
// predicate.
type FilterConfig struct {
	School               string   `yaml:"school,omitempty" mapstructure:"school"`
	Grades               []int    `yaml:"grades,omitempty" mapstructure:"grades"`
	ELL                  *bool    `yaml:"ell,omitempty" mapstructure:"ell"`
	IEP                  *bool    `yaml:"iep,omitempty" mapstructure:"iep"`
	EconomicDisadvantage *bool    `yaml:"economic_disadvantage,omitempty" mapstructure:"economic_disadvantage"`
	Gifted               *bool    `yaml:"gifted,omitempty" mapstructure:"gifted"`
	Homeless             *bool    `yaml:"homeless,omitempty" mapstructure:"homeless"`
	Disability           *bool    `yaml:"disability,omitempty" mapstructure:"disability"`
	Genders              []string `yaml:"genders,omitempty" mapstructure:"genders"`
	Ethnicities          []string `yaml:"ethnicities,omitempty" mapstructure:"ethnicities"`
}

// DataConfig locates the input datasets.
type DataConfig struct {
	Source   string           `yaml:"source" mapstructure:"source"`
	Sessions string           `yaml:"sessions" mapstructure:"sessions"`
	Students string           `yaml:"students" mapstructure:"students"`
	Local    LocalSourceConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3       S3SourceConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
}

// LocalSourceConfig reads datasets relative to a base directory.
type LocalSourceConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// S3Connection contains the settings shared by every S3 client.
type S3Connection struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// S3SourceConfig reads datasets from an S3 bucket under a key prefix.
type S3SourceConfig struct {
	S3Connection `yaml:",inline" mapstructure:",squash"`
	Prefix       string `yaml:"prefix,omitempty" mapstructure:"prefix"`
}

// DatabaseConfig configures the analysis run store.
type DatabaseConfig struct {
	Enabled  bool                 `yaml:"enabled" mapstructure:"enabled"`
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// UploadConfig configures report publishing.
type UploadConfig struct {
	S3 S3UploadConfig `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3UploadConfig configures uploading report directories to S3.
type S3UploadConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	S3Connection `yaml:",inline" mapstructure:",squash"`
	Prefix       string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	StorageClass string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL          string `yaml:"acl,omitempty" mapstructure:"acl"`
}

// defaults are registered on viper so that environment overrides apply even
// when the key is absent from every config file.
var defaults = map[string]any{
	"global.log_level":                          DefaultLogLevel,
	"global.results_dir":                        DefaultResultsDir,
	"analysis.full_dosage_threshold":            DefaultFullDosageThreshold,
	"analysis.total_cost":                       0.0,
	"analysis.filter.school":                    "",
	"analysis.filter.grades":                    []int{},
	"analysis.filter.genders":                   []string{},
	"analysis.filter.ethnicities":               []string{},
	"data.source":                               SourceLocal,
	"data.sessions":                             DefaultSessionsFile,
	"data.students":                             DefaultStudentsFile,
	"data.local.dir":                            ".",
	"data.s3.endpoint_url":                      "",
	"data.s3.region":                            "",
	"data.s3.bucket":                            "",
	"data.s3.access_key_id":                     "",
	"data.s3.secret_access_key":                 "",
	"data.s3.force_path_style":                  false,
	"data.s3.prefix":                            "",
	"database.enabled":                          false,
	"database.driver":                           DriverSQLite,
	"database.sqlite.path":                      DefaultSQLitePath,
	"database.postgres.host":                    "",
	"database.postgres.port":                    5432,
	"database.postgres.user":                    "",
	"database.postgres.password":                "",
	"database.postgres.database":                "",
	"database.postgres.ssl_mode":                "",
	"upload.s3.enabled":                         false,
	"upload.s3.endpoint_url":                    "",
	"upload.s3.region":                          "",
	"upload.s3.bucket":                          "",
	"upload.s3.access_key_id":                   "",
	"upload.s3.secret_access_key":               "",
	"upload.s3.force_path_style":                false,
	"upload.s3.prefix":                          DefaultUploadPrefix,
	"upload.s3.storage_class":                   "",
	"upload.s3.acl":                             "",
	"api.server.listen":                         DefaultAPIListen,
	"api.server.cors_origins":                   []string{},
	"api.server.rate_limit.enabled":             false,
	"api.server.rate_limit.requests_per_minute": DefaultRequestsPerMinute,
	"api.record_runs":                           false,
	"api.reload_interval":                       "",
}

// envOnlyKeys have no default because an unset value carries meaning; they
// are bound so that environment overrides still reach them.
var envOnlyKeys = []string{
	"analysis.filter.ell",
	"analysis.filter.iep",
	"analysis.filter.economic_disadvantage",
	"analysis.filter.gifted",
	"analysis.filter.homeless",
	"analysis.filter.disability",
}

// Load reads the given configuration files in order, later files overriding
// earlier ones, then applies environment overrides. With no paths the
// defaults and environment alone are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	for i, path := range paths {
		if err := readInto(v, path, i > 0); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func readInto(v *viper.Viper, path string, merge bool) error {
	f, err := os.Open(path) //nolint:gosec // path from command line
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	defer func() { _ = f.Close() }()

	if merge {
		err = v.MergeConfig(f)
	} else {
		err = v.ReadConfig(f)
	}

	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return nil
}

// applyDefaults fills values that an explicit empty setting in a file would
// otherwise leave blank.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Global.ResultsDir == "" {
		c.Global.ResultsDir = DefaultResultsDir
	}

	if c.Data.Source == "" {
		c.Data.Source = SourceLocal
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}

	if c.Upload.S3.Prefix == "" {
		c.Upload.S3.Prefix = DefaultUploadPrefix
	}

	if c.API.Server.Listen == "" {
		c.API.Server.Listen = DefaultAPIListen
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("global.log_level: %w", err)
	}

	if c.Analysis.FullDosageThreshold <= 0 {
		return fmt.Errorf(
			"analysis.full_dosage_threshold must be positive, got %v",
			c.Analysis.FullDosageThreshold,
		)
	}

	if c.Analysis.TotalCost < 0 {
		return fmt.Errorf(
			"analysis.total_cost must not be negative, got %v",
			c.Analysis.TotalCost,
		)
	}

	if err := c.Data.validate(); err != nil {
		return fmt.Errorf("data: %w", err)
	}

	if err := c.Database.validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if c.Upload.S3.Enabled && c.Upload.S3.Bucket == "" {
		return errors.New("upload.s3.bucket is required when upload is enabled")
	}

	if err := c.API.validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}

func (d *DataConfig) validate() error {
	switch d.Source {
	case SourceLocal:
	case SourceS3:
		if d.S3.Bucket == "" {
			return errors.New("s3.bucket is required for the s3 source")
		}
	default:
		return fmt.Errorf("unknown source %q", d.Source)
	}

	if d.Sessions == "" || d.Students == "" {
		return errors.New("sessions and students must both be set")
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	if !d.Enabled {
		return nil
	}

	switch d.Driver {
	case DriverSQLite:
		if d.SQLite.Path == "" {
			return errors.New("sqlite.path is required")
		}
	case DriverPostgres:
		if d.Postgres.Host == "" || d.Postgres.Database == "" {
			return errors.New("postgres.host and postgres.database are required")
		}
	default:
		return fmt.Errorf("unsupported driver %q", d.Driver)
	}

	return nil
}
