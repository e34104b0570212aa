// Package config loads btprof settings from an optional YAML file and
// BTPROF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/psantana5/buildtime-profiler/internal/profiler"
)

// EnvPrefix is prepended to every environment override, e.g.
// BTPROF_ELASTICSEARCH_ADDRESS.
const EnvPrefix = "BTPROF"

// Output selectors
const (
	OutputStdout = "stdout"
	OutputJSON   = "json"
	OutputYAML   = "yaml"
)

// Config is the full runtime configuration
type Config struct {
	Output       string   `mapstructure:"output"`
	Directory    string   `mapstructure:"directory"`
	LogLevel     string   `mapstructure:"log_level"`
	LogJSON      bool     `mapstructure:"log_json"`
	IgnoreFields []string `mapstructure:"ignore_fields"`

	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Server        ServerConfig        `mapstructure:"server"`
}

// ElasticsearchConfig configures the telemetry index
type ElasticsearchConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Address     string        `mapstructure:"address"`
	Index       string        `mapstructure:"index"`
	MappingFile string        `mapstructure:"mapping_file"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CAFile      string        `mapstructure:"ca_file"`
}

// NATSConfig configures the telemetry subject
type NATSConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Subject string        `mapstructure:"subject"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TracingConfig configures OTLP span export
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// MetricsConfig configures the Prometheus textfile export
type MetricsConfig struct {
	TextFile string `mapstructure:"textfile"`
}

// ServerConfig configures the ingestion API
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Token           string        `mapstructure:"token"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"` // zero never expires
	RateLimit       float64       `mapstructure:"rate_limit"`
	Burst           int           `mapstructure:"burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TLSCert         string        `mapstructure:"tls_cert"`
	TLSKey          string        `mapstructure:"tls_key"`
	TLSClientCA     string        `mapstructure:"tls_client_ca"`
}

// TLSEnabled reports whether the ingestion server listens with TLS
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCert != "" || s.TLSKey != ""
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output", OutputStdout)
	v.SetDefault("directory", "target")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("ignore_fields", append([]string(nil), profiler.DefaultIgnoreFields...))

	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.address", "http://localhost:9200")
	v.SetDefault("elasticsearch.index", "btprof")
	v.SetDefault("elasticsearch.mapping_file", "")
	v.SetDefault("elasticsearch.timeout", 10*time.Second)
	v.SetDefault("elasticsearch.ca_file", "")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject", "btprof.telemetry")
	v.SetDefault("nats.timeout", 5*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "btprof")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.token", "")
	v.SetDefault("server.token_ttl", time.Duration(0))
	v.SetDefault("server.rate_limit", 100.0)
	v.SetDefault("server.burst", 200)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")
	v.SetDefault("server.tls_client_ca", "")
}

// NewViper returns a viper instance with defaults and env binding applied
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads cfgFile (or searches ./.btprof.yaml and $HOME/.btprof/config.yaml
// when empty) into v and decodes the result. A missing searched file is
// not an error; a missing explicit file is.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".btprof")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".btprof"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the decoded configuration
func (c *Config) Validate() error {
	var errs []error

	switch c.Output {
	case OutputStdout, OutputJSON, OutputYAML:
	default:
		errs = append(errs, fmt.Errorf("output must be stdout, json or yaml, got %q", c.Output))
	}
	if c.Output != OutputStdout && c.Directory == "" {
		errs = append(errs, errors.New("directory is required for file output"))
	}
	if c.Elasticsearch.Enabled {
		if c.Elasticsearch.Address == "" {
			errs = append(errs, errors.New("elasticsearch.address is required when elasticsearch is enabled"))
		}
		if c.Elasticsearch.Index == "" {
			errs = append(errs, errors.New("elasticsearch.index is required when elasticsearch is enabled"))
		}
	}
	if c.NATS.Enabled && (c.NATS.URL == "" || c.NATS.Subject == "") {
		errs = append(errs, errors.New("nats.url and nats.subject are required when nats is enabled"))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if c.Server.TLSClientCA != "" && !c.Server.TLSEnabled() {
		errs = append(errs, errors.New("server.tls_client_ca requires server.tls_cert and server.tls_key"))
	}
	if c.Server.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("server.token_ttl must not be negative, got %v", c.Server.TokenTTL))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %v", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, fmt.Errorf("server.burst must be at least 1, got %d", c.Server.Burst))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// FileOutput reports whether the document is written to a file
func (c *Config) FileOutput() bool {
	return c.Output == OutputJSON || c.Output == OutputYAML
}
