// Package config loads execd's environment-variable-driven
// configuration, grounded in the viper-based Load pattern shared by the
// rest of the example pool: defaults are set first, a config file is
// read if present (and ignored if not), then the environment overrides
// everything.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ExecutionConfig holds the Execution Service's settings. Field keys are
// spec.md §6's variable names, lowercased; the environment variables
// that set them carry an EXECD_ prefix (EXECD_MAX_POOL_SIZE, ...), and
// the unprefixed names are not read.
type ExecutionConfig struct {
	// InternalAuthToken gates every mutating internal endpoint.
	InternalAuthToken string `mapstructure:"internal_auth_token"`

	// InitialPoolSize is the total number of sandboxes pre-warmed at
	// startup, split across the supported languages.
	InitialPoolSize int `mapstructure:"initial_pool_size"`

	// MaxPoolSize is the hard cap on live sandboxes.
	MaxPoolSize int `mapstructure:"max_pool_size"`

	// DefaultTimeout is applied when a request omits timeout_seconds.
	DefaultTimeout int `mapstructure:"default_timeout"`

	// MaxTimeout bounds the clamp applied to every request's timeout.
	MaxTimeout int `mapstructure:"max_timeout"`

	// SupportedLanguages is the canonical allow-list.
	SupportedLanguages []string `mapstructure:"supported_languages"`

	// ServerAddr is the internal HTTP surface's listen address.
	ServerAddr string `mapstructure:"server_addr"`

	// DockerImage is the sandbox container image; it must have python3,
	// node, bash and a C compiler installed.
	DockerImage string `mapstructure:"docker_image"`

	// SandboxMemoryMB and SandboxCPUCores bound each sandbox's resources.
	SandboxMemoryMB int64   `mapstructure:"sandbox_memory_mb"`
	SandboxCPUCores float64 `mapstructure:"sandbox_cpu_cores"`

	// LogLevel and LogJSON control zerolog's output.
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// GatewayConfig holds the API Gateway's settings.
type GatewayConfig struct {
	ServerAddr         string `mapstructure:"server_addr"`
	ExecutionServiceURL string `mapstructure:"execution_service_url"`
	InternalAuthToken  string `mapstructure:"internal_auth_token"`
	LogLevel           string `mapstructure:"log_level"`
	LogJSON            bool   `mapstructure:"log_json"`
}

// LoadExecution loads the Execution Service's configuration. configPath
// is optional; an empty string skips reading a config file and relies
// entirely on defaults plus environment variables.
func LoadExecution(configPath string) (*ExecutionConfig, error) {
	v := newViper(configPath)

	v.SetDefault("internal_auth_token", "")
	v.SetDefault("initial_pool_size", 5)
	v.SetDefault("max_pool_size", 20)
	v.SetDefault("default_timeout", 30)
	v.SetDefault("max_timeout", 300)
	v.SetDefault("supported_languages", []string{"python", "node", "bash", "c"})
	v.SetDefault("server_addr", ":8081")
	v.SetDefault("docker_image", "execd-sandbox:latest")
	v.SetDefault("sandbox_memory_mb", 512)
	v.SetDefault("sandbox_cpu_cores", 1.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	if err := readIfPresent(v, configPath); err != nil {
		return nil, err
	}

	var cfg ExecutionConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal execution config: %w", err)
	}
	return &cfg, nil
}

// LoadGateway loads the API Gateway's configuration.
func LoadGateway(configPath string) (*GatewayConfig, error) {
	v := newViper(configPath)

	v.SetDefault("server_addr", ":8080")
	v.SetDefault("execution_service_url", "http://localhost:8081")
	v.SetDefault("internal_auth_token", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	if err := readIfPresent(v, configPath); err != nil {
		return nil, err
	}

	var cfg GatewayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal gateway config: %w", err)
	}
	return &cfg, nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("EXECD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	return v
}

func readIfPresent(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("config: read config file: %w", err)
	}
	return nil
}
