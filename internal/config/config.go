package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"kmeansviz/internal/logger"
)

// Config holds all application configuration
type Config struct {
	App       App       `mapstructure:"app"`
	Logging   Logging   `mapstructure:"logging"`
	Service   Service   `mapstructure:"service"`
	Server    Server    `mapstructure:"server"`
	Algorithm Algorithm `mapstructure:"algorithm"`
	UI        UI        `mapstructure:"ui"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	ConfigFile string `mapstructure:"config_file"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Service describes how the front end reaches the algorithm service
type Service struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Server holds the operator web server configuration
type Server struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	TemplateDir     string        `mapstructure:"template_dir"`
	CORS            CORS          `mapstructure:"cors"`
}

// CORS holds cross-origin settings
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Algorithm holds the reference algorithm service configuration
type Algorithm struct {
	Host          string  `mapstructure:"host"`
	Port          int     `mapstructure:"port"`
	DatasetSize   int     `mapstructure:"dataset_size"`
	MaxIterations int     `mapstructure:"max_iterations"`
	RelTolerance  float64 `mapstructure:"rtol"`
	AbsTolerance  float64 `mapstructure:"atol"`
	Seed          int64   `mapstructure:"seed"` // 0 means time-seeded
}

// UI holds operator-facing defaults
type UI struct {
	DefaultClusters int      `mapstructure:"default_clusters"`
	DefaultMethod   string   `mapstructure:"default_method"`
	Methods         []string `mapstructure:"methods"`
	ExportDir       string   `mapstructure:"export_dir"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			logger.Warn("Error loading .env file", "error", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".kmeansviz")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.SetEnvPrefix("KMEANSVIZ")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	postProcessConfig(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("service.base_url", "http://localhost:3000")
	viper.SetDefault("service.timeout", "10s")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.request_timeout", "60s")
	viper.SetDefault("server.cors.enabled", false)
	viper.SetDefault("server.cors.allowed_origins", []string{"*"})

	viper.SetDefault("algorithm.host", "0.0.0.0")
	viper.SetDefault("algorithm.port", 3000)
	viper.SetDefault("algorithm.dataset_size", 200)
	viper.SetDefault("algorithm.max_iterations", 300)
	viper.SetDefault("algorithm.rtol", 1e-5)
	viper.SetDefault("algorithm.atol", 1e-8)
	viper.SetDefault("algorithm.seed", 0)

	viper.SetDefault("ui.default_clusters", 3)
	viper.SetDefault("ui.default_method", "random")
	viper.SetDefault("ui.methods", []string{"random", "kmeans++", "manual"})
	viper.SetDefault("ui.export_dir", "exports")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("service.base_url", []string{
		"KMEANS_SERVICE_URL",
		"ALGORITHM_SERVICE_URL",
	})

	bindEnvKeys("server.port", []string{
		"PORT",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"KMEANSVIZ_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) {
	if config.Server.TemplateDir != "" {
		config.Server.TemplateDir = expandPath(config.Server.TemplateDir)
	}
	if config.UI.ExportDir != "" {
		config.UI.ExportDir = expandPath(config.UI.ExportDir)
	}
	config.Service.BaseURL = strings.TrimRight(config.Service.BaseURL, "/")
	config.Logging.Level = strings.ToLower(config.Logging.Level)
	if config.App.Debug {
		config.Logging.Level = "debug"
	}
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures required configuration is present
func validateConfig(config *Config) error {
	var errors []string

	if config.Service.BaseURL == "" {
		errors = append(errors, "Algorithm service URL is required. Set KMEANS_SERVICE_URL or service.base_url in config file.")
	}

	durations := map[string]time.Duration{
		"service.timeout":         config.Service.Timeout,
		"server.read_timeout":     config.Server.ReadTimeout,
		"server.write_timeout":    config.Server.WriteTimeout,
		"server.shutdown_timeout": config.Server.ShutdownTimeout,
		"server.request_timeout":  config.Server.RequestTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be a positive duration", key))
		}
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("Invalid server port: %d", config.Server.Port))
	}
	if config.Algorithm.Port <= 0 || config.Algorithm.Port > 65535 {
		errors = append(errors, fmt.Sprintf("Invalid algorithm port: %d", config.Algorithm.Port))
	}
	if config.Algorithm.DatasetSize <= 0 {
		errors = append(errors, "algorithm.dataset_size must be positive")
	}
	if config.Algorithm.MaxIterations <= 0 {
		errors = append(errors, "algorithm.max_iterations must be positive")
	}
	if config.UI.DefaultClusters <= 0 {
		errors = append(errors, "ui.default_clusters must be positive")
	}

	switch config.Logging.Format {
	case "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: json, text", config.Logging.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Convenience getters for commonly used configuration values
func GetLogging() Logging     { return Get().Logging }
func GetService() Service     { return Get().Service }
func GetServer() Server       { return Get().Server }
func GetAlgorithm() Algorithm { return Get().Algorithm }
func GetUI() UI               { return Get().UI }
func IsDebugMode() bool       { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
