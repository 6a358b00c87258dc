package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the license inventory daemon configuration.
type Config struct {
	Listen        string `mapstructure:"listen"`
	HTTPListen    string `mapstructure:"http_listen"`
	EnableSwagger bool   `mapstructure:"enable_swagger"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	DatabasePath  string `mapstructure:"database"`
	ClientSecret  string `mapstructure:"client_secret"`
	ApiSecret     string `mapstructure:"api_secret"`
	LogLevel      string `mapstructure:"log_level"`
	OtelEndpoint  string `mapstructure:"otel_endpoint"`
	OtelInsecure  bool   `mapstructure:"otel_insecure"`
}

// Load reads configuration from file and environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("license-inventory")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/license-inventory")
	}

	v.SetDefault("listen", ":9560")
	v.SetDefault("http_listen", ":9561")
	v.SetDefault("enable_swagger", true)
	v.SetDefault("enable_metrics", true)
	v.SetDefault("database", "license-inventory.db")
	v.SetDefault("client_secret", "")
	v.SetDefault("api_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("otel_insecure", false)

	v.SetEnvPrefix("LICINV")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Running without a config file is fine.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
