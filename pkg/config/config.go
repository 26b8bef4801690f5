package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edgeflare/smt/pkg/pipeline"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X github.com/edgeflare/smt/pkg/config.Version=..."
var Version = "dev"

// Config holds application-wide configuration
type Config struct {
	Pipeline pipeline.Config `mapstructure:"pipeline"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: true,
		Addr:    ":9100",
	}
}

// Load reads config from file or environment. Environment variables use the SMT_ prefix,
// eg SMT_METRICS_ADDR overrides metrics.addr.
func Load(cfgFile string) (*Config, error) {
	return load(viper.New(), cfgFile)
}

func load(v *viper.Viper, cfgFile string) (*Config, error) {
	defaults := DefaultMetricsConfig()
	v.SetDefault("metrics.enabled", defaults.Enabled)
	v.SetDefault("metrics.addr", defaults.Addr)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("smt")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SMT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		zap.L().Info("Using config file", zap.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
