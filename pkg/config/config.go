// Package config loads the runtime configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
)

// Config is the resolved runtime configuration.
type Config struct {
	Timer struct {
		Interval time.Duration
	}
	Database struct {
		Path string
	}
	Log struct {
		Capacity int
	}
	Web struct {
		Enabled bool
		Host    string
		Port    int
	}
	Risk struct {
		Enabled            bool
		MaxOrderVolume     float64
		MaxOrdersPerWindow int
		MaxActiveOrders    int
	}
	Profiling struct {
		Server string
	}
	Sim struct {
		Balance float64
	}
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	var cfg Config
	cfg.Timer.Interval = time.Second
	cfg.Database.Path = "trader.db"
	cfg.Log.Capacity = 1000
	cfg.Web.Enabled = true
	cfg.Web.Host = "127.0.0.1"
	cfg.Web.Port = 8288
	cfg.Risk.Enabled = true
	cfg.Risk.MaxOrderVolume = 10000
	cfg.Risk.MaxOrdersPerWindow = 50
	cfg.Risk.MaxActiveOrders = 200
	cfg.Sim.Balance = 1_000_000
	return cfg
}

// Load reads trader.yaml (or the explicit path) plus TRADER_* environment
// overrides. A missing config file is not an error; defaults apply.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("trader")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}
	v.SetEnvPrefix("trader")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); path != "" || !notFound {
			return Config{}, errors.Wrap(err, "read config")
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("timer.interval", cfg.Timer.Interval)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("log.capacity", cfg.Log.Capacity)
	v.SetDefault("web.enabled", cfg.Web.Enabled)
	v.SetDefault("web.host", cfg.Web.Host)
	v.SetDefault("web.port", cfg.Web.Port)
	v.SetDefault("risk.enabled", cfg.Risk.Enabled)
	v.SetDefault("risk.maxordervolume", cfg.Risk.MaxOrderVolume)
	v.SetDefault("risk.maxordersperwindow", cfg.Risk.MaxOrdersPerWindow)
	v.SetDefault("risk.maxactiveorders", cfg.Risk.MaxActiveOrders)
	v.SetDefault("profiling.server", cfg.Profiling.Server)
	v.SetDefault("sim.balance", cfg.Sim.Balance)
}
