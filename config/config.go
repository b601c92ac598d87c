// Package config loads runtime configuration for the jgrpc-server and
// jgrpc-client commands: defaults, overridden by an optional YAML file,
// overridden by JGRPC_* environment variables.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every constructor parameter the core library exposes as a
// boundary (spec.md §6: "configuration is constructor-parameter" — this
// package is the CLI-facing layer that turns external config into those
// parameters).
type Config struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	AdvertiseAddr  string        `mapstructure:"advertise_addr"`
	EtcdEndpoints  []string      `mapstructure:"etcd_endpoints"`
	Namespace      string        `mapstructure:"namespace"`
	Serializer     string        `mapstructure:"serializer"` // "json" or "native"
	Balancer       string        `mapstructure:"balancer"`   // "round_robin", "random", "consistent_hash"
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	DrainInterval  time.Duration `mapstructure:"drain_interval"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "0.0.0.0:9000")
	v.SetDefault("advertise_addr", "")
	v.SetDefault("etcd_endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("namespace", "/jg-rpc")
	v.SetDefault("serializer", "json")
	v.SetDefault("balancer", "round_robin")
	v.SetDefault("call_timeout", 10*time.Second)
	v.SetDefault("connect_timeout", 5*time.Second)
	v.SetDefault("idle_timeout", 30*time.Second)
	v.SetDefault("drain_interval", 5*time.Second)
	v.SetDefault("rate_limit", 0.0) // 0 disables the rate limit middleware
	v.SetDefault("rate_burst", 0)
}

// Load builds a Config from defaults, an optional YAML file at path (ignored
// if empty or missing), and JGRPC_* environment variables, in that
// precedence order (lowest to highest).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JGRPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
