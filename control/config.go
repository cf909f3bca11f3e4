// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Configuration loading via viper: optional YAML file, HIOLOAD_* environment
// overrides and built-in defaults, validated before use.

package control

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/momentics/hioload-lowlat/api"
)

// EnvPrefix is prepended to environment overrides, e.g. HIOLOAD_LISTEN_PORT.
const EnvPrefix = "HIOLOAD"

// Defaults.
const (
	DefaultBufferSize    = 1 << 20
	DefaultQueueCapacity = 1024
	DefaultIdleSleep     = time.Duration(0)
	maxBufferSize        = 1 << 30
)

// Config is the full runtime configuration.
type Config struct {
	Listen  ListenConfig  `mapstructure:"listen"`
	Socket  BufferConfig  `mapstructure:"socket"`
	Reactor ReactorConfig `mapstructure:"reactor"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ListenConfig selects the listening endpoint. An explicit IP wins over the
// interface lookup.
type ListenConfig struct {
	IP           string `mapstructure:"ip"`
	Iface        string `mapstructure:"iface"`
	Port         int    `mapstructure:"port"`
	Timestamping bool   `mapstructure:"timestamping"`
}

// BufferConfig sizes the per-socket inbound and outbound arenas.
type BufferConfig struct {
	InboundSize  int `mapstructure:"inbound_size"`
	OutboundSize int `mapstructure:"outbound_size"`
}

// ReactorConfig controls the reactor thread.
type ReactorConfig struct {
	// CoreID pins the reactor thread; -1 leaves it unpinned.
	CoreID int `mapstructure:"core_id"`
	// IdleSleep is slept after a cycle that found no work; 0 spins.
	IdleSleep time.Duration `mapstructure:"idle_sleep"`
}

// QueueConfig sizes handoff rings.
type QueueConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// LogConfig selects the zap level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig names the Prometheus namespace.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Iface:        "lo",
			Timestamping: true,
		},
		Socket: BufferConfig{
			InboundSize:  DefaultBufferSize,
			OutboundSize: DefaultBufferSize,
		},
		Reactor: ReactorConfig{CoreID: -1, IdleSleep: DefaultIdleSleep},
		Queue:   QueueConfig{Capacity: DefaultQueueCapacity},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Namespace: "hioload"},
	}
}

// LoadConfig reads path (if non-empty), applies environment overrides and
// defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("listen.ip", d.Listen.IP)
	v.SetDefault("listen.iface", d.Listen.Iface)
	v.SetDefault("listen.port", d.Listen.Port)
	v.SetDefault("listen.timestamping", d.Listen.Timestamping)
	v.SetDefault("socket.inbound_size", d.Socket.InboundSize)
	v.SetDefault("socket.outbound_size", d.Socket.OutboundSize)
	v.SetDefault("reactor.core_id", d.Reactor.CoreID)
	v.SetDefault("reactor.idle_sleep", d.Reactor.IdleSleep)
	v.SetDefault("queue.capacity", d.Queue.Capacity)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	if c.Listen.IP != "" {
		if ip := net.ParseIP(c.Listen.IP); ip == nil || ip.To4() == nil {
			errs = append(errs, fmt.Errorf("listen.ip %q is not an IPv4 address", c.Listen.IP))
		}
	}
	if c.Socket.InboundSize <= 0 || c.Socket.InboundSize > maxBufferSize {
		errs = append(errs, fmt.Errorf("socket.inbound_size %d out of range", c.Socket.InboundSize))
	}
	if c.Socket.OutboundSize <= 0 || c.Socket.OutboundSize > maxBufferSize {
		errs = append(errs, fmt.Errorf("socket.outbound_size %d out of range", c.Socket.OutboundSize))
	}
	if c.Reactor.CoreID < -1 {
		errs = append(errs, fmt.Errorf("reactor.core_id %d must be >= -1", c.Reactor.CoreID))
	}
	if c.Reactor.IdleSleep < 0 {
		errs = append(errs, fmt.Errorf("reactor.idle_sleep must not be negative"))
	}
	if c.Queue.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("queue.capacity %d must be positive", c.Queue.Capacity))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if len(errs) == 0 {
		return nil
	}
	return api.WrapError(api.ErrCodeInvalidArgument, "invalid configuration", errors.Join(errs...))
}
