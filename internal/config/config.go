// Package config loads foxd settings from an optional config file, a .env
// file and FOXD_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/P8labs/foxd/internal/capture"
)

const DefaultConfigFile = "config.toml"

type Daemon struct {
	Interface                string `mapstructure:"interface"`
	CaptureEnabled           bool   `mapstructure:"capture_enabled"`
	CaptureFilter            string `mapstructure:"capture_filter"`
	NeighborEnabled          bool   `mapstructure:"neighbor_enabled"`
	ARPTablePath             string `mapstructure:"arp_table_path"`
	NeighborCheckIntervalSec int    `mapstructure:"neighbor_check_interval_secs"`
	DeviceTimeoutSec         int    `mapstructure:"device_timeout_secs"`
	EventQueueCapacity       int    `mapstructure:"event_queue_capacity"`
	LogCleanupEnabled        bool   `mapstructure:"log_cleanup_enabled"`
	LogRetentionDays         int    `mapstructure:"log_retention_days"`
	LogCleanupSchedule       string `mapstructure:"log_cleanup_schedule"`
	ShutdownGraceSec         int    `mapstructure:"shutdown_grace_secs"`
}

func (d Daemon) NeighborCheckInterval() time.Duration {
	return time.Duration(d.NeighborCheckIntervalSec) * time.Second
}

func (d Daemon) DeviceTimeout() time.Duration {
	return time.Duration(d.DeviceTimeoutSec) * time.Second
}

func (d Daemon) ShutdownGrace() time.Duration {
	return time.Duration(d.ShutdownGraceSec) * time.Second
}

type Database struct {
	URL string `mapstructure:"url"`
}

type API struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Listen overrides Host/Port when set (HTTP_ADDR).
	Listen string `mapstructure:"listen"`
}

func (a API) Addr() string {
	if a.Listen != "" {
		return a.Listen
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Daemon   Daemon   `mapstructure:"daemon"`
	Database Database `mapstructure:"database"`
	API      API      `mapstructure:"api"`
	Log      Log      `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("daemon.interface", "wlan0")
	// Capture is on by default only in builds that can open an interface.
	v.SetDefault("daemon.capture_enabled", capture.Available)
	v.SetDefault("daemon.capture_filter", "arp or (udp port 67 or udp port 68)")
	v.SetDefault("daemon.neighbor_enabled", true)
	v.SetDefault("daemon.arp_table_path", "/proc/net/arp")
	v.SetDefault("daemon.neighbor_check_interval_secs", 30)
	v.SetDefault("daemon.device_timeout_secs", 60)
	v.SetDefault("daemon.event_queue_capacity", 100)
	v.SetDefault("daemon.log_cleanup_enabled", true)
	v.SetDefault("daemon.log_retention_days", 30)
	v.SetDefault("daemon.log_cleanup_schedule", "@every 24h")
	v.SetDefault("daemon.shutdown_grace_secs", 5)
	v.SetDefault("database.url", "")
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.listen", "")
	v.SetDefault("log.level", "info")
}

// Load reads .env (if present), then the file named by FOXD_CONFIG or
// config.toml in the working directory (if present), then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("FOXD_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	return LoadFile(path, explicit)
}

// LoadFile loads the given config file. A missing file is an error only when
// required is set.
func LoadFile(path string, required bool) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FOXD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", "FOXD_DATABASE_URL", "DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("log.level", "FOXD_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("api.listen", "FOXD_API_LISTEN", "HTTP_ADDR"); err != nil {
		return Config{}, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if required {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.URL) == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Daemon.NeighborCheckIntervalSec <= 0 {
		errs = append(errs, errors.New("daemon.neighbor_check_interval_secs must be positive"))
	}
	if c.Daemon.DeviceTimeoutSec <= 0 {
		errs = append(errs, errors.New("daemon.device_timeout_secs must be positive"))
	}
	if c.Daemon.EventQueueCapacity <= 0 {
		errs = append(errs, errors.New("daemon.event_queue_capacity must be positive"))
	}
	if c.Daemon.LogCleanupEnabled && c.Daemon.LogRetentionDays <= 0 {
		errs = append(errs, errors.New("daemon.log_retention_days must be positive"))
	}
	if c.Daemon.CaptureEnabled && strings.TrimSpace(c.Daemon.Interface) == "" {
		errs = append(errs, errors.New("daemon.interface is required when capture is enabled"))
	}
	if c.API.Listen == "" && (c.API.Port <= 0 || c.API.Port > 65535) {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
