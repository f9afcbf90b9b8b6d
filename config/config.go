package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PRESENCE"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Directory DirectoryConfig `mapstructure:"directory"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	WSPath          string        `mapstructure:"ws_path"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
	Otel   bool   `mapstructure:"otel"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // file | sqlite
	Dir        string `mapstructure:"dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type RegistryConfig struct {
	SendBuffer           int           `mapstructure:"send_buffer"`
	SendTimeout          time.Duration `mapstructure:"send_timeout"`
	BroadcastConcurrency int           `mapstructure:"broadcast_concurrency"`
}

type DirectoryConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
	Users     []UserEntry   `mapstructure:"users"`
}

type UserEntry struct {
	ID    int64  `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

type PubSubConfig struct {
	Driver  string `mapstructure:"driver"` // none | gochannel | amqp
	AMQPURL string `mapstructure:"amqp_url"`
	Topic   string `mapstructure:"topic"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3050")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.read_limit", 8192)
	v.SetDefault("server.write_wait", 10*time.Second)
	v.SetDefault("server.pong_wait", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.otel", false)

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", "data")
	v.SetDefault("store.sqlite_path", "data/presence.db")

	v.SetDefault("registry.send_buffer", 256)
	v.SetDefault("registry.send_timeout", 500*time.Millisecond)
	v.SetDefault("registry.broadcast_concurrency", 16)

	v.SetDefault("directory.timeout", 2*time.Second)
	v.SetDefault("directory.cache_size", 1024)

	v.SetDefault("pubsub.driver", "none")
	v.SetDefault("pubsub.topic", "im_presence.events")
}

// Flags returns the command line overrides bound into the configuration.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("presence", pflag.ContinueOnError)
	fs.String("server.addr", "", "HTTP listen address")
	fs.String("log.level", "", "log level (debug, info, warn, error)")
	fs.String("store.driver", "", "snapshot store driver (file, sqlite)")
	fs.String("store.dir", "", "directory for the JSON snapshot files")
	return fs
}

// Loader keeps the viper instance alive so the file can be watched.
type Loader struct {
	v *viper.Viper
}

// LoadConfig reads defaults, the optional file at path, environment
// (PRESENCE_SERVER_ADDR, ...) and the given flags, in increasing precedence.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, *Loader, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		// Only flags the user actually set override lower layers.
		var bindErr error
		flags.Visit(func(f *pflag.Flag) {
			if err := v.BindPFlag(f.Name, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return nil, nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &Loader{v: v}, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store.driver: unsupported value %q", c.Store.Driver)
	}
	switch c.PubSub.Driver {
	case "none", "gochannel":
	case "amqp":
		if c.PubSub.AMQPURL == "" {
			return errors.New("pubsub.amqp_url is required for the amqp driver")
		}
	default:
		return fmt.Errorf("pubsub.driver: unsupported value %q", c.PubSub.Driver)
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		c.Server.WSPath = "/" + c.Server.WSPath
	}
	return nil
}

// Watch re-reads the config file on change and hands the result to fn.
// Without a config file it does nothing.
func (l *Loader) Watch(fn func(*Config, fsnotify.Event)) {
	if l == nil || l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(l.v)
		if err != nil {
			return
		}
		fn(cfg, e)
	})
	l.v.WatchConfig()
}
