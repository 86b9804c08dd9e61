package env

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"

	"github.com/luma/sonic/client"
)

// Config is shared by every sonic subcommand. Values are layered: defaults,
// then the TOML file, then the environment (.env.local included), then flags.
type Config struct {
	Host     string `toml:"host" env:"SONIC_HOST"`
	Port     int    `toml:"port" env:"SONIC_PORT"`
	Password string `toml:"password" env:"SONIC_PASSWORD"`

	DialTimeout time.Duration `toml:"dial_timeout" env:"SONIC_DIAL_TIMEOUT"`
	Timeout     time.Duration `toml:"timeout" env:"SONIC_TIMEOUT"`

	// LongTimeout bounds consolidate, backup and restore, zero waits forever
	LongTimeout time.Duration `toml:"long_timeout" env:"SONIC_LONG_TIMEOUT"`

	LogLevel string `toml:"log_level" env:"SONIC_LOG_LEVEL"`

	// Server only
	HTTPPort   string `toml:"http_port" env:"SONIC_HTTP_PORT"`
	DebugHTTP  bool   `toml:"debug_http" env:"SONIC_DEBUG_HTTP"`
	BufferSize int    `toml:"buffer_size" env:"SONIC_BUFFER_SIZE"`
	Reuseport  bool   `toml:"reuseport" env:"SONIC_REUSEPORT"`
	Trace      bool   `toml:"trace" env:"SONIC_TRACE"`
}

// DefaultConfig points at a local server with the stock password.
func DefaultConfig() Config {
	return Config{
		Host:        client.DefaultHost,
		Port:        client.DefaultPort,
		Password:    "SecretPassword",
		DialTimeout: client.DefaultDialTimeout,
		Timeout:     client.DefaultReadTimeout,
		LongTimeout: 5 * time.Minute,
		LogLevel:    "info",
		HTTPPort:    "1492",
		BufferSize:  20000,
		Reuseport:   true,
	}
}

// LoadConfig builds the configuration. path is an optional TOML file, it
// falls back to $SONIC_CONFIG.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	config := DefaultConfig()

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("Failed to load .env.local: %w", err)
		}
	}

	if path == "" {
		path = os.Getenv("SONIC_CONFIG")
	}

	if path != "" {
		md, err := toml.DecodeFile(path, &config)
		if err != nil {
			return nil, fmt.Errorf("Failed to load config file %s: %w", path, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}

			return nil, fmt.Errorf("Unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := overlayEnv(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// overlayEnv copies every variable that is set onto c, false and zero values
// included. envconfig leaves fields that already hold a value alone, so the
// environment is decoded into a blank Config first.
func overlayEnv(ctx context.Context, c *Config) error {
	var fromEnv Config
	if err := envconfig.Process(ctx, &fromEnv); err != nil {
		return fmt.Errorf("Failed to read the environment: %w", err)
	}

	dst := reflect.ValueOf(c).Elem()
	src := reflect.ValueOf(fromEnv)

	for i := 0; i < dst.NumField(); i++ {
		key, _, _ := strings.Cut(dst.Type().Field(i).Tag.Get("env"), ",")
		if key == "" {
			continue
		}

		if _, ok := os.LookupEnv(key); ok {
			dst.Field(i).Set(src.Field(i))
		}
	}

	return nil
}

// ClientOptions returns the options of a channel to the configured server.
func (c *Config) ClientOptions(log *zap.Logger) client.Options {
	return client.Options{
		Host:        c.Host,
		Port:        c.Port,
		Password:    c.Password,
		DialTimeout: c.DialTimeout,
		ReadTimeout: c.Timeout,
		LongTimeout: c.LongTimeout,
		Log:         log,
	}
}
