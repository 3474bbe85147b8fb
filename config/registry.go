package env

import (
	"github.com/cockroachdb/errors"

	"svc-registry/compressor"
)

// RedisConfig holds the dynamic store's Redis connection settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MySQLConfig holds the static store's MySQL connection settings, used only
// when StaticBackend is "mysql".
type MySQLConfig struct {
	DBName string `mapstructure:"db_name"`
	User   string `mapstructure:"user"`
	Passwd string `mapstructure:"passwd"`
	Addr   string `mapstructure:"addr"`
}

// Config is the registryd process's full configuration, loaded via Read
// from configs/registryd/<APP_ENV>.yaml (the configs subdirectory named
// after the calling command's directory under cmd/) plus any matching
// environment variables.
type Config struct {
	Environment string `mapstructure:"environment"`

	Redis RedisConfig `mapstructure:"redis"`

	// StaticBackend selects the static store implementation: "file" or
	// "mysql".
	StaticBackend string      `mapstructure:"static_backend"`
	StaticPath    string      `mapstructure:"static_path"`
	MySQL         MySQLConfig `mapstructure:"mysql"`

	// Compression selects the column codec's compression algorithm:
	// "none", "zstd" or "lz4".
	Compression string `mapstructure:"compression"`

	// ReaperPageSize is the row page size the reaper scans per SSCAN call.
	ReaperPageSize int64 `mapstructure:"reaper_page_size"`
	// ReaperIntervalMs is the fixed delay, in milliseconds, between the
	// end of one reap pass and the start of the next.
	ReaperIntervalMs int64 `mapstructure:"reaper_interval_ms"`

	// MaxAgeMs bounds how far in the future a node may request a TTL for
	// a single announcement.
	MaxAgeMs int64 `mapstructure:"max_age_ms"`
}

// Compressor resolves Compression to a compressor.Compresser, defaulting to
// no compression when unset.
func (c Config) Compressor() (compressor.Compresser, error) {
	switch c.Compression {
	case "", "none":
		return compressor.NoneCompressor{}, nil
	case "zstd":
		return &compressor.ZstdCompressor{}, nil
	case "lz4":
		return compressor.Lz4Compressor{}, nil
	default:
		return nil, errors.Errorf("config: unknown compression algorithm %q", c.Compression)
	}
}
