// Package config layers flags, SNIPSERVE_* environment, an optional config
// file and defaults into one Config.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"snipserve/internal/dirs"
)

const envPrefix = "SNIPSERVE"

// Keys understood by Load.
const (
	KeyAddr         = "addr"
	KeyTempDir      = "temp_dir"
	KeyCleanupDelay = "cleanup_delay"
	KeyDLBinary     = "dl_binary"
	KeyFFmpegPath   = "ffmpeg_path"
	KeyStaticDir    = "static_dir"
	KeyVerbose      = "verbose"
	KeyRateLimit    = "rate_limit"
	KeyRateBurst    = "rate_burst"
	KeyProgressTTL  = "progress_ttl"
)

// Config is the resolved runtime configuration.
type Config struct {
	Addr         string
	TempDir      string // empty: a fresh OS temp dir per process
	CleanupDelay time.Duration
	DLBinary     string // empty: search PATH
	FFmpegPath   string // empty: search PATH and next to the executable
	StaticDir    string
	Verbose      bool
	RateLimit    float64 // downloads per second per client IP; 0 disables
	RateBurst    int
	ProgressTTL  time.Duration
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, ":5000")
	v.SetDefault(KeyTempDir, "")
	v.SetDefault(KeyCleanupDelay, 5*time.Minute)
	v.SetDefault(KeyDLBinary, "")
	v.SetDefault(KeyFFmpegPath, "")
	v.SetDefault(KeyStaticDir, "./static")
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyRateLimit, 2.0)
	v.SetDefault(KeyRateBurst, 5)
	v.SetDefault(KeyProgressTTL, 10*time.Minute)
}

// Init wires the global Viper with .env, config paths, env and defaults, and
// binds root's persistent flags. It is non-fatal: a missing .env or config
// file is ignored, other read errors are returned.
func Init(root *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	v := viper.GetViper()
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		v.AddConfigPath(cfgDir)
	}
	v.AddConfigPath(".")
	v.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if root != nil {
		BindFlags(v, root.PersistentFlags())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

// BindFlags binds every flag in fs whose name matches a key, with dashes for
// underscores ("temp-dir" → temp_dir).
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if isKey(key) {
			_ = v.BindPFlag(key, f)
		}
	})
}

func isKey(k string) bool {
	switch k {
	case KeyAddr, KeyTempDir, KeyCleanupDelay, KeyDLBinary, KeyFFmpegPath,
		KeyStaticDir, KeyVerbose, KeyRateLimit, KeyRateBurst, KeyProgressTTL:
		return true
	}
	return false
}

// Load reads the current values out of v.
func Load(v *viper.Viper) Config {
	return Config{
		Addr:         v.GetString(KeyAddr),
		TempDir:      v.GetString(KeyTempDir),
		CleanupDelay: v.GetDuration(KeyCleanupDelay),
		DLBinary:     v.GetString(KeyDLBinary),
		FFmpegPath:   v.GetString(KeyFFmpegPath),
		StaticDir:    v.GetString(KeyStaticDir),
		Verbose:      v.GetBool(KeyVerbose),
		RateLimit:    v.GetFloat64(KeyRateLimit),
		RateBurst:    v.GetInt(KeyRateBurst),
		ProgressTTL:  v.GetDuration(KeyProgressTTL),
	}
}
