package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load(newViper())
	want := Config{
		Addr:         ":5000",
		CleanupDelay: 5 * time.Minute,
		StaticDir:    "./static",
		RateLimit:    2,
		RateBurst:    5,
		ProgressTTL:  10 * time.Minute,
	}
	if cfg != want {
		t.Errorf("defaults = %+v\nwant %+v", cfg, want)
	}
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("SNIPSERVE_ADDR", ":7000")
	t.Setenv("SNIPSERVE_CLEANUP_DELAY", "30s")
	t.Setenv("SNIPSERVE_RATE_LIMIT", "0")

	v := newViper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("addr", ":5000", "")
	fs.String("temp-dir", "", "")
	fs.Bool("unrelated", false, "")
	BindFlags(v, fs)

	// env beats an unset flag's default
	if got := Load(v).Addr; got != ":7000" {
		t.Errorf("addr = %q, want env value", got)
	}

	if err := fs.Parse([]string{"--addr", ":9000", "--temp-dir", "/tmp/x"}); err != nil {
		t.Fatal(err)
	}
	cfg := Load(v)
	if cfg.Addr != ":9000" || cfg.TempDir != "/tmp/x" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.CleanupDelay != 30*time.Second || cfg.RateLimit != 0 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if v.IsSet("unrelated") {
		t.Error("unknown flag was bound")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("static_dir: /srv/www\nrate_burst: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	cfg := Load(v)
	if cfg.StaticDir != "/srv/www" || cfg.RateBurst != 9 {
		t.Errorf("config file not applied: %+v", cfg)
	}
}
