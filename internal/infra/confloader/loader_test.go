package confloader

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		Redis struct {
			Host        string        `koanf:"host"`
			Port        int           `koanf:"port"`
			ReadTimeout time.Duration `koanf:"read_timeout"`
		} `koanf:"redis"`
		HTTP struct {
			Addr    string `koanf:"addr"`
			Enabled bool   `koanf:"enabled"`
		} `koanf:"http"`
	} `koanf:"server"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memkv.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
		WithEnvAliases(map[string]string{"REDIS_HOST": "server.redis.host"}),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q, want %q", l.filePath, "/path/to/config.yaml")
	}
	if l.aliases["REDIS_HOST"] != "server.redis.host" {
		t.Errorf("alias not registered: %v", l.aliases)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  redis:
    host: "0.0.0.0"
    port: 7000
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if host := l.GetString("server.redis.host"); host != "0.0.0.0" {
		t.Errorf("server.redis.host = %q, want %q", host, "0.0.0.0")
	}
	if port := l.GetInt("server.redis.port"); port != 7000 {
		t.Errorf("server.redis.port = %d, want %d", port, 7000)
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
}

func TestLoader_LoadFile_Empty(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestLoader_LoadEnv_FallbackMapping(t *testing.T) {
	t.Setenv("MYAPP_SERVER_PORT", "9090")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if port := l.GetString("server.port"); port != "9090" {
		t.Errorf("server.port = %q, want %q", port, "9090")
	}
}

func TestLoader_Load_MultiWordEnvKey(t *testing.T) {
	t.Setenv("MEMKV_SERVER_REDIS_READ_TIMEOUT", "5s")
	t.Setenv("MEMKV_SERVER_HTTP_ENABLED", "true")

	var cfg testConfig
	if err := NewLoader().Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Redis.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.Redis.ReadTimeout)
	}
	if !cfg.Server.HTTP.Enabled {
		t.Error("HTTP.Enabled should be true")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()

	if err := l.LoadMap(map[string]any{
		"server.redis.host": "localhost",
		"log.level":         "debug",
	}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	if host := l.GetString("server.redis.host"); host != "localhost" {
		t.Errorf("server.redis.host = %q, want %q", host, "localhost")
	}
	if len(l.Keys()) != 2 {
		t.Errorf("Keys() = %v, want 2 keys", l.Keys())
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
server:
  redis:
    host: "from-file"
    port: 7000
`)
	t.Setenv("MEMKV_SERVER_REDIS_HOST", "from-env")

	var cfg testConfig
	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Redis.Host != "from-env" {
		t.Errorf("Host = %q, want %q (env should override file)", cfg.Server.Redis.Host, "from-env")
	}
	if cfg.Server.Redis.Port != 7000 {
		t.Errorf("Port = %d, want 7000 from file", cfg.Server.Redis.Port)
	}
}

func TestLoader_Load_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
log:
  level: warn
`)

	var cfg testConfig
	cfg.Server.Redis.Host = "127.0.0.1"
	cfg.Server.Redis.Port = 6379

	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Redis.Host != "127.0.0.1" || cfg.Server.Redis.Port != 6379 {
		t.Errorf("defaults overwritten: %+v", cfg.Server.Redis)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoader_Load_EnvAliases(t *testing.T) {
	t.Setenv("REDIS_HOST", "alias-host")
	t.Setenv("REDIS_PORT", "6400")

	aliases := map[string]string{
		"REDIS_HOST": "server.redis.host",
		"REDIS_PORT": "server.redis.port",
	}

	var cfg testConfig
	if err := NewLoader(WithEnvAliases(aliases)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Redis.Host != "alias-host" {
		t.Errorf("Host = %q, want alias-host", cfg.Server.Redis.Host)
	}
	if cfg.Server.Redis.Port != 6400 {
		t.Errorf("Port = %d, want 6400", cfg.Server.Redis.Port)
	}

	// Prefixed variables win over aliases.
	t.Setenv("MEMKV_SERVER_REDIS_HOST", "prefixed-host")
	var cfg2 testConfig
	if err := NewLoader(WithEnvAliases(aliases)).Load(&cfg2); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg2.Server.Redis.Host != "prefixed-host" {
		t.Errorf("Host = %q, want prefixed-host", cfg2.Server.Redis.Host)
	}
}

func TestLoader_IsLoaded(t *testing.T) {
	l := NewLoader()

	if l.IsLoaded() {
		t.Error("IsLoaded() should be false before Load()")
	}

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestKeyPaths(t *testing.T) {
	got := KeyPaths(&testConfig{})
	want := []string{
		"server.redis.host",
		"server.redis.port",
		"server.redis.read_timeout",
		"server.http.addr",
		"server.http.enabled",
		"log.level",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("KeyPaths() = %v, want %v", got, want)
	}

	if got := KeyPaths(42); got != nil {
		t.Errorf("KeyPaths(non-struct) = %v, want nil", got)
	}
}
