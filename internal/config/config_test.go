package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.Timezone != "Asia/Shanghai" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.CountdownCount != 2 {
		t.Errorf("expected countdown count 2, got %d", cfg.CountdownCount)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600, got %o", perm)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
listen: ":9000"
store:
  driver: sqlite
poster:
  scale: 2
basic_auth:
  username: admin
  password_hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "/var/lib/auracal/auracal.db" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Poster.Scale != 2 || cfg.Poster.Width != 380 || cfg.Poster.SettleMillis != 200 {
		t.Errorf("unexpected poster config %+v", cfg.Poster)
	}
	if cfg.RefreshCron != "5 0 * * *" {
		t.Errorf("refresh = %q", cfg.RefreshCron)
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "admin" || cfg.BasicAuth.PasswordHash == "" {
		t.Errorf("unexpected basic auth %+v", cfg.BasicAuth)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("listen: [unterminated"), 0o600)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Telegram = TelegramConfig{Token: "t", ChatID: 42, SendPoster: true}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !back.TelegramEnabled() || back.Telegram.ChatID != 42 || !back.Telegram.SendPoster {
		t.Errorf("telegram config lost: %+v", back.Telegram)
	}
}

func TestAPIKeyResolution(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "from-api-key")

	cfg := DefaultConfig()
	if got := cfg.APIKey(); got != "from-api-key" {
		t.Errorf("expected API_KEY fallback, got %q", got)
	}

	t.Setenv("GEMINI_API_KEY", "from-gemini")
	if got := cfg.APIKey(); got != "from-gemini" {
		t.Errorf("expected GEMINI_API_KEY, got %q", got)
	}

	cfg.AI.APIKey = "from-config"
	if got := cfg.APIKey(); got != "from-config" {
		t.Errorf("expected config key, got %q", got)
	}
}

func TestUseDevPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseDevPaths()
	if cfg.CacheDir != "./cache/daily" || cfg.Store.Path != "./cache/memorials.json" {
		t.Errorf("unexpected dev paths %q %q", cfg.CacheDir, cfg.Store.Path)
	}

	cfg = DefaultConfig()
	cfg.Store.Path = "/data/m.json"
	cfg.UseDevPaths()
	if cfg.Store.Path != "/data/m.json" {
		t.Errorf("explicit path should be kept, got %q", cfg.Store.Path)
	}
}
