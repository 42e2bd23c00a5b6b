package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	if cfg.Digest.MaxPerGroup != 5 {
		t.Fatalf("expected default maxPerGroup 5, got %d", cfg.Digest.MaxPerGroup)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Scanner != "googlenews" {
		t.Fatalf("unexpected default sources: %+v", cfg.Sources)
	}
	if cfg.Storage.Driver != DriverNone {
		t.Fatalf("unexpected default driver: %s", cfg.Storage.Driver)
	}
	if cfg.Digest.Location() == nil {
		t.Fatalf("location must always resolve")
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
topic:
  label: "SDV"
digest:
  maxPerGroup: 3
  timezone: "UTC"
rules:
  exclude: ["광고"]
storage:
  driver: mysql
  redisTTL: 48h
delivery:
  channel: telegram
http:
  timeout: 3s
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("MYSQL_HOST", "db.local")
	t.Setenv("MYSQL_USER", "news")
	t.Setenv("MYSQL_PASSWORD", "secret")
	t.Setenv("MYSQL_DB", "crawler")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Load(path)

	if cfg.Topic.Label != "SDV" || cfg.Topic.Query == "" {
		t.Fatalf("topic not merged: %+v", cfg.Topic)
	}
	if cfg.Digest.MaxPerGroup != 3 {
		t.Fatalf("expected maxPerGroup 3, got %d", cfg.Digest.MaxPerGroup)
	}
	if cfg.Digest.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Digest.Location())
	}
	if len(cfg.Rules.Exclude) != 1 || len(cfg.Rules.Strong) == 0 {
		t.Fatalf("rules should merge per family: %+v", cfg.Rules)
	}
	if cfg.Storage.RedisTTL != 48*time.Hour || cfg.HTTP.Timeout != 3*time.Second {
		t.Fatalf("durations not parsed: ttl=%v timeout=%v", cfg.Storage.RedisTTL, cfg.HTTP.Timeout)
	}
	if !strings.Contains(cfg.Storage.DSN, "news:secret@tcp(db.local:3306)/crawler") {
		t.Fatalf("mysql dsn not assembled: %s", cfg.Storage.DSN)
	}
	if cfg.Delivery.Telegram.BotToken != "token" || cfg.Delivery.Telegram.ChatID != "42" {
		t.Fatalf("telegram env overrides not applied: %+v", cfg.Delivery.Telegram)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected log level override, got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestDatabaseDSNWinsOverMySQLParts(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MySQL")
	t.Setenv("DATABASE_DSN", "u:p@tcp(other:3306)/db")
	t.Setenv("MYSQL_HOST", "ignored")
	t.Setenv("MYSQL_DB", "ignored")

	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Storage.Driver != DriverMySQL {
		t.Fatalf("expected mysql driver, got %s", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN != "u:p@tcp(other:3306)/db" {
		t.Fatalf("unexpected dsn: %s", cfg.Storage.DSN)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Digest.MaxPerGroup = 0
	cfg.Storage.Driver = "oracle"
	cfg.Delivery.Channel = ChannelSlack

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, fragment := range []string{"maxPerGroup", "oracle", "SLACK_BOT_TOKEN"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error: %v", fragment, err)
		}
	}

	cfg = defaultConfig()
	cfg.Delivery.Channel = ChannelStdout
	if err := cfg.Validate(); err != nil {
		t.Fatalf("stdout delivery with no storage should be valid: %v", err)
	}
}

func TestValidateMessageFormats(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Delivery.Channel = ChannelStdout
	cfg.Digest.Messages = map[string]string{
		"groupHeader": "*%s*",
		"moreLine":    "%s more",
		"topicLine":   "- topic: %s",
		"itemLine":    "%d. %[3]s (%[2]s)",
		"footer":      "bye",
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected message format errors")
	}
	for _, fragment := range []string{"digest.messages.groupHeader", "EXTRA", "digest.messages.moreLine", `unknown key "footer"`} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error: %v", fragment, err)
		}
	}
	for _, fragment := range []string{"topicLine", "itemLine"} {
		if strings.Contains(err.Error(), fragment) {
			t.Fatalf("valid format %s should pass: %v", fragment, err)
		}
	}

	cfg.Digest.Messages = map[string]string{"groupHeader": "%s 그룹 (%d)"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("matching formats should validate: %v", err)
	}
}
