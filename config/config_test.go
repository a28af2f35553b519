package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
telegram_token: "test-token"
telegram_chat_id: 12345
openai_api_key: "test-key"
publish_base_url: "https://blog.example.com/api"
writers:
  - id: "dawn"
    name: "Dawn Walker"
    interests: ["travel", "food"]
    quota: 2
  - id: "tex"
    name: "Textree"
    quota: 2
calendar:
  9:
    - keyword: "fall festival 2024"
      category: "seasonal"
      day: 20
      publish_before: 25
evergreen:
  - keyword: "beginner budgeting"
    category: "finance"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TelegramToken != "test-token" {
		t.Errorf("TelegramToken = %q, want 'test-token'", cfg.TelegramToken)
	}
	if cfg.TelegramChatID != 12345 {
		t.Errorf("TelegramChatID = %d, want 12345", cfg.TelegramChatID)
	}
	if len(cfg.Writers) != 2 {
		t.Fatalf("got %d writers, want 2", len(cfg.Writers))
	}
	if cfg.TotalSlots() != 4 {
		t.Errorf("TotalSlots() = %d, want 4", cfg.TotalSlots())
	}
	if len(cfg.Calendar[9]) != 1 {
		t.Errorf("got %d September events, want 1", len(cfg.Calendar[9]))
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CycleTime != "09:00" {
		t.Errorf("CycleTime = %q, want '09:00'", cfg.CycleTime)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want 'UTC'", cfg.Timezone)
	}
	if cfg.PublishWindowStartHour != 10 || cfg.PublishWindowEndHour != 22 {
		t.Errorf("publish window = %d..%d, want 10..22",
			cfg.PublishWindowStartHour, cfg.PublishWindowEndHour)
	}
	if cfg.MinGlobalGapMinutes != 60 {
		t.Errorf("MinGlobalGapMinutes = %d, want 60", cfg.MinGlobalGapMinutes)
	}
	if cfg.MinWriterGapMinutes != 180 {
		t.Errorf("MinWriterGapMinutes = %d, want 180", cfg.MinWriterGapMinutes)
	}
	if cfg.ApprovalTimeoutMinutes != 240 {
		t.Errorf("ApprovalTimeoutMinutes = %d, want 240", cfg.ApprovalTimeoutMinutes)
	}
	if cfg.DedupTTLDays != 30 {
		t.Errorf("DedupTTLDays = %d, want 30", cfg.DedupTTLDays)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "missing telegram token",
			mutate:  func(s string) string { return strings.Replace(s, `telegram_token: "test-token"`, "", 1) },
			wantErr: "telegram_token",
		},
		{
			name:    "missing chat id",
			mutate:  func(s string) string { return strings.Replace(s, "telegram_chat_id: 12345", "", 1) },
			wantErr: "telegram_chat_id",
		},
		{
			name:    "missing openai key",
			mutate:  func(s string) string { return strings.Replace(s, `openai_api_key: "test-key"`, "", 1) },
			wantErr: "openai_api_key",
		},
		{
			name: "no writers",
			mutate: func(s string) string {
				idx := strings.Index(s, "writers:")
				return s[:idx] + "writers: []\n"
			},
			wantErr: "writer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate(validYAML)))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadInvalidCycleTime(t *testing.T) {
	content := validYAML + "\ncycle_time: \"25:00\"\n"
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("expected error for invalid cycle_time")
	}
}

func TestLoadInvalidTimezone(t *testing.T) {
	content := validYAML + "\ntimezone: \"Invalid/Zone\"\n"
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestLoadEmptyPublishWindow(t *testing.T) {
	content := validYAML + "\npublish_window_start_hour: 20\npublish_window_end_hour: 10\n"
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("expected error for empty publish window")
	}
}

func TestWriterQuotaDefaulted(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for _, w := range cfg.Writers {
		if w.Quota != 2 {
			t.Errorf("writer %q quota = %d, want 2", w.ID, w.Quota)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("BLOGPILOT_CONFIG", "/etc/blogpilot/config.yaml")
	if got := GetConfigPath(); got != "/etc/blogpilot/config.yaml" {
		t.Errorf("GetConfigPath() = %q", got)
	}

	t.Setenv("BLOGPILOT_CONFIG", "")
	if got := GetConfigPath(); got != "./config.yaml" {
		t.Errorf("GetConfigPath() = %q, want './config.yaml'", got)
	}
}
