package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "VOICE_API_URL", "OPENAI_MODEL", "FEEDBACK_TIMEOUT", "SESSION_MAX_AGE", "LOG_FORMAT", "FIRESTORE_FEEDBACK_COLLECTION"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != "8081" {
		t.Fatalf("Port=%q", cfg.Port)
	}
	if cfg.VoiceAPIURL != "https://api.vapi.ai" {
		t.Fatalf("VoiceAPIURL=%q", cfg.VoiceAPIURL)
	}
	if cfg.FeedbackTimeout != 2*time.Minute || cfg.SessionMaxAge != 7*24*time.Hour {
		t.Fatalf("durations: feedback=%s session=%s", cfg.FeedbackTimeout, cfg.SessionMaxAge)
	}
	if cfg.FeedbackCollection != "feedback" || cfg.LogFormat != "json" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VOICE_API_URL", "http://voice.local/")
	t.Setenv("VOICE_WORKFLOW_ID", "wf-1")
	t.Setenv("FEEDBACK_TIMEOUT", "45s")
	t.Setenv("LOG_FORMAT", "Console")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != "9090" || cfg.VoiceWorkflowID != "wf-1" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.VoiceAPIURL != "http://voice.local" {
		t.Fatalf("VoiceAPIURL=%q, want trailing slash trimmed", cfg.VoiceAPIURL)
	}
	if cfg.FeedbackTimeout != 45*time.Second {
		t.Fatalf("FeedbackTimeout=%s", cfg.FeedbackTimeout)
	}
	if cfg.LogFormat != "console" {
		t.Fatalf("LogFormat=%q", cfg.LogFormat)
	}
}

func TestFromEnv_BadValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"CALL_IDLE_TIMEOUT", "soon", "CALL_IDLE_TIMEOUT"},
		{"CALL_SWEEP_INTERVAL", "-1s", "CALL_SWEEP_INTERVAL"},
		{"LOG_FORMAT", "xml", "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err=%v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoad_DotenvDoesNotOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PORT=7070\nVOICE_WORKFLOW_ID=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("PORT", "6060")
	t.Setenv("VOICE_WORKFLOW_ID", "")
	os.Unsetenv("VOICE_WORKFLOW_ID")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "6060" {
		t.Fatalf("Port=%q, want env value", cfg.Port)
	}
	if cfg.VoiceWorkflowID != "from-file" {
		t.Fatalf("VoiceWorkflowID=%q, want file value", cfg.VoiceWorkflowID)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestDefaultInterviewer_HasQuestionsPlaceholder(t *testing.T) {
	a := DefaultInterviewer()
	if len(a.Model.Messages) != 1 || !strings.Contains(a.Model.Messages[0].Content, "{{questions}}") {
		t.Fatalf("interviewer prompt missing {{questions}}")
	}
}
