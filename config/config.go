// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	VoiceAPIURL        string
	VoiceAPIKey        string
	VoiceWebhookSecret string
	// VoiceWorkflowID selects the interview generation workflow.
	VoiceWorkflowID string
	// VoiceInterviewerID references a stored interviewer assistant. When
	// empty, DefaultInterviewer is sent inline.
	VoiceInterviewerID string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	FirebaseCredentialsJSON string
	FirebaseCredentialsFile string
	FirebaseProjectID       string

	UsersCollection      string
	InterviewsCollection string
	FeedbackCollection   string

	SessionCookieName string
	SessionMaxAge     time.Duration

	FeedbackTimeout   time.Duration
	CallIdleTimeout   time.Duration
	CallSweepInterval time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env files (missing ones are skipped) and then the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                    getenv("PORT", "8081"),
		VoiceAPIURL:             strings.TrimRight(getenv("VOICE_API_URL", "https://api.vapi.ai"), "/"),
		VoiceAPIKey:             os.Getenv("VOICE_API_KEY"),
		VoiceWebhookSecret:      os.Getenv("VOICE_WEBHOOK_SECRET"),
		VoiceWorkflowID:         os.Getenv("VOICE_WORKFLOW_ID"),
		VoiceInterviewerID:      os.Getenv("VOICE_INTERVIEWER_ASSISTANT_ID"),
		OpenAIAPIKey:            os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:           os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:             getenv("OPENAI_MODEL", "gpt-4o-mini"),
		FirebaseCredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		UsersCollection:         getenv("FIRESTORE_USERS_COLLECTION", "users"),
		InterviewsCollection:    getenv("FIRESTORE_INTERVIEWS_COLLECTION", "interviews"),
		FeedbackCollection:      getenv("FIRESTORE_FEEDBACK_COLLECTION", "feedback"),
		SessionCookieName:       getenv("SESSION_COOKIE_NAME", "session"),
		LogLevel:                strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(getenv("LOG_FORMAT", "json")),
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"SESSION_MAX_AGE", 7 * 24 * time.Hour, &cfg.SessionMaxAge},
		{"FEEDBACK_TIMEOUT", 2 * time.Minute, &cfg.FeedbackTimeout},
		{"CALL_IDLE_TIMEOUT", 30 * time.Minute, &cfg.CallIdleTimeout},
		{"CALL_SWEEP_INTERVAL", 5 * time.Minute, &cfg.CallSweepInterval},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dest = v
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return nil, fmt.Errorf("LOG_FORMAT: unsupported value %q", cfg.LogFormat)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, raw)
	}
	return d, nil
}
