package models

import (
	"fmt"
	"strings"
)

// CallPhase is the lifecycle phase of a single call session.
type CallPhase int

const (
	PhaseIdle CallPhase = iota
	PhaseConnecting
	PhaseActive
	PhaseFinished
)

func (p CallPhase) String() string {
	switch p {
	case PhaseIdle:
		return "INACTIVE"
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseActive:
		return "ACTIVE"
	case PhaseFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the phase by name so views serialize readably.
func (p CallPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *CallPhase) UnmarshalText(text []byte) error {
	for _, candidate := range []CallPhase{PhaseIdle, PhaseConnecting, PhaseActive, PhaseFinished} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown call phase %q", text)
}

// Mode selects what a call is for.
type Mode string

const (
	// ModeGenerate runs the workflow that builds a new interview.
	ModeGenerate Mode = "generate"
	// ModePractice runs a mock interview over a stored question list.
	ModePractice Mode = "practice"
)

// ParseMode accepts "generate", "practice" and the legacy "interview" alias.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generate":
		return ModeGenerate, nil
	case "practice", "interview":
		return ModePractice, nil
	}
	return "", fmt.Errorf("unknown call type %q", s)
}

// SessionContext identifies the interview a call is conducted for. It is
// supplied once when the session is mounted.
type SessionContext struct {
	InterviewID string   `json:"interview_id,omitempty"`
	FeedbackID  string   `json:"feedback_id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	UserName    string   `json:"user_name"`
	Mode        Mode     `json:"mode"`
	Questions   []string `json:"questions,omitempty"`
}
