package agent

import (
	"strings"

	"mockmate/models"
)

// FormatQuestions renders a question list the way the interviewer prompt
// expects it: one "- " prefixed question per line.
func FormatQuestions(questions []string) string {
	if len(questions) == 0 {
		return ""
	}
	lines := make([]string, len(questions))
	for i, q := range questions {
		lines[i] = "- " + q
	}
	return strings.Join(lines, "\n")
}

// Targets are the provider-side configurations a call can run.
type Targets struct {
	// WorkflowID selects the interview generation workflow.
	WorkflowID string
	// InterviewerID references a stored interviewer assistant. When empty,
	// Interviewer is sent inline.
	InterviewerID string
	Interviewer   *models.Assistant
}

func startRequest(session models.SessionContext, targets Targets) models.VoiceStartRequest {
	if session.Mode == models.ModeGenerate {
		return models.VoiceStartRequest{
			WorkflowID: targets.WorkflowID,
			VariableValues: map[string]string{
				"username": session.UserName,
				"userid":   session.UserID,
			},
		}
	}

	req := models.VoiceStartRequest{
		VariableValues: map[string]string{
			"questions": FormatQuestions(session.Questions),
		},
	}
	if targets.InterviewerID != "" {
		req.AssistantID = targets.InterviewerID
	} else {
		req.Assistant = targets.Interviewer
	}
	return req
}
