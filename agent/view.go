package agent

import "mockmate/models"

// Call button states.
const (
	ButtonCall = "call"
	ButtonEnd  = "end"
)

// State is what the live view is rendered from.
type State struct {
	Phase        models.CallPhase
	Speaking     bool
	MessageCount int
	Latest       string
	UserName     string
	Error        string
}

// View is the rendered call screen.
type View struct {
	Phase          models.CallPhase `json:"phase"`
	Speaking       bool             `json:"speaking"`
	ShowTranscript bool             `json:"show_transcript"`
	LatestMessage  string           `json:"latest_message,omitempty"`
	MessageCount   int              `json:"message_count"`
	CallButton     string           `json:"call_button"`
	Connecting     bool             `json:"connecting"`
	UserName       string           `json:"user_name"`
	Error          string           `json:"error,omitempty"`
}

// Render is a pure function of s.
func Render(s State) View {
	v := View{
		Phase:          s.Phase,
		Speaking:       s.Speaking,
		ShowTranscript: s.MessageCount > 0 || s.Speaking,
		MessageCount:   s.MessageCount,
		CallButton:     ButtonCall,
		Connecting:     s.Phase == models.PhaseConnecting,
		UserName:       s.UserName,
		Error:          s.Error,
	}
	if s.MessageCount > 0 {
		v.LatestMessage = s.Latest
	}
	if s.Phase == models.PhaseActive {
		v.CallButton = ButtonEnd
	}
	return v
}
