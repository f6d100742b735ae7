package models

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerCandidate   Speaker = "candidate"
	SpeakerSystem      Speaker = "system"
	SpeakerInterviewer Speaker = "interviewer"
)

// SpeakerFromRole maps a voice provider role onto a Speaker.
// Unknown roles are reported with ok == false.
func SpeakerFromRole(role string) (Speaker, bool) {
	switch role {
	case "user":
		return SpeakerCandidate, true
	case "assistant":
		return SpeakerInterviewer, true
	case "system":
		return SpeakerSystem, true
	}
	return "", false
}

// Role is the inverse of SpeakerFromRole.
func (s Speaker) Role() string {
	switch s {
	case SpeakerCandidate:
		return "user"
	case SpeakerInterviewer:
		return "assistant"
	default:
		return "system"
	}
}

// TranscriptEntry is one finalized utterance of a call.
type TranscriptEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript represents a single message in the conversation as it is sent to
// the feedback generator and stored.
type Transcript struct {
	Role    string `json:"role" firestore:"role"`
	Content string `json:"content" firestore:"content"`
}

// ToTranscript converts entries to their wire form, preserving order.
func ToTranscript(entries []TranscriptEntry) []Transcript {
	out := make([]Transcript, 0, len(entries))
	for _, e := range entries {
		out = append(out, Transcript{Role: e.Speaker.Role(), Content: e.Text})
	}
	return out
}
