package models

// CallEventName names one of the events a voice session emits.
type CallEventName string

const (
	EventCallStart   CallEventName = "call-start"
	EventCallEnd     CallEventName = "call-end"
	EventMessage     CallEventName = "message"
	EventSpeechStart CallEventName = "speech-start"
	EventSpeechEnd   CallEventName = "speech-end"
	EventError       CallEventName = "error"
)

var callEventNames = [...]CallEventName{
	EventCallStart,
	EventCallEnd,
	EventMessage,
	EventSpeechStart,
	EventSpeechEnd,
	EventError,
}

// CallEventNames lists every event a voice session emits. The slice is a
// fresh copy on every call.
func CallEventNames() []CallEventName {
	return append([]CallEventName(nil), callEventNames[:]...)
}

const (
	MessageTypeTranscript = "transcript"

	TranscriptTypeFinal   = "final"
	TranscriptTypePartial = "partial"
)

// VoiceMessage is the payload of a "message" event.
type VoiceMessage struct {
	Type           string `json:"type"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Role           string `json:"role,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
}

// IsFinalTranscript reports whether the message is a stable utterance.
func (m VoiceMessage) IsFinalTranscript() bool {
	return m.Type == MessageTypeTranscript && m.TranscriptType == TranscriptTypeFinal
}

// CallEvent is a single event delivered by a voice session.
type CallEvent struct {
	Name    CallEventName
	Message *VoiceMessage
	Err     error
}

// VoiceStartRequest selects what the voice provider should run. Exactly one of
// WorkflowID, AssistantID or Assistant is set.
type VoiceStartRequest struct {
	WorkflowID     string
	AssistantID    string
	Assistant      *Assistant
	VariableValues map[string]string
}

// Assistant is an inline voice assistant definition.
type Assistant struct {
	Name         string         `json:"name"`
	FirstMessage string         `json:"firstMessage"`
	Transcriber  AssistantSTT   `json:"transcriber"`
	Voice        AssistantVoice `json:"voice"`
	Model        AssistantModel `json:"model"`
}

type AssistantSTT struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

type AssistantVoice struct {
	Provider        string  `json:"provider"`
	VoiceID         string  `json:"voiceId"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarityBoost"`
	Speed           float64 `json:"speed"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"useSpeakerBoost"`
}

type AssistantModel struct {
	Provider string             `json:"provider"`
	Model    string             `json:"model"`
	Messages []AssistantMessage `json:"messages"`
}

type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
