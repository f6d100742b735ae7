package models

// Message types sent to live view websocket clients.
const (
	MessageTypeConnection = "connection"
	MessageTypeView       = "view"
	MessageTypeNavigate   = "navigate"
)

// ConnectionResponse is sent when a client connects to the WebSocket
type ConnectionResponse struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ViewUpdate carries the rendered state of a call to its viewers.
type ViewUpdate struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	View      any    `json:"view"`
}

// Navigate tells the viewers of a session to leave for another page.
type Navigate struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	Destination string `json:"destination"`
}
