package agent

import (
	"sync"

	"mockmate/models"
)

// Transcript is an append-only, ordered list of finalized utterances.
// It is safe for concurrent use; entries keep the order Append was called in.
type Transcript struct {
	mu      sync.Mutex
	entries []models.TranscriptEntry
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Append(entry models.TranscriptEntry) {
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
}

// Latest returns the most recent entry. ok is false while the transcript is empty.
func (t *Transcript) Latest() (entry models.TranscriptEntry, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return models.TranscriptEntry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Entries returns a copy of the transcript.
func (t *Transcript) Entries() []models.TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
