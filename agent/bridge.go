package agent

import (
	"sync"

	"github.com/rs/zerolog"

	"mockmate/models"
)

// Bridge turns the raw events of a voice session into calls on its hooks.
// Nil hooks are skipped.
type Bridge struct {
	CallStarted func()
	CallEnded   func()
	Utterance   func(models.TranscriptEntry)
	Speaking    func(speaking bool)
	Error       func(err error)

	Log zerolog.Logger
}

// Attach subscribes to every event of the session and returns a func that
// removes all of those subscriptions. If subscribing panics, the
// subscriptions made so far are removed before the panic continues.
func (b *Bridge) Attach(session VoiceSession) (release func()) {
	handlers := map[models.CallEventName]func(models.CallEvent){
		models.EventCallStart:   b.onCallStart,
		models.EventCallEnd:     b.onCallEnd,
		models.EventMessage:     b.onMessage,
		models.EventSpeechStart: b.onSpeechStart,
		models.EventSpeechEnd:   b.onSpeechEnd,
		models.EventError:       b.onError,
	}

	unsubs := make([]func(), 0, len(handlers))
	releaseAll := func() {
		for i := len(unsubs) - 1; i >= 0; i-- {
			if unsubs[i] != nil {
				unsubs[i]()
			}
		}
	}

	attached := false
	defer func() {
		if !attached {
			releaseAll()
		}
	}()
	for _, name := range models.CallEventNames() {
		unsubs = append(unsubs, session.On(name, handlers[name]))
	}
	attached = true

	var once sync.Once
	return func() { once.Do(releaseAll) }
}

func (b *Bridge) onCallStart(models.CallEvent) {
	if b.CallStarted != nil {
		b.CallStarted()
	}
}

func (b *Bridge) onCallEnd(models.CallEvent) {
	if b.CallEnded != nil {
		b.CallEnded()
	}
}

func (b *Bridge) onMessage(ev models.CallEvent) {
	if ev.Message == nil || !ev.Message.IsFinalTranscript() {
		return
	}
	speaker, ok := models.SpeakerFromRole(ev.Message.Role)
	if !ok {
		b.Log.Debug().Str("role", ev.Message.Role).Msg("dropping transcript with unknown role")
		return
	}
	if b.Utterance != nil {
		b.Utterance(models.TranscriptEntry{Speaker: speaker, Text: ev.Message.Transcript})
	}
}

func (b *Bridge) onSpeechStart(models.CallEvent) {
	b.Log.Debug().Msg("speech start")
	if b.Speaking != nil {
		b.Speaking(true)
	}
}

func (b *Bridge) onSpeechEnd(models.CallEvent) {
	b.Log.Debug().Msg("speech end")
	if b.Speaking != nil {
		b.Speaking(false)
	}
}

func (b *Bridge) onError(ev models.CallEvent) {
	b.Log.Warn().Err(ev.Err).Msg("voice session error")
	if b.Error != nil {
		b.Error(ev.Err)
	}
}
