// Package agent drives a single interview call. It tracks the call phase,
// collects the final transcript from the voice session's events and, once
// the call is over, either sends the user home or hands the transcript off
// for feedback.
package agent

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mockmate/models"
)

const defaultFeedbackTimeout = 2 * time.Minute

// VoiceSession is a call with the hosted voice provider.
type VoiceSession interface {
	Start(ctx context.Context, req models.VoiceStartRequest) error
	Stop(ctx context.Context) error
	// On registers handler for the named event and returns a func that
	// removes it again.
	On(name models.CallEventName, handler func(models.CallEvent)) (unsubscribe func())
}

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(destination string)
}

// NavigatorFunc adapts a func to Navigator.
type NavigatorFunc func(destination string)

func (f NavigatorFunc) Navigate(destination string) { f(destination) }

// FinishReason records how a call reached the finished phase.
type FinishReason string

const (
	FinishUserEnded   FinishReason = "user_ended"
	FinishRemoteEnded FinishReason = "remote_ended"
	FinishStartFailed FinishReason = "start_failed"
)

type Config struct {
	Session   models.SessionContext
	Voice     VoiceSession
	Targets   Targets
	Feedback  FeedbackCreator
	Navigator Navigator

	// OnChange is called with the new view after every state change, while
	// the agent's lock is held. It must not call back into the agent.
	OnChange func(View)

	Logger          zerolog.Logger
	FeedbackTimeout time.Duration
}

// Agent is the state machine of one call session. An Agent is single use:
// it goes Idle, Connecting, Active, Finished once and is then discarded.
type Agent struct {
	session         models.SessionContext
	voice           VoiceSession
	targets         Targets
	dispatcher      *FeedbackDispatcher
	nav             Navigator
	onChange        func(View)
	log             zerolog.Logger
	feedbackTimeout time.Duration

	mu         sync.Mutex
	phase      models.CallPhase
	transcript *Transcript
	speaking   bool
	lastErr    string
	reason     FinishReason
	mounted    bool
	unmounted  bool
	release    func()

	inflight sync.WaitGroup
}

func New(cfg Config) (*Agent, error) {
	if cfg.Voice == nil {
		return nil, ErrNoVoiceSession
	}
	if cfg.Navigator == nil {
		return nil, ErrNoNavigator
	}

	switch cfg.Session.Mode {
	case models.ModeGenerate:
		if cfg.Targets.WorkflowID == "" {
			return nil, ErrNoWorkflow
		}
	case models.ModePractice:
		if cfg.Session.InterviewID == "" || cfg.Session.UserID == "" {
			return nil, ErrMissingIdentity
		}
		if cfg.Feedback == nil {
			return nil, ErrNoFeedbackCreator
		}
		if cfg.Targets.InterviewerID == "" && cfg.Targets.Interviewer == nil {
			return nil, ErrNoInterviewer
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Session.Mode)
	}

	timeout := cfg.FeedbackTimeout
	if timeout <= 0 {
		timeout = defaultFeedbackTimeout
	}

	session := cfg.Session
	session.Questions = slices.Clone(session.Questions)
	log := cfg.Logger.With().Str("mode", string(session.Mode)).Logger()

	a := &Agent{
		session:         session,
		voice:           cfg.Voice,
		targets:         cfg.Targets,
		nav:             cfg.Navigator,
		onChange:        cfg.OnChange,
		log:             log,
		feedbackTimeout: timeout,
		transcript:      NewTranscript(),
	}
	if cfg.Feedback != nil {
		a.dispatcher = NewFeedbackDispatcher(cfg.Feedback, log)
	}
	return a, nil
}

// Mount subscribes the agent to its voice session's events.
func (a *Agent) Mount() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mounted || a.unmounted {
		return ErrAlreadyMounted
	}
	bridge := &Bridge{
		CallStarted: a.remoteCallStarted,
		CallEnded:   a.remoteCallEnded,
		Utterance:   a.appendUtterance,
		Speaking:    a.setSpeaking,
		Error:       a.remoteError,
		Log:         a.log,
	}
	a.release = bridge.Attach(a.voice)
	a.mounted = true
	a.changedLocked()
	return nil
}

// Unmount removes every event subscription. Events, state changes and
// navigations that arrive afterwards are dropped. Feedback already in flight
// is not cancelled.
func (a *Agent) Unmount() {
	a.mu.Lock()
	if a.unmounted {
		a.mu.Unlock()
		return
	}
	a.unmounted = true
	release := a.release
	a.release = nil
	a.mu.Unlock()

	if release != nil {
		release()
	}
	a.log.Debug().Msg("agent unmounted")
}

// StartCall moves an idle agent to connecting and asks the voice provider to
// start the call.
func (a *Agent) StartCall(ctx context.Context) error {
	a.mu.Lock()
	if a.unmounted {
		a.mu.Unlock()
		return ErrUnmounted
	}
	if !a.mounted {
		a.mu.Unlock()
		return ErrNotMounted
	}
	if a.phase != models.PhaseIdle {
		phase := a.phase
		a.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidPhase, phase)
	}
	a.phase = models.PhaseConnecting
	a.changedLocked()
	req := startRequest(a.session, a.targets)
	a.mu.Unlock()

	a.log.Info().Msg("starting call")
	err := a.voice.Start(ctx, req)

	a.mu.Lock()
	if err != nil {
		effect := noEffect
		if a.phase == models.PhaseConnecting && !a.unmounted {
			a.lastErr = err.Error()
			effect = a.finishLocked(FinishStartFailed)
		}
		a.mu.Unlock()
		effect()
		a.log.Error().Err(err).Msg("start call failed")
		return fmt.Errorf("start call: %w", err)
	}
	// The user hung up or left while the provider was still starting the
	// call, so nothing has stopped it yet.
	stale := a.unmounted || (a.phase == models.PhaseFinished && a.reason == FinishUserEnded)
	a.mu.Unlock()

	if stale {
		a.log.Info().Msg("call started after it was ended, stopping it")
		if err := a.voice.Stop(ctx); err != nil {
			a.log.Warn().Err(err).Msg("stop stale call")
		}
	}
	return nil
}

// EndCall finishes the call right away, without waiting for the provider to
// confirm, and then asks the provider to stop it.
func (a *Agent) EndCall(ctx context.Context) error {
	a.mu.Lock()
	switch {
	case a.unmounted:
		a.mu.Unlock()
		return ErrUnmounted
	case a.phase == models.PhaseIdle:
		a.mu.Unlock()
		return ErrNotStarted
	case a.phase == models.PhaseFinished:
		a.mu.Unlock()
		return nil
	}
	effect := a.finishLocked(FinishUserEnded)
	a.mu.Unlock()
	effect()

	a.log.Info().Msg("ending call")
	if err := a.voice.Stop(ctx); err != nil {
		return fmt.Errorf("stop call: %w", err)
	}
	return nil
}

// Wait blocks until feedback dispatches started by this agent are done.
func (a *Agent) Wait() {
	a.inflight.Wait()
}

func (a *Agent) Phase() models.CallPhase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// FinishReason is empty until the call has finished.
func (a *Agent) FinishReason() FinishReason {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reason
}

func (a *Agent) Transcript() []models.TranscriptEntry {
	return a.transcript.Entries()
}

func (a *Agent) Session() models.SessionContext {
	s := a.session
	s.Questions = slices.Clone(s.Questions)
	return s
}

func (a *Agent) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

func (a *Agent) remoteCallStarted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unmounted {
		return
	}
	if a.phase != models.PhaseConnecting {
		a.log.Debug().Stringer("phase", a.phase).Msg("ignoring call start")
		return
	}
	a.phase = models.PhaseActive
	a.changedLocked()
}

func (a *Agent) remoteCallEnded() {
	a.mu.Lock()
	if a.unmounted {
		a.mu.Unlock()
		return
	}
	effect := a.finishLocked(FinishRemoteEnded)
	a.mu.Unlock()
	effect()
}

func (a *Agent) appendUtterance(entry models.TranscriptEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unmounted {
		return
	}
	if a.phase != models.PhaseConnecting && a.phase != models.PhaseActive {
		a.log.Debug().Stringer("phase", a.phase).Msg("dropping transcript outside of call")
		return
	}
	a.transcript.Append(entry)
	a.changedLocked()
}

func (a *Agent) setSpeaking(speaking bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unmounted || a.phase == models.PhaseFinished || a.speaking == speaking {
		return
	}
	a.speaking = speaking
	a.changedLocked()
}

func (a *Agent) remoteError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unmounted || err == nil {
		return
	}
	a.lastErr = err.Error()
	a.changedLocked()
}

func noEffect() {}

// finishLocked moves the agent to finished and returns the side effect of
// doing so, to be run after the lock is released. Finished is entered at
// most once, so the effect runs at most once.
func (a *Agent) finishLocked(reason FinishReason) func() {
	if a.phase == models.PhaseFinished {
		return noEffect
	}
	a.phase = models.PhaseFinished
	a.reason = reason
	a.speaking = false
	a.changedLocked()
	a.log.Info().Str("reason", string(reason)).Int("messages", a.transcript.Len()).Msg("call finished")

	if reason == FinishStartFailed || a.session.Mode == models.ModeGenerate {
		return func() { a.navigate(HomePath) }
	}

	entries := a.transcript.Entries()
	a.inflight.Add(1)
	return func() { go a.dispatchFeedback(entries) }
}

func (a *Agent) dispatchFeedback(entries []models.TranscriptEntry) {
	defer a.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), a.feedbackTimeout)
	defer cancel()

	a.navigate(a.dispatcher.Dispatch(ctx, entries, a.session))
}

func (a *Agent) navigate(destination string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unmounted {
		a.log.Debug().Str("destination", destination).Msg("dropping navigation after unmount")
		return
	}
	a.nav.Navigate(destination)
}

func (a *Agent) viewLocked() View {
	latest, _ := a.transcript.Latest()
	return Render(State{
		Phase:        a.phase,
		Speaking:     a.speaking,
		MessageCount: a.transcript.Len(),
		Latest:       latest.Text,
		UserName:     a.session.UserName,
		Error:        a.lastErr,
	})
}

func (a *Agent) changedLocked() {
	if a.onChange != nil && !a.unmounted {
		a.onChange(a.viewLocked())
	}
}
