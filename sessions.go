package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mockmate/agent"
	"mockmate/models"
	"mockmate/services"
)

// voiceSession is what a mounted session needs from the voice provider.
type voiceSession interface {
	agent.VoiceSession
	Call() *services.CallInfo
	Close()
}

// callSession stores a mounted interview call and its viewers' activity.
type callSession struct {
	ID     string
	UserID string
	Agent  *agent.Agent
	Voice  voiceSession

	mutex        sync.Mutex
	lastActivity time.Time
}

func (s *callSession) touch() {
	s.mutex.Lock()
	s.lastActivity = time.Now()
	s.mutex.Unlock()
}

func (s *callSession) idleSince(threshold time.Time) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastActivity.Before(threshold)
}

// unmount ends a call that is still running, then detaches the agent from
// its voice session and stops routing provider events to it. A practice call
// ended this way still gets its feedback stored. A call whose start is still
// in flight is stopped by the agent once the provider answers.
func (s *callSession) unmount(ctx context.Context, log zerolog.Logger) {
	switch s.Agent.Phase() {
	case models.PhaseConnecting, models.PhaseActive:
		if err := s.Agent.EndCall(ctx); err != nil {
			log.Warn().Err(err).Str("session_id", s.ID).Msg("end call on unmount")
		}
	}
	s.Agent.Unmount()
	s.Voice.Close()
}

type sessionRegistry struct {
	log zerolog.Logger

	mutex    sync.RWMutex
	sessions map[string]*callSession
}

func newSessionRegistry(log zerolog.Logger) *sessionRegistry {
	return &sessionRegistry{log: log, sessions: make(map[string]*callSession)}
}

func (r *sessionRegistry) add(s *callSession) {
	s.touch()
	r.mutex.Lock()
	r.sessions[s.ID] = s
	r.mutex.Unlock()
}

// get returns a session and marks it active.
func (r *sessionRegistry) get(id string) (*callSession, bool) {
	r.mutex.RLock()
	s, ok := r.sessions[id]
	r.mutex.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

func (r *sessionRegistry) remove(id string) (*callSession, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	return s, ok
}

func (r *sessionRegistry) len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

// removeIdle removes and returns the sessions idle since before threshold.
func (r *sessionRegistry) removeIdle(threshold time.Time) []*callSession {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var idle []*callSession
	for id, s := range r.sessions {
		if s.idleSince(threshold) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	return idle
}

func (r *sessionRegistry) removeAll() []*callSession {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	all := make([]*callSession, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	return all
}

// cleanupInactive periodically removes sessions nobody has touched within
// idle, until ctx is done.
func (r *sessionRegistry) cleanupInactive(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, s := range r.removeIdle(now.Add(-idle)) {
				s.unmount(ctx, r.log)
				r.log.Info().Str("session_id", s.ID).Msg("removed inactive call session")
			}
		}
	}
}

// shutdown unmounts every session and waits for their feedback to be stored.
func (r *sessionRegistry) shutdown(ctx context.Context) {
	sessions := r.removeAll()
	for _, s := range sessions {
		s.unmount(ctx, r.log)
	}
	for _, s := range sessions {
		s.Agent.Wait()
	}
}
