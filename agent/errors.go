package agent

import "errors"

var (
	ErrNoVoiceSession    = errors.New("agent: voice session is required")
	ErrNoNavigator       = errors.New("agent: navigator is required")
	ErrNoFeedbackCreator = errors.New("agent: feedback creator is required in practice mode")
	ErrNoWorkflow        = errors.New("agent: workflow id is required in generate mode")
	ErrNoInterviewer     = errors.New("agent: interviewer is required in practice mode")
	ErrMissingIdentity   = errors.New("agent: interview id and user id are required in practice mode")
	ErrUnknownMode       = errors.New("agent: unknown mode")

	ErrAlreadyMounted = errors.New("agent: already mounted")
	ErrNotMounted     = errors.New("agent: not mounted")
	ErrUnmounted      = errors.New("agent: unmounted")
	ErrInvalidPhase   = errors.New("agent: invalid phase for operation")
	ErrNotStarted     = errors.New("agent: call not started")
)
