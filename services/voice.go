package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mockmate/models"
)

var (
	ErrCallAlreadyStarted = errors.New("voice: call already started")
	ErrSessionClosed      = errors.New("voice: session closed")
	ErrNoControlURL       = errors.New("voice: call has no control url")
	ErrUnknownCall        = errors.New("voice: unknown call")
)

// APIError is a non-2xx response from the voice provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voice api: status %d: %s", e.StatusCode, e.Body)
}

// CallInfo is the provider's description of a created call.
type CallInfo struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Monitor struct {
		ListenURL  string `json:"listenUrl"`
		ControlURL string `json:"controlUrl"`
	} `json:"monitor"`
	Transport struct {
		WebsocketCallURL string `json:"websocketCallUrl"`
	} `json:"transport"`
}

type callOverrides struct {
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

type createCallRequest struct {
	WorkflowID         string            `json:"workflowId,omitempty"`
	WorkflowOverrides  *callOverrides    `json:"workflowOverrides,omitempty"`
	AssistantID        string            `json:"assistantId,omitempty"`
	Assistant          *models.Assistant `json:"assistant,omitempty"`
	AssistantOverrides *callOverrides    `json:"assistantOverrides,omitempty"`
}

func newCreateCallRequest(req models.VoiceStartRequest) createCallRequest {
	overrides := &callOverrides{VariableValues: req.VariableValues}
	if req.WorkflowID != "" {
		return createCallRequest{WorkflowID: req.WorkflowID, WorkflowOverrides: overrides}
	}
	return createCallRequest{
		AssistantID:        req.AssistantID,
		Assistant:          req.Assistant,
		AssistantOverrides: overrides,
	}
}

// VoiceClient talks to the hosted voice provider's REST API.
type VoiceClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	router  *VoiceEventRouter
	log     zerolog.Logger
}

// NewVoiceClient builds a client. Sessions created from it register with
// router so provider webhooks reach them. httpClient may be nil.
func NewVoiceClient(baseURL, apiKey string, router *VoiceEventRouter, httpClient *http.Client, log zerolog.Logger) *VoiceClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &VoiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		router:  router,
		log:     log,
	}
}

// NewSession returns an idle session. Nothing is sent to the provider until
// Start is called.
func (c *VoiceClient) NewSession() *VoiceSession {
	return &VoiceSession{
		client:   c,
		log:      c.log,
		handlers: make(map[models.CallEventName]map[uint64]func(models.CallEvent)),
	}
}

func (c *VoiceClient) createCall(ctx context.Context, req models.VoiceStartRequest) (*CallInfo, error) {
	var info CallInfo
	if err := c.postJSON(ctx, c.baseURL+"/call", true, newCreateCallRequest(req), &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, errors.New("voice api: created call has no id")
	}
	return &info, nil
}

func (c *VoiceClient) postJSON(ctx context.Context, url string, authenticated bool, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// VoiceSession is one call with the voice provider. It emits the provider's
// events to subscribers one at a time, in the order they arrive.
type VoiceSession struct {
	client *VoiceClient
	log    zerolog.Logger

	mu     sync.Mutex
	call   *CallInfo
	closed bool

	handlersMu sync.Mutex
	handlers   map[models.CallEventName]map[uint64]func(models.CallEvent)
	nextID     uint64

	dispatchMu sync.Mutex
}

// Start creates the call with the provider.
func (s *VoiceSession) Start(ctx context.Context, req models.VoiceStartRequest) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.call != nil:
		s.mu.Unlock()
		return ErrCallAlreadyStarted
	}
	s.mu.Unlock()

	// The provider may send webhooks for the call before its create response
	// arrives; the router holds them until the session registers.
	router := s.client.router
	if router != nil {
		router.beginStart()
		defer router.endStart()
	}

	info, err := s.client.createCall(ctx, req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.call = info
	closed := s.closed
	s.mu.Unlock()

	if !closed && router != nil {
		router.register(info.ID, s)
	}
	s.log.Info().Str("call_id", info.ID).Msg("voice call created")
	return nil
}

// Stop asks the provider to end the call. Stopping a session whose call has
// not been created yet does nothing.
func (s *VoiceSession) Stop(ctx context.Context) error {
	call := s.Call()
	if call == nil {
		s.log.Debug().Msg("stop before call was created")
		return nil
	}
	if call.Monitor.ControlURL == "" {
		return ErrNoControlURL
	}
	return s.client.postJSON(ctx, call.Monitor.ControlURL, false, map[string]string{"type": "end-call"}, nil)
}

func (s *VoiceSession) On(name models.CallEventName, handler func(models.CallEvent)) func() {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	id := s.nextID
	s.nextID++
	if s.handlers[name] == nil {
		s.handlers[name] = make(map[uint64]func(models.CallEvent))
	}
	s.handlers[name][id] = handler

	return func() {
		s.handlersMu.Lock()
		defer s.handlersMu.Unlock()
		delete(s.handlers[name], id)
	}
}

// Emit delivers ev to the handlers subscribed to its name, in subscription
// order. Concurrent Emit calls are serialized.
func (s *VoiceSession) Emit(ev models.CallEvent) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.emitLocked(ev)
}

func (s *VoiceSession) emitLocked(ev models.CallEvent) {
	s.handlersMu.Lock()
	ids := make([]uint64, 0, len(s.handlers[ev.Name]))
	for id := range s.handlers[ev.Name] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	hs := make([]func(models.CallEvent), len(ids))
	for i, id := range ids {
		hs[i] = s.handlers[ev.Name][id]
	}
	s.handlersMu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

// Call returns the created call, or nil before Start succeeded.
func (s *VoiceSession) Call() *CallInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call == nil {
		return nil
	}
	c := *s.call
	return &c
}

// Close stops routing provider events to the session.
func (s *VoiceSession) Close() {
	s.mu.Lock()
	s.closed = true
	call := s.call
	s.mu.Unlock()

	if call != nil && s.client.router != nil {
		s.client.router.unregister(call.ID, s)
	}
}

// VoiceEventRouter receives provider webhooks and routes them to the session
// of the call they belong to.
type VoiceEventRouter struct {
	secret string
	log    zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*VoiceSession
	// starting counts Start calls waiting for the provider's create response.
	// While it is non-zero, events for unknown calls are held in pending.
	starting int
	pending  map[string][]models.CallEvent
}

// maxPendingEvents bounds the events held for one call that is not
// registered yet.
const maxPendingEvents = 64

func NewVoiceEventRouter(secret string, log zerolog.Logger) *VoiceEventRouter {
	return &VoiceEventRouter{
		secret:   secret,
		log:      log,
		sessions: make(map[string]*VoiceSession),
		pending:  make(map[string][]models.CallEvent),
	}
}

// Authorize checks the shared secret sent with a webhook. Without a
// configured secret every webhook is accepted.
func (r *VoiceEventRouter) Authorize(secret string) bool {
	if r.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(r.secret)) == 1
}

func (r *VoiceEventRouter) beginStart() {
	r.mu.Lock()
	r.starting++
	r.mu.Unlock()
}

func (r *VoiceEventRouter) endStart() {
	r.mu.Lock()
	r.starting--
	if r.starting == 0 {
		for id := range r.pending {
			r.log.Debug().Str("call_id", id).Msg("dropping events for unknown call")
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()
}

// register routes callID to s and replays the events that arrived before
// registration. Events routed after register are emitted after the replay.
func (r *VoiceEventRouter) register(callID string, s *VoiceSession) {
	r.mu.Lock()
	r.sessions[callID] = s
	held := r.pending[callID]
	delete(r.pending, callID)
	s.dispatchMu.Lock()
	r.mu.Unlock()

	defer s.dispatchMu.Unlock()
	for _, ev := range held {
		s.emitLocked(ev)
	}
}

func (r *VoiceEventRouter) unregister(callID string, s *VoiceSession) {
	r.mu.Lock()
	if r.sessions[callID] == s {
		delete(r.sessions, callID)
	}
	r.mu.Unlock()
}

func (r *VoiceEventRouter) lookup(callID string) *VoiceSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[callID]
}

type webhookEnvelope struct {
	Message webhookMessage `json:"message"`
}

type webhookMessage struct {
	Type string `json:"type"`
	Call struct {
		ID string `json:"id"`
	} `json:"call"`
	Status         string          `json:"status"`
	EndedReason    string          `json:"endedReason"`
	Role           string          `json:"role"`
	TranscriptType string          `json:"transcriptType"`
	Transcript     string          `json:"transcript"`
	Error          json.RawMessage `json:"error"`
}

// HandleWebhook routes one provider webhook body. Webhooks for calls no
// session is waiting for return ErrUnknownCall.
func (r *VoiceEventRouter) HandleWebhook(body []byte) error {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode webhook: %w", err)
	}
	msg := env.Message

	events := normalizeWebhook(msg)
	if len(events) == 0 {
		r.log.Debug().Str("type", msg.Type).Msg("ignoring voice webhook")
		return nil
	}

	return r.route(msg.Call.ID, events)
}

func (r *VoiceEventRouter) route(callID string, events []models.CallEvent) error {
	r.mu.Lock()
	session := r.sessions[callID]
	if session == nil {
		defer r.mu.Unlock()
		if r.starting == 0 || callID == "" {
			return fmt.Errorf("%w: %q", ErrUnknownCall, callID)
		}
		held := append(r.pending[callID], events...)
		if len(held) > maxPendingEvents {
			held = held[len(held)-maxPendingEvents:]
		}
		r.pending[callID] = held
		r.log.Debug().Str("call_id", callID).Int("held", len(held)).Msg("holding events for call being created")
		return nil
	}
	r.mu.Unlock()

	for _, ev := range events {
		session.Emit(ev)
	}
	return nil
}

func normalizeWebhook(msg webhookMessage) []models.CallEvent {
	switch {
	case msg.Type == "status-update":
		switch msg.Status {
		case "in-progress":
			return []models.CallEvent{{Name: models.EventCallStart}}
		case "ended":
			return []models.CallEvent{{Name: models.EventCallEnd}}
		}
	case msg.Type == "end-of-call-report":
		return []models.CallEvent{{Name: models.EventCallEnd}}
	case strings.HasPrefix(msg.Type, "transcript"):
		return []models.CallEvent{{
			Name: models.EventMessage,
			Message: &models.VoiceMessage{
				Type:           models.MessageTypeTranscript,
				TranscriptType: msg.TranscriptType,
				Role:           msg.Role,
				Transcript:     msg.Transcript,
			},
		}}
	case msg.Type == "speech-update":
		if msg.Role != "assistant" {
			return nil
		}
		switch msg.Status {
		case "started":
			return []models.CallEvent{{Name: models.EventSpeechStart}}
		case "stopped":
			return []models.CallEvent{{Name: models.EventSpeechEnd}}
		}
	case msg.Type == "error":
		return []models.CallEvent{{Name: models.EventError, Err: webhookError(msg.Error)}}
	}
	return nil
}

func webhookError(raw json.RawMessage) error {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil && text != "" {
		return errors.New(text)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return errors.New(obj.Message)
	}
	if len(raw) > 0 && string(raw) != "null" {
		return errors.New(string(raw))
	}
	return errors.New("voice provider error")
}
