package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go/twiml"

	"mockmate/agent"
	"mockmate/logging"
	"mockmate/models"
	"mockmate/services"
)

const (
	userKey          = "user"
	signInPath       = "/sign-in"
	webhookSecretKey = "X-Vapi-Secret"
	maxWebhookBody   = 1 << 20
)

type authenticator interface {
	CreateSession(ctx context.Context, idToken string) (string, error)
	CurrentUser(ctx context.Context, sessionCookie string) (*models.User, error)
	MaxAge() time.Duration
}

type interviewStore interface {
	GetInterview(ctx context.Context, id string) (*models.Interview, error)
	FeedbackByInterview(ctx context.Context, interviewID, userID string) (*models.Feedback, error)
}

type webhookRouter interface {
	Authorize(secret string) bool
	HandleWebhook(body []byte) error
}

type server struct {
	log             zerolog.Logger
	auth            authenticator
	store           interviewStore
	feedback        agent.FeedbackCreator
	webhooks        webhookRouter
	hub             *services.WebSocketHub
	newVoice        func() voiceSession
	targets         agent.Targets
	sessions        *sessionRegistry
	cookieName      string
	feedbackTimeout time.Duration
	upgrader        websocket.Upgrader
}

func (s *server) routes() *gin.Engine {
	app := gin.New()
	app.Use(gin.Recovery(), logging.Gin(s.log))

	app.GET("/healthz", s.healthHandler)
	app.POST("/api/session", s.createSessionHandler)
	app.DELETE("/api/session", s.deleteSessionHandler)
	app.POST("/webhooks/voice", s.voiceWebhookHandler)
	app.POST("/twilio-webhook/:session_id", s.twilioWebhookHandler)

	authed := app.Group("/", s.requireUser)
	authed.POST("/api/calls", s.mountCallHandler)
	authed.GET("/api/calls/:session_id", s.viewCallHandler)
	authed.POST("/api/calls/:session_id/start", s.startCallHandler)
	authed.POST("/api/calls/:session_id/end", s.endCallHandler)
	authed.DELETE("/api/calls/:session_id", s.unmountCallHandler)
	authed.GET("/ws/calls/:session_id", s.callWebsocketHandler)
	authed.GET("/api/interviews/:id/feedback", s.feedbackHandler)
	return app
}

func (s *server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.len()})
}

// requireUser resolves the signed-in user from the session cookie. Browsers
// without a session go to the sign-in page, API callers get a 401.
func (s *server) requireUser(c *gin.Context) {
	cookie, _ := c.Cookie(s.cookieName)
	user, err := s.auth.CurrentUser(c.Request.Context(), cookie)
	if err != nil {
		if !errors.Is(err, services.ErrUnauthenticated) {
			s.log.Error().Err(err).Msg("resolve current user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cannot resolve user"})
			return
		}
		if strings.Contains(c.GetHeader("Accept"), "text/html") {
			c.Redirect(http.StatusFound, signInPath)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign in required"})
		return
	}
	c.Set(userKey, user)
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}

type createSessionRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

func (s *server) createSessionHandler(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idToken is required"})
		return
	}
	cookie, err := s.auth.CreateSession(c.Request.Context(), req.IDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id token"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, cookie, int(s.auth.MaxAge().Seconds()), "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *server) deleteSessionHandler(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, "", -1, "/", "", c.Request.TLS != nil, true)
	c.Status(http.StatusNoContent)
}

type mountCallRequest struct {
	Type        string `json:"type" binding:"required"`
	InterviewID string `json:"interviewId"`
	FeedbackID  string `json:"feedbackId"`
}

type callResponse struct {
	SessionID string     `json:"session_id"`
	View      agent.View `json:"view"`
}

func (s *server) mountCallHandler(c *gin.Context) {
	user := currentUser(c)

	var req mountCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := models.ParseMode(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionCtx := models.SessionContext{
		FeedbackID: req.FeedbackID,
		UserID:     user.ID,
		UserName:   user.Name,
		Mode:       mode,
	}
	if mode == models.ModePractice {
		interview, err := s.store.GetInterview(c.Request.Context(), req.InterviewID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "interview not found"})
				return
			}
			s.log.Error().Err(err).Str("interview_id", req.InterviewID).Msg("load interview")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load interview"})
			return
		}
		sessionCtx.InterviewID = interview.ID
		sessionCtx.Questions = interview.Questions
	}

	session, err := s.mountSession(sessionCtx)
	if err != nil {
		s.log.Error().Err(err).Msg("mount call session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot create call session"})
		return
	}
	c.JSON(http.StatusCreated, callResponse{SessionID: session.ID, View: session.Agent.View()})
}

// mountSession creates an agent for sessionCtx whose views and navigations
// are broadcast to the session's websocket viewers.
func (s *server) mountSession(sessionCtx models.SessionContext) (*callSession, error) {
	id := uuid.New().String()
	voice := s.newVoice()
	session := &callSession{ID: id, UserID: sessionCtx.UserID, Voice: voice}

	a, err := agent.New(agent.Config{
		Session:  sessionCtx,
		Voice:    voice,
		Targets:  s.targets,
		Feedback: s.feedback,
		Navigator: agent.NavigatorFunc(func(destination string) {
			s.hub.Broadcast(id, models.Navigate{Type: models.MessageTypeNavigate, SessionID: id, Destination: destination})
		}),
		OnChange: func(view agent.View) {
			session.touch()
			s.hub.Broadcast(id, models.ViewUpdate{Type: models.MessageTypeView, SessionID: id, View: view})
		},
		Logger:          s.log.With().Str("session_id", id).Logger(),
		FeedbackTimeout: s.feedbackTimeout,
	})
	if err != nil {
		voice.Close()
		return nil, err
	}
	session.Agent = a
	if err := a.Mount(); err != nil {
		voice.Close()
		return nil, err
	}
	s.sessions.add(session)
	return session, nil
}

// lookupSession finds the caller's session or writes a 404.
func (s *server) lookupSession(c *gin.Context) (*callSession, bool) {
	session, ok := s.sessions.get(c.Param("session_id"))
	if !ok || session.UserID != currentUser(c).ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "call session not found"})
		return nil, false
	}
	return session, true
}

func (s *server) viewCallHandler(c *gin.Context) {
	session, ok := s.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, callResponse{SessionID: session.ID, View: session.Agent.View()})
}

func callErrorStatus(err error) int {
	switch {
	case errors.Is(err, agent.ErrInvalidPhase), errors.Is(err, agent.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, agent.ErrUnmounted):
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}

func (s *server) startCallHandler(c *gin.Context) {
	session, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if err := session.Agent.StartCall(c.Request.Context()); err != nil {
		c.JSON(callErrorStatus(err), gin.H{"error": err.Error(), "view": session.Agent.View()})
		return
	}
	c.JSON(http.StatusOK, callResponse{SessionID: session.ID, View: session.Agent.View()})
}

func (s *server) endCallHandler(c *gin.Context) {
	session, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if err := session.Agent.EndCall(c.Request.Context()); err != nil {
		c.JSON(callErrorStatus(err), gin.H{"error": err.Error(), "view": session.Agent.View()})
		return
	}
	c.JSON(http.StatusOK, callResponse{SessionID: session.ID, View: session.Agent.View()})
}

func (s *server) unmountCallHandler(c *gin.Context) {
	if _, ok := s.lookupSession(c); !ok {
		return
	}
	if session, ok := s.sessions.remove(c.Param("session_id")); ok {
		session.unmount(c.Request.Context(), s.log)
	}
	c.Status(http.StatusNoContent)
}

// callWebsocketHandler streams a session's views to a viewer. When the last
// viewer leaves, the session is unmounted.
func (s *server) callWebsocketHandler(c *gin.Context) {
	session, ok := s.lookupSession(c)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID).Msg("upgrade websocket")
		return
	}

	client := s.hub.Register(conn, session.ID)
	_ = client.SendJSON(models.ConnectionResponse{
		Type:      models.MessageTypeConnection,
		Status:    "connected",
		Message:   "Connected to call session",
		SessionID: session.ID,
	})
	_ = client.SendJSON(models.ViewUpdate{Type: models.MessageTypeView, SessionID: session.ID, View: session.Agent.View()})

	go client.WritePump()
	client.ReadPump()

	if s.hub.Unregister(client) == 0 {
		if removed, ok := s.sessions.remove(session.ID); ok {
			removed.unmount(context.WithoutCancel(c.Request.Context()), s.log)
			s.log.Info().Str("session_id", session.ID).Msg("last viewer left, session unmounted")
		}
	}
}

func (s *server) feedbackHandler(c *gin.Context) {
	user := currentUser(c)
	feedback, err := s.store.FeedbackByInterview(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "feedback not found"})
			return
		}
		s.log.Error().Err(err).Str("interview_id", c.Param("id")).Msg("load feedback")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load feedback"})
		return
	}
	c.JSON(http.StatusOK, feedback)
}

func (s *server) voiceWebhookHandler(c *gin.Context) {
	if !s.webhooks.Authorize(c.GetHeader(webhookSecretKey)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	err = s.webhooks.HandleWebhook(body)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, services.ErrUnknownCall):
		s.log.Debug().Err(err).Msg("webhook for unknown call")
		c.JSON(http.StatusAccepted, gin.H{"received": true})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// twilioWebhookHandler connects a phone caller to a started call's audio
// websocket.
func (s *server) twilioWebhookHandler(c *gin.Context) {
	sessionID := c.Param("session_id")
	session, ok := s.sessions.get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, "cannot handle call atm")
		return
	}
	call := session.Voice.Call()
	if call == nil || call.Transport.WebsocketCallURL == "" {
		c.JSON(http.StatusConflict, "call has not started")
		return
	}
	s.log.Info().Str("session_id", sessionID).Str("from", c.PostForm("From")).Msg("phone caller joined")

	stream := &twiml.VoiceStream{
		Url: call.Transport.WebsocketCallURL,
	}
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}
	result, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		c.JSON(http.StatusInternalServerError, "cannot handle call atm")
		return
	}

	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, result)
}
