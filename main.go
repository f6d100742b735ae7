package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"mockmate/agent"
	"mockmate/config"
	"mockmate/logging"
	"mockmate/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "mockmate",
		Short:         "Mock interview call server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")

	root.AddCommand(newServeCmd(&envFile))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mockmate version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "mockmate", version)
			return err
		},
	}
}

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	fb, err := services.GetFirebase(ctx, services.FirebaseOptions{
		CredentialsJSON: cfg.FirebaseCredentialsJSON,
		CredentialsFile: cfg.FirebaseCredentialsFile,
		ProjectID:       cfg.FirebaseProjectID,
	})
	if err != nil {
		return err
	}
	defer fb.Close()
	log.Info().Msg("firebase initialized")

	store := services.NewFirestoreStore(fb.Firestore, services.Collections{
		Users:      cfg.UsersCollection,
		Interviews: cfg.InterviewsCollection,
		Feedback:   cfg.FeedbackCollection,
	})
	grader := services.NewOpenAIGrader(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, nil)
	router := services.NewVoiceEventRouter(cfg.VoiceWebhookSecret, log.With().Str("component", "voice_router").Logger())
	voice := services.NewVoiceClient(cfg.VoiceAPIURL, cfg.VoiceAPIKey, router, nil, log.With().Str("component", "voice").Logger())

	targets := agent.Targets{
		WorkflowID:    cfg.VoiceWorkflowID,
		InterviewerID: cfg.VoiceInterviewerID,
	}
	if targets.InterviewerID == "" {
		interviewer := config.DefaultInterviewer()
		targets.Interviewer = &interviewer
	}

	sessions := newSessionRegistry(log.With().Str("component", "sessions").Logger())
	srv := &server{
		log:             log,
		auth:            services.NewAuthService(fb.Auth, store, cfg.SessionMaxAge, log),
		store:           store,
		feedback:        services.NewFeedbackService(grader, store, log.With().Str("component", "feedback").Logger()),
		webhooks:        router,
		hub:             services.NewWebSocketHub(log.With().Str("component", "hub").Logger()),
		newVoice:        func() voiceSession { return voice.NewSession() },
		targets:         targets,
		sessions:        sessions,
		cookieName:      cfg.SessionCookieName,
		feedbackTimeout: cfg.FeedbackTimeout,
	}

	go sessions.cleanupInactive(ctx, cfg.CallSweepInterval, cfg.CallIdleTimeout)

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("listening")
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.FeedbackTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	sessions.shutdown(shutdownCtx)
	return nil
}
