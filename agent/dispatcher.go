package agent

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"

	"mockmate/models"
)

// HomePath is where a finished call goes when there is nothing else to show.
const HomePath = "/"

// FeedbackPath is the feedback detail page of an interview.
func FeedbackPath(interviewID string) string {
	return "/interview/" + url.PathEscape(interviewID) + "/feedback"
}

// FeedbackCreator generates and stores feedback for a finished interview.
type FeedbackCreator interface {
	CreateFeedback(ctx context.Context, params models.CreateFeedbackParams) (models.CreateFeedbackResult, error)
}

// FeedbackDispatcher sends a finished transcript for feedback and picks the
// page to go to next. It never fails: anything short of a stored feedback id
// sends the user home.
type FeedbackDispatcher struct {
	creator FeedbackCreator
	log     zerolog.Logger
}

func NewFeedbackDispatcher(creator FeedbackCreator, log zerolog.Logger) *FeedbackDispatcher {
	return &FeedbackDispatcher{creator: creator, log: log}
}

// Dispatch returns the destination to navigate to.
func (d *FeedbackDispatcher) Dispatch(ctx context.Context, transcript []models.TranscriptEntry, session models.SessionContext) string {
	if session.InterviewID == "" || session.UserID == "" {
		d.log.Error().Msg("feedback dispatch without interview or user id")
		return HomePath
	}

	res, err := d.creator.CreateFeedback(ctx, models.CreateFeedbackParams{
		InterviewID: session.InterviewID,
		UserID:      session.UserID,
		Transcript:  models.ToTranscript(transcript),
		FeedbackID:  session.FeedbackID,
	})
	if err != nil {
		d.log.Warn().Err(err).Str("interview_id", session.InterviewID).Msg("error saving feedback")
		return HomePath
	}
	if !res.Success || res.FeedbackID == "" {
		d.log.Warn().Str("interview_id", session.InterviewID).Msg("error saving feedback")
		return HomePath
	}

	d.log.Info().
		Str("interview_id", session.InterviewID).
		Str("feedback_id", res.FeedbackID).
		Msg("feedback saved")
	return FeedbackPath(session.InterviewID)
}
