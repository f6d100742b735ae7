package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"mockmate/models"
)

// FeedbackCategories are the assessment areas every report scores.
var FeedbackCategories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem Solving",
	"Cultural Fit",
	"Confidence and Clarity",
}

// Grader assesses an interview transcript. The returned feedback carries the
// assessment fields only.
type Grader interface {
	Grade(ctx context.Context, transcript []models.Transcript) (*models.Feedback, error)
}

// FeedbackStore persists feedback.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, feedback models.Feedback) error
}

// FeedbackService grades finished interviews and stores the result.
type FeedbackService struct {
	grader Grader
	store  FeedbackStore
	log    zerolog.Logger
	now    func() time.Time
	newID  func() string
}

func NewFeedbackService(grader Grader, store FeedbackStore, log zerolog.Logger) *FeedbackService {
	return &FeedbackService{
		grader: grader,
		store:  store,
		log:    log,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// CreateFeedback grades the transcript and stores the feedback, reusing
// params.FeedbackID when set so a retaken interview replaces its feedback.
func (s *FeedbackService) CreateFeedback(ctx context.Context, params models.CreateFeedbackParams) (models.CreateFeedbackResult, error) {
	report, err := s.grader.Grade(ctx, params.Transcript)
	if err != nil {
		s.log.Error().Err(err).Str("interview_id", params.InterviewID).Msg("grade interview")
		return models.CreateFeedbackResult{Success: false}, fmt.Errorf("grade interview: %w", err)
	}

	id := params.FeedbackID
	if id == "" {
		id = s.newID()
	}
	feedback := *report
	feedback.ID = id
	feedback.InterviewID = params.InterviewID
	feedback.UserID = params.UserID
	feedback.CreatedAt = s.now()

	if err := s.store.SaveFeedback(ctx, feedback); err != nil {
		s.log.Error().Err(err).Str("interview_id", params.InterviewID).Msg("save feedback")
		return models.CreateFeedbackResult{Success: false}, fmt.Errorf("save feedback: %w", err)
	}
	return models.CreateFeedbackResult{Success: true, FeedbackID: id}, nil
}

const graderSystemPrompt = "You are a professional interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories. Be thorough and detailed in your analysis. Don't be lenient with the candidate. If there are mistakes or areas for improvement, point them out."

// OpenAIGrader grades transcripts with an OpenAI chat model.
type OpenAIGrader struct {
	client *openai.Client
	model  string
}

// NewOpenAIGrader builds a grader. baseURL and httpClient are optional.
func NewOpenAIGrader(apiKey, baseURL, model string, httpClient *http.Client) *OpenAIGrader {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIGrader{client: openai.NewClientWithConfig(cfg), model: model}
}

type gradeReport struct {
	TotalScore          int                    `json:"totalScore"`
	CategoryScores      []models.CategoryScore `json:"categoryScores"`
	Strengths           []string               `json:"strengths"`
	AreasForImprovement []string               `json:"areasForImprovement"`
	FinalAssessment     string                 `json:"finalAssessment"`
}

func (g *OpenAIGrader) Grade(ctx context.Context, transcript []models.Transcript) (*models.Feedback, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: graderSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: gradingPrompt(transcript)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("grader returned no choices")
	}

	var report gradeReport
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &report); err != nil {
		return nil, fmt.Errorf("decode grader report: %w", err)
	}
	if len(report.CategoryScores) == 0 {
		return nil, errors.New("grader report has no category scores")
	}

	for i := range report.CategoryScores {
		report.CategoryScores[i].Score = clampScore(report.CategoryScores[i].Score)
	}
	return &models.Feedback{
		TotalScore:          clampScore(report.TotalScore),
		CategoryScores:      report.CategoryScores,
		Strengths:           report.Strengths,
		AreasForImprovement: report.AreasForImprovement,
		FinalAssessment:     report.FinalAssessment,
	}, nil
}

func clampScore(n int) int {
	return min(max(n, 0), 100)
}

// FormatTranscript renders a transcript as "- role: content" lines.
func FormatTranscript(transcript []models.Transcript) string {
	var b strings.Builder
	for _, t := range transcript {
		fmt.Fprintf(&b, "- %s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

func gradingPrompt(transcript []models.Transcript) string {
	var b strings.Builder
	b.WriteString("You are an AI interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories. Be thorough and detailed in your analysis. Don't be lenient with the candidate. If there are mistakes or areas for improvement, point them out.\n\nTranscript:\n")
	b.WriteString(FormatTranscript(transcript))
	b.WriteString("\nScore the candidate from 0 to 100 in the following areas. Do not add categories other than the ones provided:\n")
	for _, c := range FeedbackCategories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nRespond with a JSON object with the fields totalScore (number), categoryScores (array of {name, score, comment}), strengths (array of strings), areasForImprovement (array of strings) and finalAssessment (string).")
	return b.String()
}
