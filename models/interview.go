package models

import "time"

// User is the authenticated candidate.
type User struct {
	ID         string `json:"id" firestore:"-"`
	Name       string `json:"name" firestore:"name"`
	Email      string `json:"email" firestore:"email"`
	ProfileURL string `json:"profileURL,omitempty" firestore:"profileURL,omitempty"`
}

// Interview is a stored interview with its question list.
type Interview struct {
	ID         string    `json:"id" firestore:"-"`
	Role       string    `json:"role" firestore:"role"`
	Level      string    `json:"level" firestore:"level"`
	Type       string    `json:"type" firestore:"type"`
	TechStack  []string  `json:"techstack" firestore:"techstack"`
	Questions  []string  `json:"questions" firestore:"questions"`
	UserID     string    `json:"userId" firestore:"userId"`
	Finalized  bool      `json:"finalized" firestore:"finalized"`
	CoverImage string    `json:"coverImage,omitempty" firestore:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
}

// CategoryScore is one scored assessment area.
type CategoryScore struct {
	Name    string `json:"name" firestore:"name"`
	Score   int    `json:"score" firestore:"score"`
	Comment string `json:"comment" firestore:"comment"`
}

// Feedback is the generated assessment of one interview call.
type Feedback struct {
	ID                  string          `json:"id" firestore:"-"`
	InterviewID         string          `json:"interviewId" firestore:"interviewId"`
	UserID              string          `json:"userId" firestore:"userId"`
	TotalScore          int             `json:"totalScore" firestore:"totalScore"`
	CategoryScores      []CategoryScore `json:"categoryScores" firestore:"categoryScores"`
	Strengths           []string        `json:"strengths" firestore:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement" firestore:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment" firestore:"finalAssessment"`
	CreatedAt           time.Time       `json:"createdAt" firestore:"createdAt"`
}

// CreateFeedbackParams is the input of a feedback generation request.
type CreateFeedbackParams struct {
	InterviewID string       `json:"interviewId"`
	UserID      string       `json:"userId"`
	Transcript  []Transcript `json:"transcript"`
	FeedbackID  string       `json:"feedbackId,omitempty"`
}

// CreateFeedbackResult reports whether feedback was stored and under which id.
type CreateFeedbackResult struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedbackId,omitempty"`
}
