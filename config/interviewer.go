package config

import "mockmate/models"

const interviewerPrompt = `You are a professional job interviewer conducting a real-time voice interview with a candidate. Your goal is to assess their qualifications, motivation, and fit for the role.

Interview Guidelines:
Follow the structured question flow:
{{questions}}

Engage naturally and react appropriately:
- Listen actively to responses and acknowledge them before moving forward.
- Ask brief follow-up questions if a response is vague or requires more detail.
- Keep the conversation flowing smoothly while maintaining control.

Be professional, yet warm and welcoming. Use official yet friendly language. Keep responses concise and to the point, like in a real voice interview.

Answer the candidate's questions about the role, company or expectations professionally. If you don't know the answer, redirect the candidate to HR for more details.

Conclude the interview properly: thank the candidate for their time, tell them the company will reach out soon with feedback, and end the conversation on a polite and positive note.`

// DefaultInterviewer is the inline assistant used for practice calls when no
// stored interviewer is configured. {{questions}} is filled from the
// "questions" variable of the call.
func DefaultInterviewer() models.Assistant {
	return models.Assistant{
		Name:         "Interviewer",
		FirstMessage: "Hello! Thank you for taking the time to speak with me today. I'm excited to learn more about you and your experience.",
		Transcriber: models.AssistantSTT{
			Provider: "deepgram",
			Model:    "nova-2",
			Language: "en",
		},
		Voice: models.AssistantVoice{
			Provider:        "11labs",
			VoiceID:         "sarah",
			Stability:       0.4,
			SimilarityBoost: 0.8,
			Speed:           0.9,
			Style:           0.5,
			UseSpeakerBoost: true,
		},
		Model: models.AssistantModel{
			Provider: "openai",
			Model:    "gpt-4",
			Messages: []models.AssistantMessage{
				{Role: "system", Content: interviewerPrompt},
			},
		},
	}
}
