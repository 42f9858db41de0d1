package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/model"
)

const (
	msgInterviewQuestionsFailed = "Could not generate interview questions. Please check the API response and your key."
	msgInterviewFeedbackFailed  = "Could not generate interview feedback."
	msgVideoFeedbackFailed      = "Could not generate interview video feedback."
	msgMissingAnswer            = "Please answer the question first."
)

const interviewQuestionsPrompt = `You are an experienced hiring manager.
Write 10 to 12 likely interview questions for the "%s" role at "%s" based on the job description below.
Put each question in one of the categories "Behavioral", "Technical" or "Situational".

Job description:
---
%s
---

Return only a JSON array in this format:
[{"category": "Behavioral", "question": "string"}]`

// GenerateInterviewQuestions は求人に対する想定質問を生成する。
// カテゴリごとにまとめられた形式の応答も平坦化して受け付ける。
func (g *Gateway) GenerateInterviewQuestions(ctx context.Context, job model.Job) ([]model.InterviewQuestion, error) {
	const op = "interview_questions"
	req := llm.Request{
		Prompt: fmt.Sprintf(interviewQuestionsPrompt, job.Title, job.Company, job.Description),
	}
	arr, elapsed, err := g.generateArray(ctx, op, req, msgInterviewQuestionsFailed, "questions")
	if err != nil {
		return nil, err
	}

	questions := []model.InterviewQuestion{}
	for _, obj := range objects(arr) {
		category := normalizeCategory(str(obj, "category", ""))
		if nested, ok := obj["questions"].([]any); ok {
			for _, q := range nested {
				switch v := q.(type) {
				case string:
					questions = appendQuestion(questions, category, v)
				case map[string]any:
					questions = appendQuestion(questions, category, str(v, "question", ""))
				}
			}
			continue
		}
		questions = appendQuestion(questions, category, str(obj, "question", ""))
	}

	if len(questions) == 0 {
		return nil, g.parseFailure(op, fmt.Sprint(arr), elapsed, errWrongShape, msgInterviewQuestionsFailed)
	}
	g.succeeded(op, elapsed)
	return questions, nil
}

func appendQuestion(qs []model.InterviewQuestion, category, question string) []model.InterviewQuestion {
	question = strings.TrimSpace(question)
	if question == "" {
		return qs
	}
	return append(qs, model.InterviewQuestion{Category: category, Question: question})
}

// normalizeCategory は未知のカテゴリを Behavioral に寄せる。
func normalizeCategory(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "technical":
		return model.QuestionTechnical
	case "situational":
		return model.QuestionSituational
	default:
		return model.QuestionBehavioral
	}
}

const interviewFeedbackPrompt = `You are a supportive interview coach.
The candidate is practicing for an interview.

Question: "%s"
Answer: "%s"

Give feedback on the structure (for example the STAR method), clarity and relevance of the answer,
and list specific suggestions for improvement.

Return only one JSON object in this format:
{"feedback": "string", "suggestions": ["string"]}`

// GetInterviewFeedback は模擬面接の回答を講評する。
func (g *Gateway) GetInterviewFeedback(ctx context.Context, question, answer string) (*model.InterviewFeedback, error) {
	const op = "interview_feedback"
	if strings.TrimSpace(answer) == "" {
		return nil, validationError(msgMissingAnswer)
	}
	req := llm.Request{Prompt: fmt.Sprintf(interviewFeedbackPrompt, question, answer)}
	obj, elapsed, err := g.generateObject(ctx, op, req, msgInterviewFeedbackFailed)
	if err != nil {
		return nil, err
	}

	fb := &model.InterviewFeedback{
		Feedback:    str(obj, "feedback", ""),
		Suggestions: strs(obj, "suggestions"),
	}
	if fb.Feedback == "" {
		return nil, g.parseFailure(op, fmt.Sprint(obj), elapsed, errWrongShape, msgInterviewFeedbackFailed)
	}
	g.succeeded(op, elapsed)
	return fb, nil
}

const videoFeedbackPrompt = `You are a communication coach reviewing a recorded interview answer.

Question: "%s"
Transcribed answer: "%s"

Rules:
1. Review the structure, clarity and relevance of the answer (for example the STAR method).
2. %s
3. Give actionable suggestions for every area.

Return only one JSON object in this format:
{"feedback": "string", "bodyLanguageFeedback": "string", "pacingFeedback": "string", "suggestions": ["string"]}`

// GetInterviewVideoFeedback は録画回答の内容と話し方を講評する。
// video が渡された場合は映像も添付し、無い場合は一般的な助言に留めるよう指示する。
func (g *Gateway) GetInterviewVideoFeedback(ctx context.Context, question, transcript string, video *llm.Part) (*model.InterviewFeedback, error) {
	const op = "interview_video_feedback"
	if strings.TrimSpace(transcript) == "" && video == nil {
		return nil, validationError(msgMissingAnswer)
	}

	delivery := "You cannot see the video. Give general but useful advice on body language and speaking pace based on common practice."
	req := llm.Request{}
	if video != nil && len(video.Data) > 0 {
		delivery = "Review posture, eye contact, gestures, speaking speed and filler words from the attached video."
		req.Parts = []llm.Part{*video}
	}
	req.Prompt = fmt.Sprintf(videoFeedbackPrompt, question, transcript, delivery)

	obj, elapsed, err := g.generateObject(ctx, op, req, msgVideoFeedbackFailed)
	if err != nil {
		return nil, err
	}

	fb := &model.InterviewFeedback{
		Feedback:             str(obj, "feedback", ""),
		Suggestions:          strs(obj, "suggestions"),
		BodyLanguageFeedback: str(obj, "bodyLanguageFeedback", "No body language feedback was provided."),
		PacingFeedback:       str(obj, "pacingFeedback", "No pacing feedback was provided."),
	}
	if fb.Feedback == "" {
		return nil, g.parseFailure(op, fmt.Sprint(obj), elapsed, errWrongShape, msgVideoFeedbackFailed)
	}
	g.succeeded(op, elapsed)
	return fb, nil
}
