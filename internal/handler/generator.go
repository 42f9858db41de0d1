package handler

import (
	"context"

	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/model"
)

// Generator はハンドラーが使う生成AIゲートウェイの操作。
// generation.Gateway が満たす。
type Generator interface {
	ParseResume(ctx context.Context, file llm.Part) (*model.ParsedResume, error)
	ParseJobFromContent(ctx context.Context, text string, image *llm.Part) (*model.Job, error)

	TailorResume(ctx context.Context, profile model.UserProfile, job model.Job) (string, error)
	GenerateStructuredResume(ctx context.Context, profile model.UserProfile, jobDescription string) (*model.StructuredResume, error)
	GenerateCoverLetter(ctx context.Context, profile model.UserProfile, job model.Job) (string, error)
	GenerateFollowUpEmail(ctx context.Context, profile model.UserProfile, job model.Job, interviewer, interviewDate, notes string) (string, error)
	GenerateOutreachMessage(ctx context.Context, userName string, contact model.PotentialContact, jobTitle string) (string, error)

	GetSkillsGapAnalysis(ctx context.Context, resume, jobDescription string) (*model.SkillAnalysis, error)
	GenerateCompanyBriefing(ctx context.Context, company string) (*model.CompanyBriefing, error)
	AnalyzeOffer(ctx context.Context, job model.Job, offer model.OfferDetails, resume string) (*model.NegotiationAnalysis, error)
	FindPotentialContacts(ctx context.Context, company string) (*model.ContactsResult, error)
	GetApplicationInsights(ctx context.Context, job model.TrackedJob, resume string) (*model.ApplicationInsights, error)
	GenerateCareerPathPlan(ctx context.Context, currentRole, goalRole string) (*model.CareerPathPlan, error)
	AnalyzeApplicationForm(ctx context.Context, job model.Job, profile model.UserProfile) (*model.ParsedApplicationForm, error)

	GenerateInterviewQuestions(ctx context.Context, job model.Job) ([]model.InterviewQuestion, error)
	GetInterviewFeedback(ctx context.Context, question, answer string) (*model.InterviewFeedback, error)
	GetInterviewVideoFeedback(ctx context.Context, question, transcript string, video *llm.Part) (*model.InterviewFeedback, error)
}

// mediaPayload はJSONで受け取るbase64エンコード済みのバイナリ。
type mediaPayload struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

func (m *mediaPayload) part() *llm.Part {
	if m == nil || len(m.Data) == 0 {
		return nil
	}
	return &llm.Part{MIMEType: m.MIMEType, Data: m.Data}
}

const msgGenerationFailed = "Something went wrong. Please try again."
