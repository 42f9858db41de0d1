package handler

import (
	"context"
	"errors"

	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/model"
)

var errMockNotConfigured = errors.New("mock: not configured")

// mockGenerator はGeneratorのテスト用モック。未設定の操作はエラーを返す。
type mockGenerator struct {
	parseResumeFn        func(ctx context.Context, file llm.Part) (*model.ParsedResume, error)
	parseJobFn           func(ctx context.Context, text string, image *llm.Part) (*model.Job, error)
	tailorResumeFn       func(ctx context.Context, profile model.UserProfile, job model.Job) (string, error)
	structuredResumeFn   func(ctx context.Context, profile model.UserProfile, jobDescription string) (*model.StructuredResume, error)
	coverLetterFn        func(ctx context.Context, profile model.UserProfile, job model.Job) (string, error)
	followUpEmailFn      func(ctx context.Context, profile model.UserProfile, job model.Job, interviewer, interviewDate, notes string) (string, error)
	outreachFn           func(ctx context.Context, userName string, contact model.PotentialContact, jobTitle string) (string, error)
	skillsGapFn          func(ctx context.Context, resume, jobDescription string) (*model.SkillAnalysis, error)
	companyBriefingFn    func(ctx context.Context, company string) (*model.CompanyBriefing, error)
	analyzeOfferFn       func(ctx context.Context, job model.Job, offer model.OfferDetails, resume string) (*model.NegotiationAnalysis, error)
	contactsFn           func(ctx context.Context, company string) (*model.ContactsResult, error)
	insightsFn           func(ctx context.Context, job model.TrackedJob, resume string) (*model.ApplicationInsights, error)
	careerPathFn         func(ctx context.Context, currentRole, goalRole string) (*model.CareerPathPlan, error)
	applicationFormFn    func(ctx context.Context, job model.Job, profile model.UserProfile) (*model.ParsedApplicationForm, error)
	interviewQuestionsFn func(ctx context.Context, job model.Job) ([]model.InterviewQuestion, error)
	interviewFeedbackFn  func(ctx context.Context, question, answer string) (*model.InterviewFeedback, error)
	videoFeedbackFn      func(ctx context.Context, question, transcript string, video *llm.Part) (*model.InterviewFeedback, error)
}

var _ Generator = (*mockGenerator)(nil)

func (m *mockGenerator) ParseResume(ctx context.Context, file llm.Part) (*model.ParsedResume, error) {
	if m.parseResumeFn != nil {
		return m.parseResumeFn(ctx, file)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) ParseJobFromContent(ctx context.Context, text string, image *llm.Part) (*model.Job, error) {
	if m.parseJobFn != nil {
		return m.parseJobFn(ctx, text, image)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) TailorResume(ctx context.Context, profile model.UserProfile, job model.Job) (string, error) {
	if m.tailorResumeFn != nil {
		return m.tailorResumeFn(ctx, profile, job)
	}
	return "", errMockNotConfigured
}

func (m *mockGenerator) GenerateStructuredResume(ctx context.Context, profile model.UserProfile, jobDescription string) (*model.StructuredResume, error) {
	if m.structuredResumeFn != nil {
		return m.structuredResumeFn(ctx, profile, jobDescription)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) GenerateCoverLetter(ctx context.Context, profile model.UserProfile, job model.Job) (string, error) {
	if m.coverLetterFn != nil {
		return m.coverLetterFn(ctx, profile, job)
	}
	return "", errMockNotConfigured
}

func (m *mockGenerator) GenerateFollowUpEmail(ctx context.Context, profile model.UserProfile, job model.Job, interviewer, interviewDate, notes string) (string, error) {
	if m.followUpEmailFn != nil {
		return m.followUpEmailFn(ctx, profile, job, interviewer, interviewDate, notes)
	}
	return "", errMockNotConfigured
}

func (m *mockGenerator) GenerateOutreachMessage(ctx context.Context, userName string, contact model.PotentialContact, jobTitle string) (string, error) {
	if m.outreachFn != nil {
		return m.outreachFn(ctx, userName, contact, jobTitle)
	}
	return "", errMockNotConfigured
}

func (m *mockGenerator) GetSkillsGapAnalysis(ctx context.Context, resume, jobDescription string) (*model.SkillAnalysis, error) {
	if m.skillsGapFn != nil {
		return m.skillsGapFn(ctx, resume, jobDescription)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) GenerateCompanyBriefing(ctx context.Context, company string) (*model.CompanyBriefing, error) {
	if m.companyBriefingFn != nil {
		return m.companyBriefingFn(ctx, company)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) AnalyzeOffer(ctx context.Context, job model.Job, offer model.OfferDetails, resume string) (*model.NegotiationAnalysis, error) {
	if m.analyzeOfferFn != nil {
		return m.analyzeOfferFn(ctx, job, offer, resume)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) FindPotentialContacts(ctx context.Context, company string) (*model.ContactsResult, error) {
	if m.contactsFn != nil {
		return m.contactsFn(ctx, company)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) GetApplicationInsights(ctx context.Context, job model.TrackedJob, resume string) (*model.ApplicationInsights, error) {
	if m.insightsFn != nil {
		return m.insightsFn(ctx, job, resume)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) GenerateCareerPathPlan(ctx context.Context, currentRole, goalRole string) (*model.CareerPathPlan, error) {
	if m.careerPathFn != nil {
		return m.careerPathFn(ctx, currentRole, goalRole)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) AnalyzeApplicationForm(ctx context.Context, job model.Job, profile model.UserProfile) (*model.ParsedApplicationForm, error) {
	if m.applicationFormFn != nil {
		return m.applicationFormFn(ctx, job, profile)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) GenerateInterviewQuestions(ctx context.Context, job model.Job) ([]model.InterviewQuestion, error) {
	if m.interviewQuestionsFn != nil {
		return m.interviewQuestionsFn(ctx, job)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) GetInterviewFeedback(ctx context.Context, question, answer string) (*model.InterviewFeedback, error) {
	if m.interviewFeedbackFn != nil {
		return m.interviewFeedbackFn(ctx, question, answer)
	}
	return nil, errMockNotConfigured
}

func (m *mockGenerator) GetInterviewVideoFeedback(ctx context.Context, question, transcript string, video *llm.Part) (*model.InterviewFeedback, error) {
	if m.videoFeedbackFn != nil {
		return m.videoFeedbackFn(ctx, question, transcript, video)
	}
	return nil, errMockNotConfigured
}
