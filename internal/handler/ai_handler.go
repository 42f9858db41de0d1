package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/render"
	"github.com/hitoshi/jobassist/internal/store"
)

const msgSampleResult = "Showing sample results. Live data could not be retrieved."

// PDFService は構造化職務経歴書をPDFにする。render.Service が満たす。
type PDFService interface {
	ResumePDF(ctx context.Context, resume *model.StructuredResume) ([]byte, error)
}

// AIHandler は生成AI機能のHTTPハンドラー。
// 操作は POST /api/ai/{operation} で指定し、対象求人が応募管理中なら結果を保存する。
type AIHandler struct {
	registry  StoreRegistry
	generator Generator
	pdf       PDFService
}

// NewAIHandler はAIHandlerを生成する。
func NewAIHandler(registry StoreRegistry, generator Generator, pdf PDFService) *AIHandler {
	return &AIHandler{registry: registry, generator: generator, pdf: pdf}
}

// aiRequest は全操作共通のリクエスト。操作ごとに使うフィールドが異なる。
type aiRequest struct {
	jobRefRequest

	Resume         string `json:"resume"`
	JobDescription string `json:"jobDescription"`
	Company        string `json:"company"`

	Interviewer   string `json:"interviewer"`
	InterviewDate string `json:"interviewDate"`
	Notes         string `json:"notes"`

	Contact  *model.PotentialContact `json:"contact"`
	JobTitle string                  `json:"jobTitle"`

	Offer *model.OfferDetails `json:"offer"`

	CurrentRole string `json:"currentRole"`
	GoalRole    string `json:"goalRole"`

	Question   string        `json:"question"`
	Answer     string        `json:"answer"`
	Transcript string        `json:"transcript"`
	Video      *mediaPayload `json:"video"`
}

type aiOperation func(h *AIHandler, ctx context.Context, st *store.Store, req aiRequest) (any, error)

var aiOperations = map[string]aiOperation{
	"tailor-resume":            (*AIHandler).tailorResume,
	"structured-resume":        (*AIHandler).structuredResume,
	"cover-letter":             (*AIHandler).coverLetter,
	"follow-up-email":          (*AIHandler).followUpEmail,
	"outreach-message":         (*AIHandler).outreachMessage,
	"skills-gap":               (*AIHandler).skillsGap,
	"company-briefing":         (*AIHandler).companyBriefing,
	"analyze-offer":            (*AIHandler).analyzeOffer,
	"contacts":                 (*AIHandler).contacts,
	"insights":                 (*AIHandler).insights,
	"career-path":              (*AIHandler).careerPath,
	"application-form":         (*AIHandler).applicationForm,
	"interview-questions":      (*AIHandler).interviewQuestions,
	"interview-feedback":       (*AIHandler).interviewFeedback,
	"interview-video-feedback": (*AIHandler).interviewVideoFeedback,
}

// Generate は指定された生成操作を実行する。
// 生成に失敗した場合はエラートーストを1件出し、サンプル結果の場合は情報トーストを出す。
// POST /api/ai/{operation}
func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	op, found := aiOperations[chi.URLParam(r, "operation")]
	if !found {
		http.NotFound(w, r)
		return
	}

	var req aiRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := op(h, r.Context(), st, req)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			st.Toasts().Show(model.UserMessage(err, msgGenerationFailed), model.ToastError)
		}
		handleServiceError(w, err)
		return
	}

	if isSample(result) {
		st.Toasts().Show(msgSampleResult, model.ToastInfo)
	}
	writeJSON(w, http.StatusOK, result)
}

type resumePDFRequest struct {
	Resume *model.StructuredResume `json:"resume"`
	JobID  string                  `json:"jobId"`
}

// ResumePDF は構造化職務経歴書をPDFとして返す。
// resume が無い場合は jobId の応募管理データに保存された構造化職務経歴書を使う。
// POST /api/resume/pdf
func (h *AIHandler) ResumePDF(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	var req resumePDFRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resume := req.Resume
	if resume == nil && req.JobID != "" {
		tracked := st.TrackedJob(req.JobID)
		if tracked == nil {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewJobNotFoundError(req.JobID))
			return
		}
		resume = tracked.StructuredResume
	}

	pdf, err := h.pdf.ResumePDF(r.Context(), resume)
	if err != nil {
		if errors.Is(err, render.ErrEmptyResume) {
			handleServiceError(w, model.NewAppError(model.KindValidation, "Generate a structured resume first.", err))
			return
		}
		st.Toasts().Show("Failed to create the PDF. Please try again.", model.ToastError)
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="resume.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func isSample(result any) bool {
	switch v := result.(type) {
	case *model.ContactsResult:
		return v != nil && v.Sample
	case *model.ParsedApplicationForm:
		return v != nil && v.Sample
	}
	return false
}

// requireJob はリクエストが指す求人を解決する。
func requireJob(st *store.Store, req aiRequest) (*model.Job, error) {
	job := req.resolve(st)
	if job == nil {
		return nil, model.NewJobNotFoundError(req.id())
	}
	return job, nil
}

// resumeFor はリクエストの職務経歴テキストを返す。未指定ならプロフィールの正本を使う。
func resumeFor(st *store.Store, req aiRequest) string {
	if strings.TrimSpace(req.Resume) != "" {
		return req.Resume
	}
	return st.Profile().BaseResume
}

// saveIfTracked は応募管理中の求人に生成結果を保存する。
// 保存失敗はストアがトーストで通知するため、生成結果はそのまま返す。
func saveIfTracked(ctx context.Context, st *store.Store, jobID string, patch model.TrackedJobPatch) {
	if st.TrackedJob(jobID) == nil {
		return
	}
	_, _ = st.SaveTrackedJobData(ctx, jobID, patch)
}

func (h *AIHandler) tailorResume(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	job, err := requireJob(st, req)
	if err != nil {
		return nil, err
	}
	profile := st.Profile()
	profile.BaseResume = resumeFor(st, req)

	text, err := h.generator.TailorResume(ctx, profile, *job)
	if err != nil {
		return nil, err
	}
	saveIfTracked(ctx, st, job.ID, model.TrackedJobPatch{TailoredResume: &text})
	return map[string]string{"resume": text}, nil
}

func (h *AIHandler) structuredResume(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	profile := st.Profile()
	profile.BaseResume = resumeFor(st, req)

	job := req.resolve(st)
	description := req.JobDescription
	if description == "" && job != nil {
		description = job.Description
	}

	resume, err := h.generator.GenerateStructuredResume(ctx, profile, description)
	if err != nil {
		return nil, err
	}
	if job != nil {
		saveIfTracked(ctx, st, job.ID, model.TrackedJobPatch{StructuredResume: resume})
	}
	return resume, nil
}

func (h *AIHandler) coverLetter(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	job, err := requireJob(st, req)
	if err != nil {
		return nil, err
	}
	profile := st.Profile()
	profile.BaseResume = resumeFor(st, req)

	text, err := h.generator.GenerateCoverLetter(ctx, profile, *job)
	if err != nil {
		return nil, err
	}
	saveIfTracked(ctx, st, job.ID, model.TrackedJobPatch{TailoredCoverLetter: &text})
	return map[string]string{"coverLetter": text}, nil
}

func (h *AIHandler) followUpEmail(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	job, err := requireJob(st, req)
	if err != nil {
		return nil, err
	}
	text, err := h.generator.GenerateFollowUpEmail(ctx, st.Profile(), *job, req.Interviewer, req.InterviewDate, req.Notes)
	if err != nil {
		return nil, err
	}
	return map[string]string{"email": text}, nil
}

func (h *AIHandler) outreachMessage(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	if req.Contact == nil {
		return nil, model.NewAppError(model.KindValidation, "Select a contact first.", nil)
	}
	title := req.JobTitle
	if title == "" {
		if job := req.resolve(st); job != nil {
			title = job.Title
		}
	}
	text, err := h.generator.GenerateOutreachMessage(ctx, st.Profile().Name, *req.Contact, title)
	if err != nil {
		return nil, err
	}
	return map[string]string{"message": text}, nil
}

func (h *AIHandler) skillsGap(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	description := req.JobDescription
	if description == "" {
		job, err := requireJob(st, req)
		if err != nil {
			return nil, err
		}
		description = job.Description
	}
	return h.generator.GetSkillsGapAnalysis(ctx, resumeFor(st, req), description)
}

func (h *AIHandler) companyBriefing(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	company, err := companyFor(st, req)
	if err != nil {
		return nil, err
	}
	return h.generator.GenerateCompanyBriefing(ctx, company)
}

func (h *AIHandler) analyzeOffer(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	job, err := requireJob(st, req)
	if err != nil {
		return nil, err
	}
	offer := req.Offer
	if offer == nil {
		if tracked := st.TrackedJob(job.ID); tracked != nil {
			offer = tracked.OfferDetails
		}
	}
	if offer == nil {
		return nil, model.NewAppError(model.KindValidation, "Enter the offer details first.", nil)
	}

	analysis, err := h.generator.AnalyzeOffer(ctx, *job, *offer, resumeFor(st, req))
	if err != nil {
		return nil, err
	}
	saveIfTracked(ctx, st, job.ID, model.TrackedJobPatch{OfferDetails: offer})
	return analysis, nil
}

func (h *AIHandler) contacts(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	company, err := companyFor(st, req)
	if err != nil {
		return nil, err
	}
	return h.generator.FindPotentialContacts(ctx, company)
}

func (h *AIHandler) insights(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	job, err := requireJob(st, req)
	if err != nil {
		return nil, err
	}
	tracked := st.TrackedJob(job.ID)
	if tracked == nil {
		tracked = &model.TrackedJob{Job: *job, Status: model.StatusSaved}
	}

	insights, err := h.generator.GetApplicationInsights(ctx, *tracked, resumeFor(st, req))
	if err != nil {
		return nil, err
	}
	saveIfTracked(ctx, st, job.ID, model.TrackedJobPatch{Insights: insights})
	return insights, nil
}

func (h *AIHandler) careerPath(ctx context.Context, _ *store.Store, req aiRequest) (any, error) {
	return h.generator.GenerateCareerPathPlan(ctx, req.CurrentRole, req.GoalRole)
}

func (h *AIHandler) applicationForm(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	job, err := requireJob(st, req)
	if err != nil {
		return nil, err
	}
	return h.generator.AnalyzeApplicationForm(ctx, *job, st.Profile())
}

func (h *AIHandler) interviewQuestions(ctx context.Context, st *store.Store, req aiRequest) (any, error) {
	job, err := requireJob(st, req)
	if err != nil {
		return nil, err
	}
	return h.generator.GenerateInterviewQuestions(ctx, *job)
}

func (h *AIHandler) interviewFeedback(ctx context.Context, _ *store.Store, req aiRequest) (any, error) {
	return h.generator.GetInterviewFeedback(ctx, req.Question, req.Answer)
}

func (h *AIHandler) interviewVideoFeedback(ctx context.Context, _ *store.Store, req aiRequest) (any, error) {
	return h.generator.GetInterviewVideoFeedback(ctx, req.Question, req.Transcript, req.Video.part())
}

// companyFor はリクエストの会社名を返す。未指定なら対象求人の会社名を使う。
func companyFor(st *store.Store, req aiRequest) (string, error) {
	if c := strings.TrimSpace(req.Company); c != "" {
		return c, nil
	}
	job, err := requireJob(st, req)
	if err != nil {
		return "", err
	}
	return job.Company, nil
}
