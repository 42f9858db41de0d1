package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/model"
)

const (
	msgSkillsGapFailed       = "Could not generate skills gap analysis."
	msgCompanyBriefingFailed = "Could not generate company briefing. The AI response may not be valid JSON."
	msgAnalyzeOfferFailed    = "Could not analyze the job offer."
	msgFindContactsFailed    = "Could not find potential contacts at the company."
	msgInsightsFailed        = "Could not generate insights for this application."
	msgCareerPathFailed      = "Could not generate the career path plan."
	msgApplicationFormFailed = "Could not analyze the application form. The AI may be unable to access the URL or parse its content."
	msgMissingCompany        = "Please enter a company name."
	msgMissingRoles          = "Please enter both your current role and your goal role."
	msgMissingOffer          = "Please enter the offer details first."
)

const skillsGapPrompt = `You are a career analyst. Compare the resume with the job description.
List the skills from the resume that match the job, the important skills the job asks for that the
resume lacks, and practical suggestions for closing the gaps.

Resume:
---
%s
---

Job description:
---
%s
---

Return only one JSON object in this format:
{"matchingSkills": ["string"], "missingSkills": ["string"], "suggestions": "string"}`

// GetSkillsGapAnalysis は職務経歴と求人を比較してスキルギャップを分析する。
func (g *Gateway) GetSkillsGapAnalysis(ctx context.Context, resume, jobDescription string) (*model.SkillAnalysis, error) {
	const op = "skills_gap"
	if strings.TrimSpace(resume) == "" {
		return nil, validationError(msgMissingBaseResume)
	}
	if strings.TrimSpace(jobDescription) == "" {
		return nil, validationError(msgMissingJobDescription)
	}

	req := llm.Request{Prompt: fmt.Sprintf(skillsGapPrompt, resume, jobDescription)}
	obj, elapsed, err := g.generateObject(ctx, op, req, msgSkillsGapFailed)
	if err != nil {
		return nil, err
	}

	g.succeeded(op, elapsed)
	return &model.SkillAnalysis{
		MatchingSkills: strs(obj, "matchingSkills"),
		MissingSkills:  strs(obj, "missingSkills"),
		Suggestions:    str(obj, "suggestions", ""),
	}, nil
}

const companyBriefingPrompt = `You are a research analyst. Write a short briefing about the company "%s"
for a job candidate, using the most recent information you can find.

Return only one JSON object in this format:
{
  "mission": "One or two sentences on the mission or core business.",
  "recentNews": "A short paragraph on a recent announcement, launch or other news.",
  "culture": "A summary of the culture as seen in employee reviews and the careers page.",
  "interviewQuestions": ["Questions an interviewer might ask about the company."]
}`

// GenerateCompanyBriefing は企業研究の要約を検索モードで生成する。
func (g *Gateway) GenerateCompanyBriefing(ctx context.Context, company string) (*model.CompanyBriefing, error) {
	const op = "company_briefing"
	if strings.TrimSpace(company) == "" {
		return nil, validationError(msgMissingCompany)
	}

	req := llm.Request{Prompt: fmt.Sprintf(companyBriefingPrompt, company), Search: true}
	obj, elapsed, err := g.generateObject(ctx, op, req, msgCompanyBriefingFailed)
	if err != nil {
		return nil, err
	}

	briefing := &model.CompanyBriefing{
		Mission:            str(obj, "mission", ""),
		RecentNews:         str(obj, "recentNews", "No recent news was found."),
		Culture:            str(obj, "culture", "No culture summary was found."),
		InterviewQuestions: strs(obj, "interviewQuestions"),
	}
	if briefing.Mission == "" {
		return nil, g.parseFailure(op, fmt.Sprint(obj), elapsed, errWrongShape, msgCompanyBriefingFailed)
	}
	g.succeeded(op, elapsed)
	return briefing, nil
}

const analyzeOfferPrompt = `You are a salary negotiation coach. The candidate received a job offer and needs
an evaluation and a counter-offer script. Use current market data for the role and location.

- Job title: %s
- Company: %s
- Location: %s
- Resume summary: %s
- Base salary: %s
- Bonus: %s
- Equity and other: %s

Return only one JSON object in this format:
{
  "competitiveness": "A short assessment such as 'Slightly below market', 'Competitive' or 'Strong offer'.",
  "recommendedRange": "A realistic range to propose, for example '$165,000 - $172,000'.",
  "script": "A professional script for the counter-offer that conveys enthusiasm and market value."
}`

// AnalyzeOffer はオファーを評価し交渉スクリプトを生成する。
// 職務経歴は先頭500文字のみをプロンプトに含める。
func (g *Gateway) AnalyzeOffer(ctx context.Context, job model.Job, offer model.OfferDetails, resume string) (*model.NegotiationAnalysis, error) {
	const op = "analyze_offer"
	if strings.TrimSpace(offer.Salary) == "" {
		return nil, validationError(msgMissingOffer)
	}

	req := llm.Request{
		Prompt: fmt.Sprintf(analyzeOfferPrompt,
			job.Title, job.Company, job.Location, truncateRunes(resume, 500),
			offer.Salary, orNotProvided(offer.Bonus), orNotProvided(offer.Equity)),
		Search: true,
	}
	obj, elapsed, err := g.generateObject(ctx, op, req, msgAnalyzeOfferFailed)
	if err != nil {
		return nil, err
	}

	analysis := &model.NegotiationAnalysis{
		Competitiveness:  str(obj, "competitiveness", ""),
		RecommendedRange: str(obj, "recommendedRange", "Not specified"),
		Script:           str(obj, "script", ""),
	}
	if analysis.Script == "" && analysis.Competitiveness == "" {
		return nil, g.parseFailure(op, fmt.Sprint(obj), elapsed, errWrongShape, msgAnalyzeOfferFailed)
	}
	g.succeeded(op, elapsed)
	return analysis, nil
}

const findContactsPrompt = `You are a networking assistant. Find 3 to 5 public professional profiles of people who work at "%s".
Prefer recruiters, talent acquisition, hiring managers and senior people in relevant departments.
For each person give the name, the title, the public LinkedIn URL and a public email address if one exists.
Use an empty string for anything you cannot find.

Return only a JSON array in this format:
[{"name": "string", "title": "string", "linkedinUrl": "string", "email": "string"}]`

// FindPotentialContacts は応募先企業の連絡候補者を探す。
// 生成に失敗した場合や0件の場合は見本データ（Sample=true）を返し、エラーにはしない。
func (g *Gateway) FindPotentialContacts(ctx context.Context, company string) (*model.ContactsResult, error) {
	const op = "find_contacts"
	if strings.TrimSpace(company) == "" {
		return nil, validationError(msgMissingCompany)
	}

	req := llm.Request{Prompt: fmt.Sprintf(findContactsPrompt, company), Search: true}
	arr, elapsed, err := g.generateArray(ctx, op, req, msgFindContactsFailed, "contacts")
	if err != nil {
		return g.sampleContacts(op, err), nil
	}

	contacts := []model.PotentialContact{}
	for _, obj := range objects(arr) {
		c := model.PotentialContact{
			Name:        str(obj, "name", ""),
			Title:       str(obj, "title", ""),
			LinkedInURL: firstStr(obj, "", "linkedinUrl", "linkedin"),
			Email:       str(obj, "email", ""),
		}
		if c.Name != "" {
			contacts = append(contacts, c)
		}
	}
	if len(contacts) == 0 {
		return g.sampleContacts(op, errWrongShape), nil
	}

	g.succeeded(op, elapsed)
	return &model.ContactsResult{Contacts: contacts}, nil
}

func (g *Gateway) sampleContacts(op string, cause error) *model.ContactsResult {
	g.metrics.RecordGeneration(op, resultDegraded, 0)
	g.logger.Info("連絡候補者の代わりに見本データを返します",
		slog.String("operation", op),
		slog.String("cause", cause.Error()),
	)
	return &model.ContactsResult{Contacts: SampleContacts(), Sample: true}
}

// SampleContacts は見本の連絡候補者を返す。
func SampleContacts() []model.PotentialContact {
	return []model.PotentialContact{
		{Name: "Jane Doe", Title: "Senior Technical Recruiter", LinkedInURL: "#", Email: "jane.doe@example.com"},
		{Name: "John Smith", Title: "Hiring Manager, Engineering", LinkedInURL: "#", Email: "john.smith@example.com"},
		{Name: "Emily White", Title: "Talent Acquisition Partner", LinkedInURL: "#", Email: "emily.white@example.com"},
	}
}

const insightsPrompt = `You are a career strategist. Analyze this application and give the candidate
insights for interview preparation.

Job:
- Title: %s
- Company: %s
- Description: %s

Resume:
---
%s
---

Candidate's notes:
---
%s
---

Return only one JSON object in this format:
{
  "strengths": ["3 or 4 strengths of the candidate for this role"],
  "talkingPoints": ["3 or 4 points to raise in the interview"],
  "redFlags": ["2 or 3 weaknesses or open questions to prepare for"]
}`

// GetApplicationInsights は応募管理中の求人について面接準備の洞察を生成する。
func (g *Gateway) GetApplicationInsights(ctx context.Context, job model.TrackedJob, resume string) (*model.ApplicationInsights, error) {
	const op = "application_insights"
	if strings.TrimSpace(resume) == "" {
		return nil, validationError(msgMissingBaseResume)
	}
	notes := job.Notes
	if strings.TrimSpace(notes) == "" {
		notes = "No notes provided."
	}

	req := llm.Request{Prompt: fmt.Sprintf(insightsPrompt, job.Title, job.Company, job.Description, resume, notes)}
	obj, elapsed, err := g.generateObject(ctx, op, req, msgInsightsFailed)
	if err != nil {
		return nil, err
	}

	insights := &model.ApplicationInsights{
		Strengths:     strs(obj, "strengths"),
		TalkingPoints: strs(obj, "talkingPoints"),
		RedFlags:      strs(obj, "redFlags"),
	}
	if len(insights.Strengths) == 0 && len(insights.TalkingPoints) == 0 {
		return nil, g.parseFailure(op, fmt.Sprint(obj), elapsed, errWrongShape, msgInsightsFailed)
	}
	g.succeeded(op, elapsed)
	return insights, nil
}

const careerPathPrompt = `You are a career strategist and mentor. Plan how the candidate can move from
the current role to the goal role, based on the skills and experience the goal role usually needs.

Current role: %s
Goal role: %s

Return only one JSON object in this format:
{
  "currentRole": "string",
  "goalRole": "string",
  "keySkillsToDevelop": ["The most important technical and soft skills to build"],
  "projectIdeas": ["2 or 3 portfolio projects that prove readiness for the goal role"],
  "bridgeRoles": ["1 or 2 intermediate job titles"],
  "timeline": "A realistic timeline such as '2-4 years' with the main milestones"
}`

// GenerateCareerPathPlan はキャリアパス計画を検索モードで生成する。
func (g *Gateway) GenerateCareerPathPlan(ctx context.Context, currentRole, goalRole string) (*model.CareerPathPlan, error) {
	const op = "career_path"
	if strings.TrimSpace(currentRole) == "" || strings.TrimSpace(goalRole) == "" {
		return nil, validationError(msgMissingRoles)
	}

	req := llm.Request{Prompt: fmt.Sprintf(careerPathPrompt, currentRole, goalRole), Search: true}
	obj, elapsed, err := g.generateObject(ctx, op, req, msgCareerPathFailed)
	if err != nil {
		return nil, err
	}

	plan := &model.CareerPathPlan{
		CurrentRole:        str(obj, "currentRole", currentRole),
		GoalRole:           str(obj, "goalRole", goalRole),
		KeySkillsToDevelop: strs(obj, "keySkillsToDevelop"),
		ProjectIdeas:       strs(obj, "projectIdeas"),
		BridgeRoles:        strs(obj, "bridgeRoles"),
		Timeline:           str(obj, "timeline", "Not specified"),
	}
	if len(plan.KeySkillsToDevelop) == 0 {
		return nil, g.parseFailure(op, fmt.Sprint(obj), elapsed, errWrongShape, msgCareerPathFailed)
	}
	g.succeeded(op, elapsed)
	return plan, nil
}

const applicationFormPrompt = `You are a job application assistant. Open the application page at the URL below,
find every input field of the form and fill it in for the candidate.

URL: %s
Applying for %s at %s.

Candidate:
- Full name: %s
- Email: %s
- Phone: %s
- LinkedIn: %s
- GitHub: %s
- Portfolio: %s
- Summary: %s

Rules:
1. Map the candidate data to the standard fields. For a resume upload field, say that the resume should be attached.
2. Find the open questions (for example "Why do you want to work here?" or salary expectations) and write
   a short, professional answer to each one for this job.
3. Field "type" must be one of "text", "textarea", "file" or "custom".

Return only one JSON object in this format:
{
  "basicInfo": [{"id": "string", "label": "string", "type": "text", "value": "string"}],
  "customQuestions": [{"id": "string", "label": "string", "type": "textarea", "value": "string"}]
}`

// AnalyzeApplicationForm は応募ページのフォームを解析し、プロフィールで下書きする。
// 求人にURLが無い場合や生成に失敗した場合は見本フォーム（Sample=true）を返す。
func (g *Gateway) AnalyzeApplicationForm(ctx context.Context, job model.Job, profile model.UserProfile) (*model.ParsedApplicationForm, error) {
	const op = "application_form"
	if strings.TrimSpace(job.SourceURL) == "" {
		return g.sampleForm(op, job, profile, fmt.Errorf("job %s has no source url", job.ID)), nil
	}

	req := llm.Request{
		Prompt: fmt.Sprintf(applicationFormPrompt,
			job.SourceURL, job.Title, job.Company,
			profile.Name, profile.Email, profile.Phone,
			orNotProvided(profile.LinkedIn), orNotProvided(profile.GitHub), orNotProvided(profile.Portfolio),
			profile.Bio),
		Search: true,
	}
	obj, elapsed, err := g.generateObject(ctx, op, req, msgApplicationFormFailed)
	if err != nil {
		return g.sampleForm(op, job, profile, err), nil
	}

	basic, okBasic := obj["basicInfo"].([]any)
	custom, okCustom := obj["customQuestions"].([]any)
	if !okBasic || !okCustom {
		return g.sampleForm(op, job, profile, g.parseFailure(op, fmt.Sprint(obj), elapsed, errWrongShape, msgApplicationFormFailed)), nil
	}

	g.succeeded(op, elapsed)
	return &model.ParsedApplicationForm{
		BasicInfo:       coerceFields(basic, "basic", model.FieldText),
		CustomQuestions: coerceFields(custom, "custom", model.FieldTextarea),
	}, nil
}

func coerceFields(arr []any, prefix, defaultType string) []model.ApplicationFormField {
	fields := []model.ApplicationFormField{}
	for i, obj := range objects(arr) {
		label := str(obj, "label", "")
		if label == "" {
			continue
		}
		fields = append(fields, model.ApplicationFormField{
			ID:    str(obj, "id", fmt.Sprintf("%s-%d", prefix, i+1)),
			Label: label,
			Type:  fieldType(str(obj, "type", defaultType), defaultType),
			Value: str(obj, "value", ""),
		})
	}
	return fields
}

func fieldType(t, def string) string {
	switch t {
	case model.FieldText, model.FieldTextarea, model.FieldFile, model.FieldCustom:
		return t
	}
	return def
}

func (g *Gateway) sampleForm(op string, job model.Job, profile model.UserProfile, cause error) *model.ParsedApplicationForm {
	g.metrics.RecordGeneration(op, resultDegraded, 0)
	g.logger.Info("応募フォームの代わりに見本フォームを返します",
		slog.String("operation", op),
		slog.String("job_id", job.ID),
		slog.String("cause", cause.Error()),
	)
	return SampleApplicationForm(job, profile)
}

// SampleApplicationForm はプロフィールで下書きした見本の応募フォームを返す。
func SampleApplicationForm(job model.Job, profile model.UserProfile) *model.ParsedApplicationForm {
	company := job.Company
	if company == "" {
		company = "this company"
	}
	return &model.ParsedApplicationForm{
		BasicInfo: []model.ApplicationFormField{
			{ID: "full_name", Label: "Full Name", Type: model.FieldText, Value: profile.Name},
			{ID: "email", Label: "Email", Type: model.FieldText, Value: profile.Email},
			{ID: "phone", Label: "Phone", Type: model.FieldText, Value: profile.Phone},
			{ID: "linkedin", Label: "LinkedIn Profile", Type: model.FieldText, Value: profile.LinkedIn},
			{ID: "resume", Label: "Resume", Type: model.FieldFile, Value: "Attach your resume"},
		},
		CustomQuestions: []model.ApplicationFormField{
			{
				ID:    "why_company",
				Label: fmt.Sprintf("Why do you want to work at %s?", company),
				Type:  model.FieldTextarea,
				Value: strings.TrimSpace(fmt.Sprintf("I am excited about the %s role at %s. %s", job.Title, company, profile.Bio)),
			},
			{
				ID:    "salary_expectations",
				Label: "What are your salary expectations?",
				Type:  model.FieldCustom,
				Value: "I am open to a competitive offer in line with the market for this role.",
			},
		},
		Sample: true,
	}
}

// truncateRunes は先頭 n 文字（rune単位）に切り詰める。
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
