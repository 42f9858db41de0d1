package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/model"
)

const (
	msgParseResumeFailed      = "Could not parse the resume file. Please ensure it's a valid text-based PDF or TXT file."
	msgParseResumeNoFile      = "Please choose a resume file to upload."
	msgTailorResumeFailed     = "Could not tailor the resume for this job."
	msgStructuredResumeFailed = "Could not generate the structured PDF resume content."
	msgMissingBaseResume      = "Please add your base resume to your profile first."
	msgMissingJobDescription  = "The job description is empty."
)

const parseResumePrompt = `You are an HR data parser. Read the attached resume and extract data for a user profile.

Rules:
1. Extract the full name of the candidate.
2. Extract the full text of the resume as "baseResume".
3. Take a short professional bio from the summary or objective section.
   If there is none, write one sentence based on the most recent role.

Return only one JSON object in this format:
{
  "name": "string",
  "bio": "string",
  "baseResume": "string"
}`

// ParseResume はアップロードされた職務経歴書ファイルからプロフィール項目を抽出する。
func (g *Gateway) ParseResume(ctx context.Context, file llm.Part) (*model.ParsedResume, error) {
	const op = "parse_resume"
	if len(file.Data) == 0 {
		return nil, validationError(msgParseResumeNoFile)
	}

	req := llm.Request{Prompt: parseResumePrompt}
	if strings.HasPrefix(file.MIMEType, "text/") {
		// テキストファイルはそのままプロンプトに含める
		req.Prompt += "\n\nResume:\n---\n" + string(file.Data) + "\n---"
	} else {
		req.Parts = []llm.Part{file}
	}

	obj, elapsed, err := g.generateObject(ctx, op, req, msgParseResumeFailed)
	if err != nil {
		return nil, err
	}

	parsed := &model.ParsedResume{
		Name:       str(obj, "name", ""),
		Bio:        str(obj, "bio", ""),
		BaseResume: str(obj, "baseResume", ""),
	}
	if parsed.BaseResume == "" {
		return nil, g.parseFailure(op, fmt.Sprint(obj), elapsed, errWrongShape, msgParseResumeFailed)
	}
	g.succeeded(op, elapsed)
	return parsed, nil
}

const tailorResumePrompt = `You are an ATS resume optimizer. Rewrite the candidate's resume so it targets the job below.
Keep every fact true, reorder and reword to highlight the matching experience, and use keywords
from the job description. Return the resume as plain text only.

Candidate: %s

Base resume:
---
%s
---

Job: %s at %s
Job description:
---
%s
---`

// TailorResume は基本の職務経歴を求人向けに書き換えたプレーンテキストを返す。
func (g *Gateway) TailorResume(ctx context.Context, profile model.UserProfile, job model.Job) (string, error) {
	if strings.TrimSpace(profile.BaseResume) == "" {
		return "", validationError(msgMissingBaseResume)
	}
	req := llm.Request{
		Prompt: fmt.Sprintf(tailorResumePrompt, profile.Name, profile.BaseResume, job.Title, job.Company, job.Description),
	}
	return g.generateText(ctx, "tailor_resume", req, msgTailorResumeFailed)
}

const structuredResumePrompt = `You are an ATS resume optimizer and professional resume writer.
Tailor the candidate's base resume to the job description and return it as one JSON object.
The resume must fit on a single page.

Candidate:
- Name: %s
- Email: %s
- Phone: %s
- LinkedIn: %s
- GitHub: %s
- Portfolio: %s

Base resume:
---
%s
---

Job description:
---
%s
---

Rules:
1. Rewrite the summary and the experience bullet points around the skills and keywords the job asks for.
   Quantify achievements where the resume supports it.
2. Group skills into categories such as "Languages", "Frameworks & Libraries", "Databases" and "Tools & Platforms".
3. For each project give a short description and the technologies used.

Return only one JSON object in this format:
{
  "contactInfo": {"name": "string", "email": "string", "phone": "string", "linkedin": "string", "github": "string", "portfolio": "string"},
  "summary": "string",
  "experience": [{"title": "string", "company": "string", "location": "string", "dates": "string", "points": ["string"]}],
  "education": [{"institution": "string", "degree": "string", "dates": "string", "details": "string"}],
  "projects": [{"name": "string", "description": "string", "technologies": ["string"], "link": "string"}],
  "skills": [{"category": "string", "list": ["string"]}]
}`

// GenerateStructuredResume は求人向けに最適化した構造化職務経歴を生成する。
// 結果はスキーマ検証を通ったものだけを返す。
func (g *Gateway) GenerateStructuredResume(ctx context.Context, profile model.UserProfile, jobDescription string) (*model.StructuredResume, error) {
	const op = "structured_resume"
	if strings.TrimSpace(profile.BaseResume) == "" {
		return nil, validationError(msgMissingBaseResume)
	}
	if strings.TrimSpace(jobDescription) == "" {
		return nil, validationError(msgMissingJobDescription)
	}

	req := llm.Request{
		Prompt: fmt.Sprintf(structuredResumePrompt,
			profile.Name, profile.Email, profile.Phone,
			orNotProvided(profile.LinkedIn), orNotProvided(profile.GitHub), orNotProvided(profile.Portfolio),
			profile.BaseResume, jobDescription),
	}
	obj, elapsed, err := g.generateObject(ctx, op, req, msgStructuredResumeFailed)
	if err != nil {
		return nil, err
	}

	resume := coerceStructuredResume(obj, profile)
	if err := validateStructuredResume(resume); err != nil {
		return nil, g.parseFailure(op, fmt.Sprint(obj), elapsed, err, msgStructuredResumeFailed)
	}
	g.succeeded(op, elapsed)
	return resume, nil
}

// coerceStructuredResume は中間表現を StructuredResume に変換する。
// 連絡先の欠落はプロフィールで補い、別名のキー（contact, university など）も受け付ける。
func coerceStructuredResume(obj map[string]any, profile model.UserProfile) *model.StructuredResume {
	contact, _ := obj["contactInfo"].(map[string]any)
	if contact == nil {
		contact, _ = obj["contact"].(map[string]any)
	}
	if contact == nil {
		contact = map[string]any{}
	}

	r := &model.StructuredResume{
		Contact: model.ResumeContact{
			Name:      str(contact, "name", profile.Name),
			Email:     str(contact, "email", profile.Email),
			Phone:     str(contact, "phone", profile.Phone),
			LinkedIn:  str(contact, "linkedin", profile.LinkedIn),
			GitHub:    str(contact, "github", profile.GitHub),
			Portfolio: str(contact, "portfolio", profile.Portfolio),
		},
		Summary:    str(obj, "summary", ""),
		Experience: []model.ResumeExperience{},
		Education:  []model.ResumeEducation{},
		Projects:   []model.ResumeProject{},
		Skills:     []model.ResumeSkillGroup{},
	}

	arr, _ := obj["experience"].([]any)
	for _, e := range objects(arr) {
		r.Experience = append(r.Experience, model.ResumeExperience{
			Title:    str(e, "title", ""),
			Company:  str(e, "company", ""),
			Location: str(e, "location", ""),
			Dates:    str(e, "dates", ""),
			Points:   strs(e, "points"),
		})
	}

	arr, _ = obj["education"].([]any)
	for _, e := range objects(arr) {
		r.Education = append(r.Education, model.ResumeEducation{
			Institution: firstStr(e, "", "institution", "university", "school"),
			Degree:      str(e, "degree", ""),
			Dates:       str(e, "dates", ""),
			Details:     str(e, "details", ""),
		})
	}

	arr, _ = obj["projects"].([]any)
	for _, e := range objects(arr) {
		desc := str(e, "description", "")
		if desc == "" {
			desc = strings.Join(strs(e, "points"), " ")
		}
		r.Projects = append(r.Projects, model.ResumeProject{
			Name:         str(e, "name", ""),
			Description:  desc,
			Technologies: strs(e, "technologies"),
			Link:         str(e, "link", ""),
		})
	}

	arr, _ = obj["skills"].([]any)
	for _, e := range objects(arr) {
		r.Skills = append(r.Skills, model.ResumeSkillGroup{
			Category: str(e, "category", "Skills"),
			List:     strs(e, "list"),
		})
	}
	return r
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not provided"
	}
	return s
}
