package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/model"
)

const (
	msgCoverLetterFailed = "Could not generate cover letter. Please check your API key and try again."
	msgFollowUpFailed    = "Could not generate the follow-up email."
	msgOutreachFailed    = "Could not generate the outreach message."
	msgMissingContact    = "Please choose a contact first."
)

const coverLetterPrompt = `You are a professional career writer.
Write a personalized cover letter for %s applying for the %s position at %s.

- Use the candidate's profile and bio for a genuine, personal tone.
- Refer to concrete requirements from the job description.
- Use an introduction, a body and a conclusion.
- Do not leave placeholders such as "[Your Name]" or "[Date]". Fill them from the details below.
- Output only the text of the letter.

Candidate:
- Name: %s
- Email: %s
- Phone: %s
- Bio: %s

Job:
- Title: %s
- Company: %s
- Description: %s`

// GenerateCoverLetter はカバーレターを生成する。
func (g *Gateway) GenerateCoverLetter(ctx context.Context, profile model.UserProfile, job model.Job) (string, error) {
	req := llm.Request{
		Prompt: fmt.Sprintf(coverLetterPrompt,
			profile.Name, job.Title, job.Company,
			profile.Name, profile.Email, profile.Phone, profile.Bio,
			job.Title, job.Company, job.Description),
	}
	return g.generateText(ctx, "cover_letter", req, msgCoverLetterFailed)
}

const followUpPrompt = `You are a professional communication assistant.
Write a short follow-up email from %s after the interview for the %s position at %s.

Details:
- Interviewer: %s
- Interview date: %s
- Candidate's notes from the interview: %s

Rules:
1. Keep the tone professional, warm and concise.
2. Thank the interviewer for their time and restate interest in the role.
3. If notes are given, mention one key point from them.
4. Output only the email body. No subject line and no placeholders.`

// GenerateFollowUpEmail は面接後のお礼メール本文を生成する。
func (g *Gateway) GenerateFollowUpEmail(ctx context.Context, profile model.UserProfile, job model.Job, interviewer, interviewDate, notes string) (string, error) {
	if strings.TrimSpace(notes) == "" {
		notes = "None"
	}
	req := llm.Request{
		Prompt: fmt.Sprintf(followUpPrompt, profile.Name, job.Title, job.Company, interviewer, interviewDate, notes),
	}
	return g.generateText(ctx, "follow_up_email", req, msgFollowUpFailed)
}

const outreachPrompt = `You are a professional communication writer.
Draft a short, polite outreach message from "%s" to "%s (%s)".
The sender is interested in the "%s" role at their company.
The goal is to make a connection and express interest, not to ask for a job.
Output only the message text.`

// GenerateOutreachMessage は連絡候補者へのアプローチ文を生成する。
func (g *Gateway) GenerateOutreachMessage(ctx context.Context, userName string, contact model.PotentialContact, jobTitle string) (string, error) {
	if strings.TrimSpace(contact.Name) == "" {
		return "", validationError(msgMissingContact)
	}
	req := llm.Request{
		Prompt: fmt.Sprintf(outreachPrompt, userName, contact.Name, contact.Title, jobTitle),
	}
	return g.generateText(ctx, "outreach_message", req, msgOutreachFailed)
}
