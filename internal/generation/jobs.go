package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/model"
)

const (
	msgParseJobFailed   = "Could not analyze the provided job content. The AI might have had trouble understanding the format."
	msgParseJobNoInput  = "Please paste the job description or attach a screenshot."
	msgSearchJobsFailed = "Could not search for live jobs."
)

const parseJobPrompt = `You are a job posting parser. Read the job posting provided as text and/or an image
and extract its details.

Rules:
1. Identify the job title, the company, the location and the full description.
2. Use the salary if one is stated, otherwise "Not specified".
3. Suggest 3 to 5 skill tags that fit the description.

Return only one JSON object in this format:
{
  "title": "string",
  "company": "string",
  "location": "string",
  "description": "string",
  "tags": ["string"],
  "salary": "string"
}`

// ParseJobFromContent は貼り付けられた求人テキストや画像から求人を抽出する。
// IDは常に "imported-<ミリ秒>" を採番する。
func (g *Gateway) ParseJobFromContent(ctx context.Context, text string, image *llm.Part) (*model.Job, error) {
	const op = "parse_job"
	text = strings.TrimSpace(text)
	if text == "" && (image == nil || len(image.Data) == 0) {
		return nil, validationError(msgParseJobNoInput)
	}

	req := llm.Request{Prompt: parseJobPrompt}
	if text != "" {
		req.Prompt += "\n\nJob posting text:\n" + text
	}
	if image != nil && len(image.Data) > 0 {
		req.Parts = append(req.Parts, *image)
	}

	obj, elapsed, err := g.generateObject(ctx, op, req, msgParseJobFailed)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:          fmt.Sprintf("imported-%d", g.now().UnixMilli()),
		Title:       str(obj, "title", "Untitled Job"),
		Company:     str(obj, "company", "Unknown Company"),
		Location:    str(obj, "location", "Unknown Location"),
		Description: str(obj, "description", "No description found."),
		Tags:        strs(obj, "tags"),
		Salary:      str(obj, "salary", "Not specified"),
		PostedDate:  str(obj, "postedDate", "Today"),
		SourceURL:   str(obj, "sourceUrl", ""),
	}
	g.succeeded(op, elapsed)
	return job, nil
}

const searchJobsPrompt = `You are a job search aggregator acting like a job board API.
Find %d real job postings that are currently open for the query below.

Query: "%s" in "%s"%s

Rules:
1. Prefer listings from company career pages and well known job boards.
2. Include the direct URL of the original posting for every job.
3. Give a detailed description.
4. Use "Not specified" when no salary is given. Never invent a salary.

Return only a JSON array. Each element must have this format:
{
  "title": "string",
  "company": "string",
  "location": "string",
  "description": "string",
  "tags": ["string"],
  "salary": "string",
  "postedDate": "string",
  "sourceUrl": "string"
}`

// timeFilterPhrase は掲載期間の絞り込みをプロンプト用の文言にする。
func timeFilterPhrase(filter model.TimeFilter) string {
	switch filter {
	case model.TimeFilterHour:
		return "\nOnly include jobs posted within the last hour."
	case model.TimeFilterDay:
		return "\nOnly include jobs posted within the last 24 hours."
	case model.TimeFilterWeek:
		return "\nOnly include jobs posted within the last 7 days."
	case model.TimeFilterMonth:
		return "\nOnly include jobs posted within the last 30 days."
	default:
		return ""
	}
}

// SearchJobs は検索モードで実在の求人を探す。取得チェーンの2段目で使う。
// 欠けている項目はすべて既定値で埋め、IDは "ai-<連番>-<ミリ秒>" を採番する。
func (g *Gateway) SearchJobs(ctx context.Context, term, location string, filter model.TimeFilter) ([]model.Job, error) {
	const op = "search_jobs"
	if strings.TrimSpace(term) == "" && strings.TrimSpace(location) == "" {
		return nil, validationError("Please enter a search term or location.")
	}
	if location == "" {
		location = "anywhere"
	}

	req := llm.Request{
		Prompt: fmt.Sprintf(searchJobsPrompt, 5, term, location, timeFilterPhrase(filter)),
		Search: true,
	}
	arr, elapsed, err := g.generateArray(ctx, op, req, msgSearchJobsFailed, "jobs", "results")
	if err != nil {
		return nil, err
	}

	stamp := g.now().UnixMilli()
	jobs := make([]model.Job, 0, len(arr))
	for i, obj := range objects(arr) {
		jobs = append(jobs, model.Job{
			ID:          fmt.Sprintf("ai-%d-%d", i, stamp),
			Title:       str(obj, "title", "No title provided"),
			Company:     str(obj, "company", "No company provided"),
			Location:    str(obj, "location", "No location provided"),
			Description: str(obj, "description", "No description provided."),
			Tags:        strs(obj, "tags"),
			Salary:      str(obj, "salary", "Not specified"),
			PostedDate:  str(obj, "postedDate", "Recently"),
			SourceURL:   str(obj, "sourceUrl", ""),
		})
	}
	g.succeeded(op, elapsed)
	return jobs, nil
}
