package model

import "strings"

// Job は求人情報を表す。
// IDは取得元ごとに接頭辞を付けて名前空間を分ける（indeed-, ai-, demo- など）。
type Job struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Location     string   `json:"location"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Salary       string   `json:"salary"`
	PostedDate   string   `json:"postedDate"`
	SourceURL    string   `json:"sourceUrl,omitempty"`
	IsWishlisted bool     `json:"isWishlisted,omitempty"`
}

// Clone はタグスライスを含めたJobのコピーを返す。
func (j Job) Clone() Job {
	c := j
	c.Tags = cloneStrings(j.Tags)
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// ApplicationStatus は応募パイプラインのステータスを表す。
type ApplicationStatus string

const (
	StatusSaved        ApplicationStatus = "Saved"
	StatusApplied      ApplicationStatus = "Applied"
	StatusInterviewing ApplicationStatus = "Interviewing"
	StatusOffer        ApplicationStatus = "Offer"
	StatusRejected     ApplicationStatus = "Rejected"
)

// ApplicationStatuses はパイプライン表示順のステータス一覧。
var ApplicationStatuses = []ApplicationStatus{
	StatusSaved,
	StatusApplied,
	StatusInterviewing,
	StatusOffer,
	StatusRejected,
}

// ParseApplicationStatus は文字列をステータスに変換する。大文字小文字は区別しない。
func ParseApplicationStatus(s string) (ApplicationStatus, bool) {
	for _, st := range ApplicationStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

// OfferDetails はオファー条件を表す。金額は表示用の自由文字列。
type OfferDetails struct {
	Salary string `json:"salary"`
	Bonus  string `json:"bonus"`
	Equity string `json:"equity"`
}

// Clone はコピーへのポインタを返す。nil なら nil。
func (o *OfferDetails) Clone() *OfferDetails {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

// ApplicationInsights は応募ごとの分析結果を表す。
type ApplicationInsights struct {
	Strengths     []string `json:"strengths"`
	TalkingPoints []string `json:"talkingPoints"`
	RedFlags      []string `json:"redFlags"`
}

// Clone は各リストを含めて複製する。nil なら nil。
func (a *ApplicationInsights) Clone() *ApplicationInsights {
	if a == nil {
		return nil
	}
	return &ApplicationInsights{
		Strengths:     cloneStrings(a.Strengths),
		TalkingPoints: cloneStrings(a.TalkingPoints),
		RedFlags:      cloneStrings(a.RedFlags),
	}
}

// TrackedJob はユーザーが応募管理している求人を表す。
type TrackedJob struct {
	Job
	Status              ApplicationStatus    `json:"status"`
	Notes               string               `json:"notes"`
	TailoredResume      string               `json:"tailoredResume,omitempty"`
	TailoredCoverLetter string               `json:"tailoredCoverLetter,omitempty"`
	StructuredResume    *StructuredResume    `json:"structuredResume,omitempty"`
	OfferDetails        *OfferDetails        `json:"offerDetails,omitempty"`
	Insights            *ApplicationInsights `json:"insights,omitempty"`
}

// Clone は求人本体と生成文書・オファー条件・分析結果を含めて複製する。
// 返り値を書き換えても元の値には影響しない。
func (t TrackedJob) Clone() TrackedJob {
	out := t
	out.Job = t.Job.Clone()
	out.StructuredResume = t.StructuredResume.Clone()
	out.OfferDetails = t.OfferDetails.Clone()
	out.Insights = t.Insights.Clone()
	return out
}

// TrackedJobPatch はTrackedJobへの部分更新を表す。
// nilのフィールドは変更しない。ID・ステータス・求人本体は対象外。
type TrackedJobPatch struct {
	Notes               *string              `json:"notes,omitempty"`
	TailoredResume      *string              `json:"tailoredResume,omitempty"`
	TailoredCoverLetter *string              `json:"tailoredCoverLetter,omitempty"`
	StructuredResume    *StructuredResume    `json:"structuredResume,omitempty"`
	OfferDetails        *OfferDetails        `json:"offerDetails,omitempty"`
	Insights            *ApplicationInsights `json:"insights,omitempty"`
}

// IsEmpty は変更対象のフィールドが1つもないかを返す。
func (p TrackedJobPatch) IsEmpty() bool {
	return p.Notes == nil && p.TailoredResume == nil && p.TailoredCoverLetter == nil &&
		p.StructuredResume == nil && p.OfferDetails == nil && p.Insights == nil
}

// Apply はパッチをTrackedJobに浅くマージした結果を返す。
// パッチ側のポインタは複製してから入れるので、結果はパッチとも t とも領域を共有しない。
func (p TrackedJobPatch) Apply(t TrackedJob) TrackedJob {
	out := t.Clone()
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	if p.TailoredResume != nil {
		out.TailoredResume = *p.TailoredResume
	}
	if p.TailoredCoverLetter != nil {
		out.TailoredCoverLetter = *p.TailoredCoverLetter
	}
	if p.StructuredResume != nil {
		out.StructuredResume = p.StructuredResume.Clone()
	}
	if p.OfferDetails != nil {
		out.OfferDetails = p.OfferDetails.Clone()
	}
	if p.Insights != nil {
		out.Insights = p.Insights.Clone()
	}
	return out
}
