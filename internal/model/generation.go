package model

// ParsedResume はアップロードされた職務経歴書からの抽出結果。
type ParsedResume struct {
	Name       string `json:"name"`
	Bio        string `json:"bio"`
	BaseResume string `json:"baseResume"`
}

// SkillAnalysis はスキルギャップ分析の結果。
type SkillAnalysis struct {
	MatchingSkills []string `json:"matchingSkills"`
	MissingSkills  []string `json:"missingSkills"`
	Suggestions    string   `json:"suggestions"`
}

// InterviewQuestion は面接想定質問。
type InterviewQuestion struct {
	Category string `json:"category"`
	Question string `json:"question"`
}

// 面接質問のカテゴリ。
const (
	QuestionBehavioral  = "Behavioral"
	QuestionTechnical   = "Technical"
	QuestionSituational = "Situational"
)

// InterviewFeedback は模擬面接の回答に対する講評。
// 動画講評の場合のみ BodyLanguageFeedback と PacingFeedback を含む。
type InterviewFeedback struct {
	Feedback             string   `json:"feedback"`
	Suggestions          []string `json:"suggestions"`
	BodyLanguageFeedback string   `json:"bodyLanguageFeedback,omitempty"`
	PacingFeedback       string   `json:"pacingFeedback,omitempty"`
}

// CompanyBriefing は企業研究の要約。
type CompanyBriefing struct {
	Mission            string   `json:"mission"`
	RecentNews         string   `json:"recentNews"`
	Culture            string   `json:"culture"`
	InterviewQuestions []string `json:"interviewQuestions"`
}

// NegotiationAnalysis はオファー分析と交渉スクリプト。
type NegotiationAnalysis struct {
	Competitiveness  string `json:"competitiveness"`
	RecommendedRange string `json:"recommendedRange"`
	Script           string `json:"script"`
}

// PotentialContact は応募先企業の連絡候補者。
type PotentialContact struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	LinkedInURL string `json:"linkedinUrl,omitempty"`
	Email       string `json:"email,omitempty"`
}

// ContactsResult は連絡候補者の検索結果。Sample が true の場合は見本データ。
type ContactsResult struct {
	Contacts []PotentialContact `json:"contacts"`
	Sample   bool               `json:"sample"`
}

// CareerPathPlan はキャリアパス計画。
type CareerPathPlan struct {
	CurrentRole        string   `json:"currentRole"`
	GoalRole           string   `json:"goalRole"`
	KeySkillsToDevelop []string `json:"keySkillsToDevelop"`
	ProjectIdeas       []string `json:"projectIdeas"`
	BridgeRoles        []string `json:"bridgeRoles"`
	Timeline           string   `json:"timeline"`
}

// 応募フォーム項目の種別。
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldFile     = "file"
	FieldCustom   = "custom"
)

// ApplicationFormField は応募フォームの1項目。
type ApplicationFormField struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ParsedApplicationForm は応募フォームの解析結果。Sample が true の場合は見本データ。
type ParsedApplicationForm struct {
	BasicInfo       []ApplicationFormField `json:"basicInfo"`
	CustomQuestions []ApplicationFormField `json:"customQuestions"`
	Sample          bool                   `json:"sample"`
}
