package model

// UserProfile はユーザーのプロフィールを表す。
// BaseResume は生成系の入力に使う正本の職務経歴テキスト。
type UserProfile struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	LinkedIn      string `json:"linkedin"`
	GitHub        string `json:"github"`
	Portfolio     string `json:"portfolio"`
	Bio           string `json:"bio"`
	BaseResume    string `json:"baseResume"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	CoverImageURL string `json:"coverImageUrl,omitempty"`
}

// IdentityClaims はIdPから受け取るプロフィール初期値。
type IdentityClaims struct {
	Name      string
	Email     string
	Phone     string
	AvatarURL string
}

// StructuredResume は職務経歴をセクション単位に正規化したもの。
// 文書レンダリングの入力として使う。
type StructuredResume struct {
	Contact    ResumeContact      `json:"contactInfo"`
	Summary    string             `json:"summary"`
	Experience []ResumeExperience `json:"experience"`
	Education  []ResumeEducation  `json:"education"`
	Projects   []ResumeProject    `json:"projects"`
	Skills     []ResumeSkillGroup `json:"skills"`
}

// Clone は入れ子のリストまで複製する。nil なら nil。
func (r *StructuredResume) Clone() *StructuredResume {
	if r == nil {
		return nil
	}
	c := *r
	if r.Experience != nil {
		c.Experience = make([]ResumeExperience, len(r.Experience))
		for i, e := range r.Experience {
			e.Points = cloneStrings(e.Points)
			c.Experience[i] = e
		}
	}
	if r.Education != nil {
		c.Education = append([]ResumeEducation{}, r.Education...)
	}
	if r.Projects != nil {
		c.Projects = make([]ResumeProject, len(r.Projects))
		for i, p := range r.Projects {
			p.Technologies = cloneStrings(p.Technologies)
			c.Projects[i] = p
		}
	}
	if r.Skills != nil {
		c.Skills = make([]ResumeSkillGroup, len(r.Skills))
		for i, g := range r.Skills {
			g.List = cloneStrings(g.List)
			c.Skills[i] = g
		}
	}
	return &c
}

// ResumeContact は連絡先ブロック。
type ResumeContact struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	LinkedIn  string `json:"linkedin"`
	GitHub    string `json:"github"`
	Portfolio string `json:"portfolio"`
}

// ResumeExperience は職歴エントリ。
type ResumeExperience struct {
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	Location string   `json:"location"`
	Dates    string   `json:"dates"`
	Points   []string `json:"points"`
}

// ResumeEducation は学歴エントリ。
type ResumeEducation struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Dates       string `json:"dates"`
	Details     string `json:"details,omitempty"`
}

// ResumeProject はプロジェクトエントリ。
type ResumeProject struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Link         string   `json:"link,omitempty"`
}

// ResumeSkillGroup はカテゴリ別スキル。
type ResumeSkillGroup struct {
	Category string   `json:"category"`
	List     []string `json:"list"`
}
