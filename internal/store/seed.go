package store

import (
	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/repository"
)

// Seed はストアの初期状態。サインイン時とリセット時に使う。
type Seed struct {
	Profile  model.UserProfile
	Catalog  []model.Job
	Tracked  []model.TrackedJob
	Wishlist []model.Job
}

func (s Seed) clone() Seed {
	out := Seed{Profile: s.Profile}
	out.Catalog = make([]model.Job, len(s.Catalog))
	for i, j := range s.Catalog {
		out.Catalog[i] = j.Clone()
	}
	out.Tracked = make([]model.TrackedJob, len(s.Tracked))
	for i, t := range s.Tracked {
		out.Tracked[i] = t.Clone()
	}
	out.Wishlist = make([]model.Job, len(s.Wishlist))
	for i, j := range s.Wishlist {
		out.Wishlist[i] = j.Clone()
	}
	return out
}

// userData は永続化層に書き込む分を複製して返す。カタログは共有データなので含めない。
func (s Seed) userData() repository.UserData {
	c := s.clone()
	return repository.UserData{
		Profile:  c.Profile,
		Tracked:  c.Tracked,
		Wishlist: c.Wishlist,
	}
}

// DefaultSeed はサインイン直後の初期状態を組み立てる。
//
// demo が true の場合は見本プロフィールと見本の応募管理データを入れる。
// それ以外はIdPのクレームからプロフィールを作り、応募管理とウィッシュリストは空にする。
// catalog は見本求人の後ろに追加される。
func DefaultSeed(demo bool, claims model.IdentityClaims, catalog []model.Job) Seed {
	seed := Seed{
		Catalog: append(SampleJobs(), catalog...),
	}

	if demo {
		seed.Profile = SampleProfile()
		seed.Tracked = SampleTrackedJobs()
		for _, t := range seed.Tracked {
			if t.IsWishlisted {
				seed.Wishlist = append(seed.Wishlist, t.Job.Clone())
			}
		}
	}
	applyClaims(&seed.Profile, claims)
	return seed
}

// applyClaims はIdPのクレームで空でない項目をプロフィールに反映する。
func applyClaims(p *model.UserProfile, c model.IdentityClaims) {
	if c.Name != "" {
		p.Name = c.Name
	}
	if c.Email != "" {
		p.Email = c.Email
	}
	if c.Phone != "" {
		p.Phone = c.Phone
	}
	if c.AvatarURL != "" {
		p.AvatarURL = c.AvatarURL
	}
}

// SampleProfile はデモ用のプロフィールを返す。
func SampleProfile() model.UserProfile {
	return model.UserProfile{
		Name:      "Alex Morgan",
		Email:     "alex.morgan@example.com",
		Phone:     "+1 555 0100",
		LinkedIn:  "https://linkedin.com/in/alex-morgan-demo",
		GitHub:    "https://github.com/alex-morgan-demo",
		Portfolio: "https://alex-morgan.example.com",
		Bio: "Results-driven AI and Full-Stack Engineer who has delivered more than a dozen end-to-end projects, " +
			"from machine-learning trading experiments to automation tools that save teams hours every week.",
		BaseResume: sampleResume,
	}
}

const sampleResume = `ALEX MORGAN
+1 555 0100 | Remote | alex.morgan@example.com | LinkedIn | GitHub | Portfolio

SUMMARY
Results-driven AI and Full-Stack Engineer with a track record of building and delivering end-to-end projects. Turns complex challenges into working products, from AI-assisted trading experiments to automation tools that save 40+ hours/week.

EXPERIENCE
Machine Learning Intern | Example Solutions | Feb 2024 - Present, Remote
- Built a Python automation suite for internal data processing and reporting, saving the engineering team over 40 hours of manual work per week.
- Shipped a support chatbot with Node.js that automated routine customer queries and cut first-response time by over 60%.
- Worked in an Agile team to design, build, and test features, contributing to a 15% reduction in the bug backlog before a major release.

PROJECTS
Algorithmic Trading Experiment
- Designed a trading bot that combines market data and sentiment signals, evaluated with back-testing and paper trading.
- Implemented forecasting models with Python, TensorFlow, and Scikit-learn on streaming financial data.

Cross-Platform Commerce App
- Built an iOS and Android shopping app with Flutter backed by Node.js, Express.js, and MongoDB with JWT authentication and Stripe payments.

SKILLS
Languages: Python, JavaScript, Dart, Go
Frameworks & Libraries: Next.js, Node.js, Express.js, Flutter, TensorFlow, Scikit-learn, Pandas
Databases: MongoDB, PostgreSQL, Firebase
Tools & Platforms: Git, Docker, Google Cloud Platform, AWS

EDUCATION
Bachelor of Technology, Artificial Intelligence and Machine Learning | Example Institute of Technology | Expected 2025`

// SampleJobs はカタログに常に含まれる見本求人を返す。
func SampleJobs() []model.Job {
	return []model.Job{
		{
			ID:          "1",
			Title:       "Senior Frontend Engineer",
			Company:     "Innovatech",
			Location:    "San Francisco, CA",
			Description: "Innovatech is seeking a Senior Frontend Engineer to build our next-generation platform. You will work with React, TypeScript, and GraphQL to create beautiful and performant user interfaces. The ideal candidate has a strong eye for design and a passion for web development.",
			Tags:        []string{"React", "TypeScript", "GraphQL"},
			Salary:      "$150,000 - $180,000",
			PostedDate:  "5 days ago",
		},
		{
			ID:          "2",
			Title:       "Product Manager, AI",
			Company:     "FutureAI",
			Location:    "New York, NY (Remote)",
			Description: "FutureAI is at the forefront of artificial intelligence. We are looking for a Product Manager to lead our AI-powered products. You will define product strategy, work with engineering teams, and drive product launches. Experience with machine learning concepts is a plus.",
			Tags:        []string{"Product Management", "AI/ML", "Remote"},
			Salary:      "$160,000 - $190,000",
			PostedDate:  "2 days ago",
		},
		{
			ID:          "3",
			Title:       "UX/UI Designer",
			Company:     "Creative Minds",
			Location:    "Austin, TX",
			Description: "Join Creative Minds and help design intuitive and engaging user experiences. You will be responsible for the entire design process, from user research to high-fidelity mockups and prototypes. Proficiency in Figma and Adobe Creative Suite is required.",
			Tags:        []string{"UX", "UI", "Figma"},
			Salary:      "$110,000 - $130,000",
			PostedDate:  "1 week ago",
		},
		{
			ID:          "4",
			Title:       "Full Stack Developer",
			Company:     "DataStream",
			Location:    "Chicago, IL",
			Description: "DataStream is hiring a Full Stack Developer to work on our core data processing pipeline. The stack includes Node.js, Python, React, and PostgreSQL. We value clean code and a collaborative spirit.",
			Tags:        []string{"Node.js", "Python", "React"},
			Salary:      "$130,000 - $155,000",
			PostedDate:  "10 days ago",
		},
	}
}

// SampleTrackedJobs はデモ用の応募管理データを返す。
func SampleTrackedJobs() []model.TrackedJob {
	jobs := SampleJobs()
	tracked := []model.TrackedJob{
		{Job: jobs[0], Status: model.StatusInterviewing},
		{Job: jobs[2], Status: model.StatusApplied},
		{Job: jobs[3], Status: model.StatusSaved},
	}
	tracked[1].IsWishlisted = true
	return tracked
}
