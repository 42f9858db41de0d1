package acquisition

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/hitoshi/jobassist/internal/model"
)

// 企業プール。前半がインド企業、後半が海外企業。
var (
	indianCompanies = []string{
		"Tata Consultancy Services", "Infosys", "Wipro", "HCL Technologies", "Tech Mahindra",
		"Cognizant", "Accenture India", "IBM India", "Microsoft India", "Google India",
		"Amazon India", "Flipkart", "Paytm", "Zomato", "Swiggy", "Ola", "Uber India",
		"PhonePe", "BYJU'S", "Unacademy", "Vedantu", "Freshworks", "Zoho", "InMobi",
		"Razorpay", "CRED", "Dream11", "MPL", "Nykaa", "BigBasket",
	}
	internationalCompanies = []string{
		"Google", "Microsoft", "Amazon", "Meta", "Apple", "Netflix", "Tesla", "SpaceX",
		"Spotify", "Uber", "Airbnb", "Stripe", "Shopify", "Atlassian", "Slack", "Zoom",
		"Dropbox", "GitHub", "GitLab", "Docker", "MongoDB", "Snowflake", "Databricks",
	}

	indianLocations = []string{
		"Bangalore", "Mumbai", "Delhi", "Hyderabad", "Chennai", "Pune", "Kolkata",
		"Gurgaon", "Noida", "Ahmedabad", "Kochi", "Jaipur", "Chandigarh", "Coimbatore",
	}
	internationalLocations = []string{
		"San Francisco, CA", "New York, NY", "Seattle, WA", "Austin, TX", "Boston, MA",
		"London, UK", "Berlin, Germany", "Amsterdam, Netherlands", "Toronto, Canada",
		"Sydney, Australia", "Singapore", "Tokyo, Japan", "Dublin, Ireland", "Remote",
	}

	indianSalaries = []string{
		"₹3,00,000 - ₹6,00,000",
		"₹6,00,000 - ₹12,00,000",
		"₹8,00,000 - ₹15,00,000",
		"₹12,00,000 - ₹25,00,000",
		"₹20,00,000 - ₹40,00,000",
		"Competitive",
		"Not specified",
	}
	internationalSalaries = []string{
		"$60,000 - $80,000",
		"$80,000 - $120,000",
		"$100,000 - $150,000",
		"$120,000 - $180,000",
		"$150,000 - $200,000",
		"Competitive",
		"Not specified",
	}
)

var baseTags = []string{"Full-time", "Remote", "Benefits"}

// techTags は検索語に含まれるキーワードごとの追加タグ。先に一致したものを使う。
var techTags = []struct {
	keyword string
	tags    []string
}{
	{"software engineer", []string{"JavaScript", "Python", "React", "Node.js", "AWS"}},
	{"frontend", []string{"React", "Vue.js", "Angular", "TypeScript", "CSS"}},
	{"backend", []string{"Go", "Python", "Java", "PostgreSQL", "Docker"}},
	{"fullstack", []string{"React", "Node.js", "MongoDB", "Express", "TypeScript"}},
	{"data", []string{"Python", "SQL", "Machine Learning", "Pandas", "TensorFlow"}},
	{"devops", []string{"AWS", "Docker", "Kubernetes", "CI/CD", "Terraform"}},
	{"mobile", []string{"React Native", "Flutter", "iOS", "Android", "Swift"}},
	{"intern", []string{"Entry Level", "Training", "Mentorship", "Learning"}},
}

// board は合成求人を生成する掲載元の定義。
// titles と descriptions の %s には検索語が入る。
type board struct {
	name         string
	count        int
	titles       []string
	descriptions []string
	// 企業プールから使う範囲 [from, to)
	indian, international [2]int
	urlFormat             string
}

var boards = []board{
	{
		name:  "indeed",
		count: 6,
		titles: []string{
			"%s Developer", "Senior %s", "Junior %s", "%s Engineer",
			"Full Stack %s", "Lead %s", "%s Specialist", "Principal %s",
		},
		descriptions: []string{
			"We are looking for a talented %s to join our team. You will build high-quality software and work with modern frameworks and cloud platforms.",
			"Join our team as a %s! You'll work on products used by millions of users alongside experienced engineers. Competitive compensation and clear growth paths.",
			"Seeking an experienced %s to help us scale our platform. Our stack includes microservices, containers and cloud infrastructure.",
			"We're hiring a %s to solve hard problems and build scalable systems in a fast-growing team. Remote work options available.",
			"Looking for a passionate %s to join our engineering team, mentor junior developers and help shape our products.",
			"Opportunity for a %s to work with current tools and cross-functional teams on high-impact projects. Flexible hours and a learning budget.",
		},
		indian:        [2]int{0, 15},
		international: [2]int{0, 10},
		urlFormat:     "https://www.indeed.com/viewjob?jk=job%d%d",
	},
	{
		name:  "linkedin",
		count: 5,
		titles: []string{
			"%s Professional", "%s Consultant", "Senior %s Manager",
			"%s Lead", "%s Architect", "%s Specialist",
		},
		descriptions: []string{
			"Opportunity for a %s to join our professional services team and work with enterprise clients. Strong analytical skills required.",
			"We're seeking a %s to drive digital transformation initiatives. Experience with enterprise software and cloud platforms preferred.",
			"Join us as a %s and lead technical initiatives on high-impact projects with global teams. Competitive package offered.",
			"Looking for a %s to lead technical initiatives and mentor team members. Agile experience and strong communication required.",
			"Opportunity for a %s to help shape our technology strategy using current tools and frameworks. Remote work options available.",
		},
		indian:        [2]int{5, 15},
		international: [2]int{5, 15},
		urlFormat:     "https://www.linkedin.com/jobs/view/job%d%d",
	},
	{
		name:  "glassdoor",
		count: 4,
		titles: []string{
			"%s Analyst", "%s Coordinator", "%s Manager", "%s Director", "%s Associate",
		},
		descriptions: []string{
			"Join our team as a %s and help build the future of work with data analytics, user experience design and modern development practices.",
			"We're looking for a %s to improve our platform and user engagement. Data analysis and product experience preferred. Flexible working arrangements.",
			"Opportunity for a %s to work on product development and user research with cross-functional teams. Great benefits package.",
			"Seeking a %s to join our growing team with room for professional growth and access to current tools.",
		},
		indian:        [2]int{10, 20},
		international: [2]int{10, 15},
		urlFormat:     "https://www.glassdoor.com/job-listing/job%d%d",
	},
}

// BoardSource は掲載元1つ分の合成求人を生成する Source。
type BoardSource struct {
	board board
	now   func() time.Time
}

// DefaultSources は Indeed, LinkedIn, Glassdoor の3つの合成掲載元を返す。
func DefaultSources(now func() time.Time) []Source {
	if now == nil {
		now = time.Now
	}
	sources := make([]Source, 0, len(boards))
	for _, b := range boards {
		sources = append(sources, &BoardSource{board: b, now: now})
	}
	return sources
}

// Name は掲載元名を返す。IDの接頭辞にも使う。
func (s *BoardSource) Name() string {
	return s.board.name
}

// Fetch は検索条件に合わせた合成求人を生成する。
func (s *BoardSource) Fetch(ctx context.Context, q Query) ([]model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := s.board
	companies := slices.Concat(
		indianCompanies[b.indian[0]:b.indian[1]],
		internationalCompanies[b.international[0]:b.international[1]],
	)
	ms := s.now().UnixMilli()
	term := strings.TrimSpace(q.Term)
	if term == "" {
		term = "Professional"
	}

	jobs := make([]model.Job, 0, b.count)
	for i := 0; i < b.count; i++ {
		company := pick(companies)
		indian := slices.Contains(indianCompanies, company)
		jobs = append(jobs, model.Job{
			ID:          fmt.Sprintf("%s-%d-%d", b.name, i, ms),
			Title:       fmt.Sprintf(b.titles[i%len(b.titles)], term),
			Company:     company,
			Location:    jobLocation(q.Location, indian),
			Description: fmt.Sprintf(b.descriptions[i%len(b.descriptions)], term),
			Tags:        tagsFor(term),
			Salary:      salary(indian),
			PostedDate:  PostedDate(q.Filter, rand.IntN),
			SourceURL:   fmt.Sprintf(b.urlFormat, i, ms),
		})
	}
	return jobs, nil
}

func pick(values []string) string {
	return values[rand.IntN(len(values))]
}

// jobLocation は希望勤務地があればそれを、無ければ企業の地域に応じた勤務地を返す。
func jobLocation(preferred string, indian bool) string {
	preferred = strings.TrimSpace(preferred)
	if preferred != "" && !strings.EqualFold(preferred, "any") {
		return preferred
	}
	if indian {
		return pick(indianLocations)
	}
	return pick(internationalLocations)
}

func salary(indian bool) string {
	if indian {
		return pick(indianSalaries)
	}
	return pick(internationalSalaries)
}

func tagsFor(term string) []string {
	tags := slices.Clone(baseTags)
	lower := strings.ToLower(term)
	for _, t := range techTags {
		if strings.Contains(lower, t.keyword) {
			return append(tags, t.tags[:3]...)
		}
	}
	return tags
}

// PostedDate は掲載日の絞り込み条件に収まる相対日付を返す。
// intN は [0, n) の乱数を返す関数。
func PostedDate(filter model.TimeFilter, intN func(int) int) string {
	var maxDays int
	switch filter {
	case model.TimeFilterHour:
		return "Posted 1 hour ago"
	case model.TimeFilterDay:
		maxDays = 1
	case model.TimeFilterWeek:
		maxDays = 7
	case model.TimeFilterMonth:
		maxDays = 30
	default:
		maxDays = 14
	}

	days := intN(maxDays) + 1
	switch {
	case days == 1:
		return "1 day ago"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days == 7:
		return "1 week ago"
	default:
		return fmt.Sprintf("%d weeks ago", days/7)
	}
}
