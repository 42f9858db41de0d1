package acquisition

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/jobassist/internal/model"
)

// TestScraper_Scrape_CountsAndPrefixes は掲載元ごとの件数とID接頭辞を検証する。
func TestScraper_Scrape_CountsAndPrefixes(t *testing.T) {
	s := NewScraper(DefaultSources(func() time.Time { return fixedNow }), newTestLogger())

	jobs, err := s.Scrape(context.Background(), Query{Term: "Backend", Filter: model.TimeFilterAny})
	if err != nil {
		t.Fatalf("Scrape がエラーを返した: %v", err)
	}

	counts := map[string]int{}
	seen := map[string]bool{}
	for _, j := range jobs {
		prefix, _, _ := strings.Cut(j.ID, "-")
		counts[prefix]++
		if seen[j.ID] {
			t.Errorf("duplicate id %q", j.ID)
		}
		seen[j.ID] = true
	}
	want := map[string]int{"indeed": 6, "linkedin": 5, "glassdoor": 4}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("%s count = %d, want %d", k, counts[k], v)
		}
	}
}

// TestScraper_Scrape_LocaleSplit は勤務地未指定時に企業の地域と勤務地・給与の通貨が一致することを検証する。
func TestScraper_Scrape_LocaleSplit(t *testing.T) {
	s := NewScraper(DefaultSources(nil), newTestLogger())

	jobs, err := s.Scrape(context.Background(), Query{Term: "Data", Location: "any"})
	if err != nil {
		t.Fatalf("Scrape がエラーを返した: %v", err)
	}
	for _, j := range jobs {
		if slices.Contains(indianCompanies, j.Company) {
			if !slices.Contains(indianLocations, j.Location) || !slices.Contains(indianSalaries, j.Salary) {
				t.Errorf("indian company job = %+v", j)
			}
			continue
		}
		if !slices.Contains(internationalLocations, j.Location) || !slices.Contains(internationalSalaries, j.Salary) {
			t.Errorf("international company job = %+v", j)
		}
	}
}

// TestScraper_Scrape_PreferredLocation は希望勤務地がそのまま使われることを検証する。
func TestScraper_Scrape_PreferredLocation(t *testing.T) {
	s := NewScraper(DefaultSources(nil), newTestLogger())

	jobs, _ := s.Scrape(context.Background(), Query{Term: "devops engineer", Location: "Osaka"})
	for _, j := range jobs {
		if j.Location != "Osaka" {
			t.Errorf("Location = %q, want Osaka", j.Location)
		}
		if !slices.Contains(j.Tags, "Kubernetes") {
			t.Errorf("Tags = %v, want devops tags", j.Tags)
		}
	}
}

// TestScraper_Scrape_PartialFailure は一部の掲載元の失敗を0件として扱うことを検証する。
func TestScraper_Scrape_PartialFailure(t *testing.T) {
	s := NewScraper([]Source{
		&mockSource{name: "ok", jobs: []model.Job{{ID: "ok-1"}, {ID: "ok-2"}}},
		&mockSource{name: "broken", err: errors.New("timeout")},
	}, newTestLogger())

	jobs, err := s.Scrape(context.Background(), Query{Term: "x"})
	if err != nil {
		t.Fatalf("Scrape がエラーを返した: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("len = %d, want 2", len(jobs))
	}
}

// TestScraper_Scrape_AllFailed は全掲載元の失敗でエラーを返すことを検証する。
func TestScraper_Scrape_AllFailed(t *testing.T) {
	s := NewScraper([]Source{&mockSource{name: "a", err: errors.New("x")}}, newTestLogger())

	if _, err := s.Scrape(context.Background(), Query{Term: "x"}); !errors.Is(err, errAllSourcesFailed) {
		t.Errorf("err = %v, want errAllSourcesFailed", err)
	}
}

// TestScraper_Scrape_Canceled はキャンセル済みのコンテキストでエラーを返すことを検証する。
func TestScraper_Scrape_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScraper(DefaultSources(nil), newTestLogger())

	if _, err := s.Scrape(ctx, Query{Term: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// TestPostedDate は絞り込み条件ごとの相対日付を検証する。
func TestPostedDate(t *testing.T) {
	fixed := func(v int) func(int) int {
		return func(n int) int {
			if v >= n {
				return n - 1
			}
			return v
		}
	}

	tests := []struct {
		name   string
		filter model.TimeFilter
		rnd    int
		want   string
	}{
		{"1時間以内", model.TimeFilterHour, 5, "Posted 1 hour ago"},
		{"24時間以内", model.TimeFilterDay, 5, "1 day ago"},
		{"1週間以内の3日前", model.TimeFilterWeek, 2, "3 days ago"},
		{"1週間以内の7日前", model.TimeFilterWeek, 6, "1 week ago"},
		{"1ヶ月以内の30日前", model.TimeFilterMonth, 29, "4 weeks ago"},
		{"指定なしは最大2週間", model.TimeFilterAny, 100, "2 weeks ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PostedDate(tt.filter, fixed(tt.rnd)); got != tt.want {
				t.Errorf("PostedDate = %q, want %q", got, tt.want)
			}
		})
	}
}
