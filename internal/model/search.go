package model

// TimeFilter は掲載日の絞り込み条件。
type TimeFilter string

const (
	TimeFilterHour  TimeFilter = "1h"
	TimeFilterDay   TimeFilter = "24h"
	TimeFilterWeek  TimeFilter = "7d"
	TimeFilterMonth TimeFilter = "30d"
	TimeFilterAny   TimeFilter = "any"
)

// ParseTimeFilter は文字列を TimeFilter に変換する。未知の値は any とみなす。
func ParseTimeFilter(s string) TimeFilter {
	switch TimeFilter(s) {
	case TimeFilterHour, TimeFilterDay, TimeFilterWeek, TimeFilterMonth:
		return TimeFilter(s)
	default:
		return TimeFilterAny
	}
}

// SearchStage は求人検索で結果を返した取得段階。
type SearchStage string

const (
	StageScraper SearchStage = "scraper"
	StageAI      SearchStage = "ai"
	StageDemo    SearchStage = "demo"
)

// SearchStatus はライブ検索の状態。
type SearchStatus string

const (
	SearchIdle     SearchStatus = "idle"
	SearchInFlight SearchStatus = "in_flight"
	SearchError    SearchStatus = "error"
)

// LiveSearchState はライブ検索のスナップショット。
type LiveSearchState struct {
	Status   SearchStatus `json:"status"`
	Term     string       `json:"term"`
	Location string       `json:"location"`
	Results  []Job        `json:"results"`
	Error    string       `json:"error,omitempty"`
	Stage    SearchStage  `json:"stage,omitempty"`
}
