package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/repository"
)

// SourcesFile はカタログの取り込み元を定義するYAMLファイルの形式。
//
//	feeds:
//	  - url: https://example.com/jobs.rss
//	    title: Example Jobs
//	    company: Example Inc.
//	    location: Remote
//	    tags: [Go, Backend]
type SourcesFile struct {
	Feeds []SourceEntry `yaml:"feeds"`
}

// SourceEntry は取り込み元フィード1件の設定。
// company, location, tags は項目に値が無い場合の既定値になる。
type SourceEntry struct {
	URL      string   `yaml:"url"`
	Title    string   `yaml:"title"`
	Company  string   `yaml:"company"`
	Location string   `yaml:"location"`
	Tags     []string `yaml:"tags"`
}

// URLValidator は取り込み元URLの検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// LoadSources はYAMLファイルから取り込み元を読み込む。
// URLが重複する場合は後の定義を無視する。
func LoadSources(path string, validator URLValidator) ([]*model.CatalogFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("取り込み元ファイルの読み込みに失敗しました: %w", err)
	}
	return ParseSources(data, validator)
}

// ParseSources はYAMLの内容から取り込み元を生成する。
func ParseSources(data []byte, validator URLValidator) ([]*model.CatalogFeed, error) {
	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("取り込み元ファイルのパースに失敗しました: %w", err)
	}

	seen := make(map[string]bool, len(file.Feeds))
	feeds := make([]*model.CatalogFeed, 0, len(file.Feeds))
	for i, e := range file.Feeds {
		u := strings.TrimSpace(e.URL)
		if u == "" {
			return nil, fmt.Errorf("取り込み元 %d 件目にurlがありません", i+1)
		}
		if validator != nil {
			if err := validator.ValidateURL(u); err != nil {
				return nil, fmt.Errorf("取り込み元 %s は使用できません: %w", u, err)
			}
		}
		if seen[u] {
			continue
		}
		seen[u] = true

		title := strings.TrimSpace(e.Title)
		if title == "" {
			title = u
		}
		feeds = append(feeds, &model.CatalogFeed{
			FeedURL:     u,
			Title:       title,
			Company:     strings.TrimSpace(e.Company),
			Location:    strings.TrimSpace(e.Location),
			Tags:        e.Tags,
			FetchStatus: model.FetchStatusActive,
		})
	}
	return feeds, nil
}

// RegisterSources は取り込み元をリポジトリに登録する。既存フィードのフェッチ状態は変更しない。
func RegisterSources(ctx context.Context, repo repository.CatalogFeedRepository, feeds []*model.CatalogFeed, logger *slog.Logger) error {
	for _, feed := range feeds {
		if feed.ID == "" {
			feed.ID = uuid.NewString()
		}
		if err := repo.UpsertByURL(ctx, feed); err != nil {
			return err
		}
	}
	logger.Info("求人カタログの取り込み元を登録しました", slog.Int("feed_count", len(feeds)))
	return nil
}
