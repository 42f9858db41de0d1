// Package user はアカウント単位の操作（退会とデータの持ち出し）を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/repository"
	"github.com/hitoshi/jobassist/internal/store"
)

// UserDataDeleter はユーザー単位のデータ一括削除インターフェース。
// 応募管理やウィッシュリストのリポジトリが満たす。
type UserDataDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Stores はユーザーごとのストアへのアクセス。store.Registry が満たす。
type Stores interface {
	Get(ctx context.Context, userID string) (*store.Store, error)
	Close(userID string)
}

// Service はアカウント操作のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	stores      Stores
	deleters    []UserDataDeleter
	now         func() time.Time
}

// NewService はServiceを生成する。deletersは退会時にユーザー削除より前に順に実行される。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	stores Stores,
	deleters ...UserDataDeleter,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		stores:      stores,
		deleters:    deleters,
		now:         time.Now,
	}
}

// Withdraw は退会処理を行う。
//
// 削除順は 応募管理・ウィッシュリスト → sessions → user（CASCADE: identities, profiles）。
// 共有の求人カタログは残し、最後にメモリ上のストアを破棄する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if _, err := s.findUser(ctx, userID); err != nil {
		return err
	}

	log := slog.With(slog.String("user_id", userID))
	log.Info("退会処理を開始します")

	for _, d := range s.deleters {
		if d == nil {
			continue
		}
		if err := d.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("ユーザーデータの削除に失敗しました: %w", err)
		}
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		// 同時に退会リクエストが走った場合
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if s.stores != nil {
		s.stores.Close(userID)
	}

	log.Info("退会処理が完了しました")
	return nil
}

// Export はユーザーのアカウント情報とストア上のデータをまとめて返す。
func (s *Service) Export(ctx context.Context, userID string) (*model.AccountExport, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &model.AccountExport{
		ExportedAt: s.now().UTC(),
		User:       *u,
		Tracked:    []model.TrackedJob{},
		Wishlist:   []model.Job{},
	}
	if s.stores == nil {
		return out, nil
	}

	st, err := s.stores.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ストアの取得に失敗しました: %w", err)
	}
	out.Profile = st.Profile()
	if tracked := st.Tracked(); tracked != nil {
		out.Tracked = tracked
	}
	if wishlist := st.Wishlist(); wishlist != nil {
		out.Wishlist = wishlist
	}

	slog.Info("アカウントデータを書き出しました",
		slog.String("user_id", userID),
		slog.Int("tracked", len(out.Tracked)),
		slog.Int("wishlist", len(out.Wishlist)),
	)
	return out, nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}
