// Package store はユーザーごとのエンティティストアを提供する。
//
// プロフィール・求人カタログ・応募管理・ウィッシュリスト・ライブ検索結果を
// 1ユーザー分まとめて保持し、同じ求人が複数のコレクションに現れた場合の
// ID解決を一元的に行う。変更系の操作は必ず1件のトーストで結果を通知する。
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/notify"
	"github.com/hitoshi/jobassist/internal/repository"
)

// トースト文言
const (
	msgJobTracked         = "Job saved to tracker!"
	msgJobAlreadyTracked  = "This job is already in your tracker."
	msgStatusUpdated      = "Status updated to %s."
	msgTrackedJobSaved    = "Application details saved."
	msgWishlistAdded      = "Added to wishlist"
	msgWishlistRemoved    = "Removed from wishlist"
	msgWishlistBulkAdded  = "Added %d jobs to wishlist!"
	msgWishlistAllPresent = "All jobs are already in your wishlist."
	msgSearchEmptyInput   = "Please enter a search term or location."
	msgSearchUnexpected   = "An unexpected error occurred."
	msgSearchFound        = "Found %d jobs."
	msgSearchDemo         = "Showing demo jobs. Live sources are unavailable."
	msgSearchCleared      = "Search cleared."
	msgProfileSaved       = "Profile saved."
	msgDataReset          = "All data has been reset."
	msgSaveFailed         = "Could not save your changes. Please try again."
	msgTrackedNotFound    = "This job is not in your tracker."
	msgNothingToSave      = "There is nothing to save."
	msgInvalidStatus      = "Unknown application status: %s"
)

var errNoBulkWriter = errors.New("persistence has no user data repository")

// Origin はGetJobByIDで見つかったコレクションを表す。
type Origin string

const (
	OriginNone     Origin = ""
	OriginTracked  Origin = "tracked"
	OriginLive     Origin = "live"
	OriginWishlist Origin = "wishlist"
	OriginCatalog  Origin = "catalog"
	OriginSupplied Origin = "supplied"
)

// JobSearcher はライブ検索で使う取得チェーンのインターフェース。
type JobSearcher interface {
	// Search は検索語と勤務地から求人を取得し、結果を返した段階とともに返す。
	Search(ctx context.Context, term, location string, filter model.TimeFilter) ([]model.Job, model.SearchStage, error)
}

// Persistence はストアの書き込み先となる永続化層。
// nil の場合はメモリ上のみで動作する（デモモード）。
// Data は Reset と初回サインインの一括書き込みに使い、Reset では必須。
type Persistence struct {
	Profiles repository.ProfileRepository
	Tracked  repository.TrackedJobRepository
	Wishlist repository.WishlistRepository
	Data     repository.UserDataRepository
}

// Store は1ユーザー分のエンティティストア。
//
// 読み取りは mu の読み取りロックで行う。変更系は wmu で直列化し、
// 永続化に成功してから mu を取ってメモリを書き換えるため、
// 永続化に失敗した場合は状態が一切変わらない。
// 取得チェーンの呼び出し中はどちらのロックも保持しない。
type Store struct {
	userID string

	mu        sync.RWMutex
	profile   model.UserProfile
	catalog   []model.Job
	tracked   []model.TrackedJob
	wishlist  []model.Job
	wishIdx   map[string]struct{}
	search    model.LiveSearchState
	searchSeq uint64

	wmu sync.Mutex

	seed     Seed
	toasts   *notify.Channel
	searcher JobSearcher
	persist  *Persistence
	logger   *slog.Logger
}

// New はシード値で初期化したStoreを生成する。
// persist が nil の場合は永続化を行わない。
func New(userID string, seed Seed, searcher JobSearcher, persist *Persistence, toasts *notify.Channel, logger *slog.Logger) *Store {
	if toasts == nil {
		toasts = notify.NewChannel()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		userID:   userID,
		seed:     seed.clone(),
		toasts:   toasts,
		searcher: searcher,
		persist:  persist,
		logger:   logger,
	}
	s.applySeed(seed)
	return s
}

// applySeed はシード値でメモリ上の全コレクションを置き換える。呼び出し側でロック不要。
func (s *Store) applySeed(seed Seed) {
	c := seed.clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = c.Profile
	s.catalog = c.Catalog
	s.tracked = c.Tracked
	s.wishlist = make([]model.Job, 0, len(c.Wishlist))
	s.wishIdx = make(map[string]struct{}, len(c.Wishlist))
	for _, j := range c.Wishlist {
		j.IsWishlisted = true
		s.wishlist = append(s.wishlist, j)
		s.wishIdx[j.ID] = struct{}{}
	}
	s.searchSeq++
	s.search = model.LiveSearchState{Status: model.SearchIdle}
}

// UserID はストアの所有ユーザーIDを返す。
func (s *Store) UserID() string {
	return s.userID
}

// Toasts はこのストアのトーストキューを返す。
func (s *Store) Toasts() *notify.Channel {
	return s.toasts
}

// --- 読み取り ---

// GetJobByID は全コレクションから求人を検索する。
// 優先順位は 応募管理 → ライブ検索結果 → ウィッシュリスト → カタログ。
// 見つからない場合は nil と OriginNone を返す。
func (s *Store) GetJobByID(id string) (*model.Job, Origin) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.tracked {
		if s.tracked[i].ID == id {
			j := s.tracked[i].Job.Clone()
			_, j.IsWishlisted = s.wishIdx[id]
			return &j, OriginTracked
		}
	}
	for i := range s.search.Results {
		if s.search.Results[i].ID == id {
			j := s.search.Results[i].Clone()
			return &j, OriginLive
		}
	}
	for i := range s.wishlist {
		if s.wishlist[i].ID == id {
			j := s.wishlist[i].Clone()
			return &j, OriginWishlist
		}
	}
	for i := range s.catalog {
		if s.catalog[i].ID == id {
			j := s.catalog[i].Clone()
			_, j.IsWishlisted = s.wishIdx[id]
			return &j, OriginCatalog
		}
	}
	return nil, OriginNone
}

// ResolveJob はストア内の求人を優先し、無ければ画面遷移などで直接渡された求人を返す。
// 両方とも無い場合は nil を返す。
func (s *Store) ResolveJob(id string, supplied *model.Job) (*model.Job, Origin) {
	if j, origin := s.GetJobByID(id); j != nil {
		return j, origin
	}
	if supplied != nil && supplied.ID == id {
		j := supplied.Clone()
		return &j, OriginSupplied
	}
	return nil, OriginNone
}

// TrackedJob は応募管理中の求人を返す。見つからない場合は nil。
func (s *Store) TrackedJob(id string) *model.TrackedJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.trackedIndex(id); i >= 0 {
		t := s.tracked[i].Clone()
		return &t
	}
	return nil
}

// Profile はプロフィールのコピーを返す。
func (s *Store) Profile() model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Catalog はカタログ求人のコピーを返す。
func (s *Store) Catalog() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Job, len(s.catalog))
	for i, j := range s.catalog {
		out[i] = j.Clone()
		_, out[i].IsWishlisted = s.wishIdx[j.ID]
	}
	return out
}

// Tracked は応募管理中の求人を新しい順で返す。
func (s *Store) Tracked() []model.TrackedJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TrackedJob, len(s.tracked))
	for i, t := range s.tracked {
		out[i] = t.Clone()
	}
	return out
}

// Wishlist はウィッシュリストのコピーを返す。
func (s *Store) Wishlist() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Job, len(s.wishlist))
	for i, j := range s.wishlist {
		out[i] = j.Clone()
	}
	return out
}

// IsWishlisted はウィッシュリストに含まれるかを返す。
func (s *Store) IsWishlisted(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.wishIdx[id]
	return ok
}

// LiveSearch はライブ検索状態のスナップショットを返す。
func (s *Store) LiveSearch() model.LiveSearchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSearch(s.search)
}

// --- 応募管理 ---

// TrackJob は求人を応募管理に追加する。
// 既に追加済みの場合は何も変更せず、info トーストを出して false を返す。
// 新規の場合はステータス Saved で先頭に追加する。
func (s *Store) TrackJob(ctx context.Context, job model.Job) (*model.TrackedJob, bool, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if existing := s.TrackedJob(job.ID); existing != nil {
		s.toasts.Show(msgJobAlreadyTracked, model.ToastInfo)
		return existing, false, nil
	}

	t := model.TrackedJob{
		Job:    job.Clone(),
		Status: model.StatusSaved,
		Notes:  "",
	}
	t.IsWishlisted = false

	if s.persist != nil && s.persist.Tracked != nil {
		if err := s.persist.Tracked.Create(ctx, s.userID, &t); err != nil {
			return nil, false, s.failWrite("応募管理への追加に失敗しました", err)
		}
	}

	s.mu.Lock()
	s.tracked = append([]model.TrackedJob{t}, s.tracked...)
	s.mu.Unlock()

	s.toasts.Show(msgJobTracked, model.ToastSuccess)
	out := t.Clone()
	return &out, true, nil
}

// UpdateJobStatus は応募ステータスを上書きする。遷移の制約は設けない。
// 未知のステータスや未登録の求人の場合は状態を変えずにエラーを返す。
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status model.ApplicationStatus) (*model.TrackedJob, error) {
	if _, ok := model.ParseApplicationStatus(string(status)); !ok {
		msg := fmt.Sprintf(msgInvalidStatus, status)
		s.toasts.Show(msg, model.ToastError)
		return nil, model.NewAppError(model.KindValidation, msg, nil)
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	current := s.TrackedJob(id)
	if current == nil {
		s.toasts.Show(msgTrackedNotFound, model.ToastError)
		return nil, model.NewAppError(model.KindNotFound, msgTrackedNotFound, nil)
	}

	updated := *current
	updated.Status = status

	if s.persist != nil && s.persist.Tracked != nil {
		if err := s.persist.Tracked.Update(ctx, s.userID, &updated); err != nil {
			return nil, s.failWrite("応募ステータスの更新に失敗しました", err)
		}
	}

	s.replaceTracked(updated)
	s.toasts.Show(fmt.Sprintf(msgStatusUpdated, status), model.ToastSuccess)
	return &updated, nil
}

// SaveTrackedJobData はメモ・生成文書・分析結果などを浅くマージする。
// パッチで指定されていないフィールドとID・ステータスは変更しない。
func (s *Store) SaveTrackedJobData(ctx context.Context, id string, patch model.TrackedJobPatch) (*model.TrackedJob, error) {
	if patch.IsEmpty() {
		s.toasts.Show(msgNothingToSave, model.ToastInfo)
		return nil, model.NewAppError(model.KindValidation, msgNothingToSave, nil)
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	current := s.TrackedJob(id)
	if current == nil {
		s.toasts.Show(msgTrackedNotFound, model.ToastError)
		return nil, model.NewAppError(model.KindNotFound, msgTrackedNotFound, nil)
	}

	updated := patch.Apply(*current)

	if s.persist != nil && s.persist.Tracked != nil {
		if err := s.persist.Tracked.Update(ctx, s.userID, &updated); err != nil {
			return nil, s.failWrite("応募データの保存に失敗しました", err)
		}
	}

	s.replaceTracked(updated)
	s.toasts.Show(msgTrackedJobSaved, model.ToastSuccess)
	out := updated.Clone()
	return &out, nil
}

// --- ウィッシュリスト ---

// ToggleWishlist はウィッシュリストへの登録状態を反転し、反転後の状態を返す。
// ウィッシュリストとライブ検索結果内のコピーは同じロック区間で更新する。
func (s *Store) ToggleWishlist(ctx context.Context, job model.Job) (bool, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	wasListed := s.IsWishlisted(job.ID)

	if s.persist != nil && s.persist.Wishlist != nil {
		var err error
		if wasListed {
			err = s.persist.Wishlist.Remove(ctx, s.userID, job.ID)
		} else {
			entry := job.Clone()
			entry.IsWishlisted = true
			err = s.persist.Wishlist.AddMany(ctx, s.userID, []model.Job{entry})
		}
		if err != nil {
			return wasListed, s.failWrite("ウィッシュリストの更新に失敗しました", err)
		}
	}

	s.mu.Lock()
	if wasListed {
		delete(s.wishIdx, job.ID)
		kept := s.wishlist[:0]
		for _, j := range s.wishlist {
			if j.ID != job.ID {
				kept = append(kept, j)
			}
		}
		s.wishlist = kept
	} else {
		entry := job.Clone()
		entry.IsWishlisted = true
		s.wishlist = append(s.wishlist, entry)
		s.wishIdx[job.ID] = struct{}{}
	}
	s.syncLiveFlagsLocked()
	s.mu.Unlock()

	if wasListed {
		s.toasts.Show(msgWishlistRemoved, model.ToastInfo)
	} else {
		s.toasts.Show(msgWishlistAdded, model.ToastSuccess)
	}
	return !wasListed, nil
}

// AddAllToWishlist は未登録の求人だけをまとめてウィッシュリストに追加し、追加件数を返す。
// 0件の場合も info トーストで通知する。
func (s *Store) AddAllToWishlist(ctx context.Context, jobs []model.Job) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.RLock()
	seen := make(map[string]struct{}, len(jobs))
	toAdd := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if _, listed := s.wishIdx[j.ID]; listed {
			continue
		}
		if _, dup := seen[j.ID]; dup {
			continue
		}
		seen[j.ID] = struct{}{}
		entry := j.Clone()
		entry.IsWishlisted = true
		toAdd = append(toAdd, entry)
	}
	s.mu.RUnlock()

	if len(toAdd) == 0 {
		s.toasts.Show(msgWishlistAllPresent, model.ToastInfo)
		return 0, nil
	}

	if s.persist != nil && s.persist.Wishlist != nil {
		if err := s.persist.Wishlist.AddMany(ctx, s.userID, toAdd); err != nil {
			return 0, s.failWrite("ウィッシュリストへの一括追加に失敗しました", err)
		}
	}

	s.mu.Lock()
	for _, j := range toAdd {
		s.wishlist = append(s.wishlist, j)
		s.wishIdx[j.ID] = struct{}{}
	}
	s.syncLiveFlagsLocked()
	s.mu.Unlock()

	s.toasts.Show(fmt.Sprintf(msgWishlistBulkAdded, len(toAdd)), model.ToastSuccess)
	return len(toAdd), nil
}

// --- ライブ検索 ---

// PerformLiveSearch は取得チェーンで求人を検索し、結果をライブ検索スロットに格納する。
//
// 検索語と勤務地がともに空の場合は検索を行わずエラー状態にする。
// エラーは返さず、常に確定した状態とトーストで結果を表す。
// 実行中に新しい検索やクリアが行われた場合、古い検索の結果は破棄する。
func (s *Store) PerformLiveSearch(ctx context.Context, term, location string, filter model.TimeFilter) model.LiveSearchState {
	term = strings.TrimSpace(term)
	location = strings.TrimSpace(location)

	if term == "" && location == "" {
		s.mu.Lock()
		s.searchSeq++
		s.search = model.LiveSearchState{
			Status: model.SearchError,
			Error:  msgSearchEmptyInput,
		}
		snapshot := cloneSearch(s.search)
		s.mu.Unlock()
		s.toasts.Show(msgSearchEmptyInput, model.ToastError)
		return snapshot
	}

	s.mu.Lock()
	s.searchSeq++
	seq := s.searchSeq
	s.search = model.LiveSearchState{
		Status:   model.SearchInFlight,
		Term:     term,
		Location: location,
	}
	s.mu.Unlock()

	jobs, stage, err := s.runSearch(ctx, term, location, filter)

	s.mu.Lock()
	if seq != s.searchSeq {
		snapshot := cloneSearch(s.search)
		s.mu.Unlock()
		s.logger.Info("古い検索結果を破棄しました",
			slog.String("user_id", s.userID),
			slog.String("term", term),
		)
		return snapshot
	}

	if err != nil || len(jobs) == 0 {
		msg := msgSearchUnexpected
		if model.KindOf(err) == model.KindValidation {
			msg = model.UserMessage(err, msgSearchUnexpected)
		}
		s.search = model.LiveSearchState{
			Status:   model.SearchError,
			Term:     term,
			Location: location,
			Error:    msg,
		}
		snapshot := cloneSearch(s.search)
		s.mu.Unlock()
		s.logger.Error("ライブ検索に失敗しました",
			slog.String("user_id", s.userID),
			slog.Any("error", err),
		)
		s.toasts.Show(msg, model.ToastError)
		return snapshot
	}

	results := make([]model.Job, len(jobs))
	for i, j := range jobs {
		results[i] = j.Clone()
	}
	s.search = model.LiveSearchState{
		Status:   model.SearchIdle,
		Term:     term,
		Location: location,
		Results:  results,
		Stage:    stage,
	}
	s.syncLiveFlagsLocked()
	snapshot := cloneSearch(s.search)
	s.mu.Unlock()

	if stage == model.StageDemo {
		s.toasts.Show(msgSearchDemo, model.ToastInfo)
	} else {
		s.toasts.Show(fmt.Sprintf(msgSearchFound, len(results)), model.ToastSuccess)
	}
	return snapshot
}

// runSearch は取得チェーンを呼び出す。パニックはエラーに変換する。
func (s *Store) runSearch(ctx context.Context, term, location string, filter model.TimeFilter) (jobs []model.Job, stage model.SearchStage, err error) {
	if s.searcher == nil {
		return nil, "", fmt.Errorf("job searcher is not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job search panicked: %v", r)
		}
	}()
	return s.searcher.Search(ctx, term, location, filter)
}

// ClearLiveSearch はライブ検索の結果とエラーをリセットする。他のコレクションには触れない。
// 実行中の検索があればその結果は破棄される。
func (s *Store) ClearLiveSearch() {
	s.mu.Lock()
	s.searchSeq++
	s.search = model.LiveSearchState{Status: model.SearchIdle}
	s.mu.Unlock()
	s.toasts.Show(msgSearchCleared, model.ToastInfo)
}

// --- プロフィール ---

// UpdateProfile はプロフィールを丸ごと上書きする。
func (s *Store) UpdateProfile(ctx context.Context, profile model.UserProfile) (model.UserProfile, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.persist != nil && s.persist.Profiles != nil {
		if err := s.persist.Profiles.Upsert(ctx, s.userID, &profile); err != nil {
			return s.Profile(), s.failWrite("プロフィールの保存に失敗しました", err)
		}
	}

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	s.toasts.Show(msgProfileSaved, model.ToastSuccess)
	return profile, nil
}

// Reset は全コレクションを初期状態に戻す。永続化層がある場合はそちらも1トランザクションで初期化し、
// 失敗した場合はメモリも永続化層も変更しない。
func (s *Store) Reset(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.persist != nil {
		if s.persist.Data == nil {
			return s.failWrite("データの初期化に失敗しました", errNoBulkWriter)
		}
		if err := s.persist.Data.Replace(ctx, s.userID, s.seed.userData()); err != nil {
			return s.failWrite("データの初期化に失敗しました", err)
		}
	}

	s.applySeed(s.seed)
	s.toasts.Show(msgDataReset, model.ToastSuccess)
	return nil
}

// Close はトーストキューを停止する。
func (s *Store) Close() {
	s.toasts.Close()
}

// --- 内部ヘルパー ---

// failWrite は永続化失敗をログに残し、エラートーストを1件出してエラーを返す。
func (s *Store) failWrite(logMsg string, err error) error {
	s.logger.Error(logMsg,
		slog.String("user_id", s.userID),
		slog.String("error", err.Error()),
	)
	s.toasts.Show(msgSaveFailed, model.ToastError)
	return model.NewAppError(model.KindUnavailable, msgSaveFailed, err)
}

// trackedIndex は応募管理内の位置を返す。呼び出し側でロックを保持すること。
func (s *Store) trackedIndex(id string) int {
	for i := range s.tracked {
		if s.tracked[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) replaceTracked(t model.TrackedJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.trackedIndex(t.ID); i >= 0 {
		s.tracked[i] = t.Clone()
	}
}

// syncLiveFlagsLocked はライブ検索結果の isWishlisted をウィッシュリストに合わせる。
// mu の書き込みロックを保持した状態で呼ぶこと。
func (s *Store) syncLiveFlagsLocked() {
	for i := range s.search.Results {
		_, s.search.Results[i].IsWishlisted = s.wishIdx[s.search.Results[i].ID]
	}
}

func cloneSearch(st model.LiveSearchState) model.LiveSearchState {
	out := st
	if st.Results != nil {
		out.Results = make([]model.Job, len(st.Results))
		for i, j := range st.Results {
			out.Results[i] = j.Clone()
		}
	}
	return out
}
