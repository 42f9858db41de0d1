// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, job, generation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeJobNotFound      = "JOB_NOT_FOUND"
	ErrCodeInvalidStatus    = "INVALID_STATUS"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeValidation       = "VALIDATION_FAILED"
	ErrCodeGenerationBlock  = "GENERATION_BLOCKED"
	ErrCodeGenerationEmpty  = "GENERATION_EMPTY"
	ErrCodeGenerationParse  = "GENERATION_PARSE_FAILED"
	ErrCodeGenerationFailed = "GENERATION_UNAVAILABLE"
)

// ErrorKind はドメインエラーの種別を表す閉じた列挙型。
// 呼び出し側はメッセージ文字列ではなく種別で分岐する。
type ErrorKind string

const (
	// KindValidation は入力不足などで処理を続行できないことを表す。
	KindValidation ErrorKind = "validation"
	// KindBlocked は生成プロバイダがリクエストを拒否したことを表す。
	KindBlocked ErrorKind = "blocked"
	// KindEmpty は生成プロバイダが空の応答を返したことを表す。
	KindEmpty ErrorKind = "empty"
	// KindParse は応答を期待する構造に解釈できなかったことを表す。
	KindParse ErrorKind = "parse"
	// KindNotFound は対象エンティティが存在しないことを表す。
	KindNotFound ErrorKind = "not_found"
	// KindUnavailable はプロバイダへの到達自体に失敗したことを表す（通信・認証エラー）。
	KindUnavailable ErrorKind = "unavailable"
)

// AppError は種別付きのドメインエラー。
// Message はユーザーにそのまま表示できる文言で、Err は診断用の内部原因。
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap は内部原因を返す。
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError はAppErrorを生成する。
func NewAppError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf はエラーチェーンからErrorKindを取り出す。
// AppErrorを含まない場合は空文字を返す。
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// UserMessage はエラーからユーザー向けメッセージを取り出す。
// AppErrorを含まない場合はfallbackを返す。
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "job",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewJobNotFoundError は求人が見つからない場合のエラーを生成する。
func NewJobNotFoundError(jobID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("指定された求人が見つかりません: %s", jobID),
		Category: "job",
		Action:   "求人IDを確認してください。",
	}
}

// NewInvalidStatusError は無効な応募ステータスのエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには Saved、Applied、Interviewing、Offer、Rejected のいずれかを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// ToAPIError はAppErrorを統一エラーフォーマットに変換する。
// メッセージはAppErrorのユーザー向け文言をそのまま使う。
func ToAPIError(appErr *AppError) *APIError {
	switch appErr.Kind {
	case KindValidation:
		return &APIError{
			Code:     ErrCodeValidation,
			Message:  appErr.Message,
			Category: "validation",
			Action:   "入力内容を確認してください。",
		}
	case KindNotFound:
		return &APIError{
			Code:     ErrCodeJobNotFound,
			Message:  appErr.Message,
			Category: "job",
			Action:   "IDを確認してください。",
		}
	case KindBlocked:
		return &APIError{
			Code:     ErrCodeGenerationBlock,
			Message:  appErr.Message,
			Category: "generation",
			Action:   "入力内容を見直してから再度お試しください。",
		}
	case KindEmpty:
		return &APIError{
			Code:     ErrCodeGenerationEmpty,
			Message:  appErr.Message,
			Category: "generation",
			Action:   "しばらく待ってから再度お試しください。",
		}
	case KindParse:
		return &APIError{
			Code:     ErrCodeGenerationParse,
			Message:  appErr.Message,
			Category: "generation",
			Action:   "しばらく待ってから再度お試しください。",
		}
	default:
		return &APIError{
			Code:     ErrCodeGenerationFailed,
			Message:  appErr.Message,
			Category: "generation",
			Action:   "APIキーの設定を確認し、しばらく待ってから再度お試しください。",
		}
	}
}
