package model

// ToastType はトースト通知の重要度。
type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastInfo    ToastType = "info"
)

// Toast は短時間で自動消滅するユーザー通知を表す。
// IDは時刻由来の単調増加値（ミリ秒）。
type Toast struct {
	ID      int64     `json:"id"`
	Message string    `json:"message"`
	Type    ToastType `json:"type"`
}
