package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders  = "Content-Type, X-CSRF-Token, X-Request-ID"
	corsExposeHeaders = "Content-Disposition, X-Request-ID"
)

// NewCORSMiddleware はフロントエンドのオリジンに対するCORSミドルウェアを返す。
//
// allowedOrigins はカンマ区切りで複数指定できる。リクエストのOriginが一覧にあればそれを返し、
// Originが無い場合は先頭のオリジンを返す。credentials送信と共存するため、ワイルドカード(*)は使用しない。
// 書き出し（xlsx・PDF）のファイル名を読めるよう Content-Disposition を公開する。
// OPTIONSプリフライトには204で応答する。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin, ok := matchOrigin(origins, r.Header.Get("Origin")); ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchOrigin は許可するオリジンを選ぶ。一覧外のOriginには何も返さない。
func matchOrigin(origins []string, origin string) (string, bool) {
	if len(origins) == 0 {
		return "", false
	}
	if origin == "" {
		return origins[0], true
	}
	for _, o := range origins {
		if o == origin {
			return o, true
		}
	}
	return "", false
}
