package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const webAppUserKey ctxKey = iota

// WebAppUser идентичность пользователя из initData мини-аппа.
type WebAppUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// WebAppAuthMiddleware проверяет initData по токену бота и кладёт
// идентичность пользователя в контекст запроса.
func WebAppAuthMiddleware(botToken string) func(http.Handler) http.Handler {
	secret := webAppSecret(botToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			initData := r.URL.Query().Get("init_data")
			if initData == "" {
				initData = r.Header.Get("X-Init-Data")
			}
			if initData == "" {
				http.Error(w, "init_data отсутствует", http.StatusUnauthorized)
				return
			}
			if !validateInitData(initData, secret) {
				http.Error(w, "подпись недействительна", http.StatusUnauthorized)
				return
			}
			user, ok := parseWebAppUser(initData)
			if !ok {
				http.Error(w, "пользователь не определён", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), webAppUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext возвращает идентичность, положенную middleware.
func UserFromContext(ctx context.Context) (WebAppUser, bool) {
	user, ok := ctx.Value(webAppUserKey).(WebAppUser)
	return user, ok
}

// webAppSecret выводит ключ подписи initData из токена бота по схеме
// Telegram WebApp.
func webAppSecret(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

func validateInitData(initData string, secret []byte) bool {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return false
	}
	received := values.Get("hash")
	if received == "" {
		return false
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(strings.Join(pairs, "\n")))
	expected, err := hex.DecodeString(received)
	if err != nil {
		return false
	}
	return hmac.Equal(h.Sum(nil), expected)
}

func parseWebAppUser(initData string) (WebAppUser, bool) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return WebAppUser{}, false
	}
	raw := values.Get("user")
	if raw == "" {
		return WebAppUser{}, false
	}
	var user WebAppUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == 0 {
		return WebAppUser{}, false
	}
	return user, true
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
