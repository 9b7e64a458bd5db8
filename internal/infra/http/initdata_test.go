package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
)

const testToken = "12345:test-token"

// signInitData подписывает параметры так, как это делает Telegram.
func signInitData(t *testing.T, params url.Values) string {
	t.Helper()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}
	mac := hmac.New(sha256.New, webAppSecret(testToken))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	params.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return params.Encode()
}

func protectedProbe(t *testing.T) (http.Handler, *bool) {
	t.Helper()
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			t.Fatal("пользователь не попал в контекст")
		}
		if user.ID != 99 || user.Username != "ivan" {
			t.Fatalf("неожиданный пользователь: %+v", user)
		}
		called = true
	})
	return WebAppAuthMiddleware(testToken)(inner), &called
}

func TestWebAppAuthValidSignature(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", "1724800000")
	params.Set("query_id", "AAE1")
	params.Set("user", `{"id":99,"username":"ivan"}`)
	initData := signInitData(t, params)

	handler, called := protectedProbe(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Init-Data", initData)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("подписанный запрос отклонён: %d", rec.Code)
	}
	if !*called {
		t.Fatal("обработчик не вызван")
	}
}

func TestWebAppAuthRejectsTamperedData(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", "1724800000")
	params.Set("user", `{"id":99,"username":"ivan"}`)
	initData := signInitData(t, params)
	tampered := strings.Replace(initData, "ivan", "oleg", 1)

	handler, called := protectedProbe(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Init-Data", tampered)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("подделанный запрос пропущен: %d", rec.Code)
	}
	if *called {
		t.Fatal("обработчик вызван для подделанных данных")
	}
}

func TestWebAppAuthRejectsMissingInitData(t *testing.T) {
	handler, called := protectedProbe(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("запрос без init_data пропущен: %d", rec.Code)
	}
	if *called {
		t.Fatal("обработчик вызван без идентичности")
	}
}
