package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEscapeQuotes(t *testing.T) {
	cases := map[string]string{
		`plain`:      `plain`,
		`o'brien`:    `o\'brien`,
		`say "hi"`:   `say \"hi\"`,
		`back\slash`: `back\\slash`,
	}
	for input, expected := range cases {
		if got := EscapeQuotes(input); got != expected {
			t.Fatalf("для %q ожидали %q, получили %q", input, expected, got)
		}
	}
}

func newTestGrid(t *testing.T, handler http.HandlerFunc) *GridAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGridAPI(srv.URL, "token", time.Second, zerolog.Nop())
}

func TestFetchCollectionSkipsMalformed(t *testing.T) {
	g := newTestGrid(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records":[
			{"id":"rec1","fields":{"id":"m1","title":"ok"}},
			{"id":"","fields":{"id":"m2"}},
			{"id":"rec3","fields":{"id":"m3","title":"тоже ок"}}
		]}`))
	})
	records, ok := g.FetchCollection(context.Background(), "modules")
	if !ok {
		t.Fatal("успешная выборка не должна считаться сбоем")
	}
	if len(records) != 2 {
		t.Fatalf("ожидали 2 записи, получили %d", len(records))
	}
	if records[0].ID != "rec1" || records[1].ID != "rec3" {
		t.Fatalf("битая запись должна быть пропущена: %+v", records)
	}
}

func TestFetchCollectionMissingTable(t *testing.T) {
	g := newTestGrid(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	records, ok := g.FetchCollection(context.Background(), "streams")
	if !ok {
		t.Fatal("отсутствующая таблица эквивалентна пустой, а не сбою")
	}
	if records != nil {
		t.Fatalf("отсутствующая таблица должна давать пустой список, получили %+v", records)
	}
}

func TestFetchCollectionServerErrorIsNotEmpty(t *testing.T) {
	g := newTestGrid(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, ok := g.FetchCollection(context.Background(), "modules"); ok {
		t.Fatal("сбой хранилища нельзя выдавать за пустую коллекцию")
	}
}

func TestUpsertAbortsWhenFindFails(t *testing.T) {
	posts := 0
	g := newTestGrid(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusBadGateway)
		case http.MethodPost:
			posts++
			_, _ = w.Write([]byte(`{"id":"recDup","fields":{}}`))
		}
	})
	if id := g.Upsert(context.Background(), "modules", "id", "m1", map[string]any{"id": "m1"}); id != "" {
		t.Fatalf("при сбое поиска запись не сохраняется, получили %q", id)
	}
	if posts != 0 {
		t.Fatal("слепое создание после сбоя поиска плодит дубликаты")
	}
}

func TestUpsertPatchesExisting(t *testing.T) {
	var patched string
	g := newTestGrid(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			formula := r.URL.Query().Get("filterByFormula")
			if formula != `{id} = 'm1'` {
				t.Fatalf("неожиданная формула поиска: %q", formula)
			}
			_, _ = w.Write([]byte(`{"records":[{"id":"rec42","fields":{"id":"m1"}}]}`))
		case http.MethodPatch:
			patched = r.URL.Path
			_, _ = w.Write([]byte(`{"id":"rec42","fields":{}}`))
		default:
			t.Fatalf("неожиданный метод %s", r.Method)
		}
	})
	id := g.Upsert(context.Background(), "modules", "id", "m1", map[string]any{"id": "m1", "title": "x"})
	if id != "rec42" {
		t.Fatalf("ожидали rec42, получили %q", id)
	}
	if patched != "/modules/rec42" {
		t.Fatalf("ожидали PATCH существующей записи, получили %q", patched)
	}
}

func TestUpsertCreatesWhenMissing(t *testing.T) {
	g := newTestGrid(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"records":[]}`))
		case http.MethodPost:
			var body struct {
				Fields map[string]any `json:"fields"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("тело запроса не декодируется: %v", err)
			}
			if body.Fields["id"] != "m9" {
				t.Fatalf("ожидали поля новой записи, получили %+v", body.Fields)
			}
			_, _ = w.Write([]byte(`{"id":"recNew","fields":{"id":"m9"}}`))
		default:
			t.Fatalf("неожиданный метод %s", r.Method)
		}
	})
	id := g.Upsert(context.Background(), "modules", "id", "m9", map[string]any{"id": "m9"})
	if id != "recNew" {
		t.Fatalf("ожидали recNew, получили %q", id)
	}
}

func TestUnconfiguredStoreIsSilent(t *testing.T) {
	g := NewGridAPI("", "", time.Second, zerolog.Nop())
	if records, ok := g.FetchCollection(context.Background(), "modules"); !ok || records != nil {
		t.Fatal("ненастроенное хранилище должно возвращать пустой список")
	}
	if id := g.Upsert(context.Background(), "modules", "id", "m1", nil); id != "" {
		t.Fatal("ненастроенное хранилище не должно ничего сохранять")
	}
	if err := g.Ping(context.Background()); err == nil {
		t.Fatal("явная проверка соединения должна вернуть ошибку")
	}
}
