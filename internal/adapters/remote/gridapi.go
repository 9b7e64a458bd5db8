package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-academy-bot/internal/domain"
	"tg-academy-bot/internal/infra/metrics"
)

// GridAPI реализует domain.RemoteStore поверх табличного
// REST-хранилища записей (вида «база из таблиц с полями»): список с
// фильтром-формулой, PATCH существующей записи, POST новой.
type GridAPI struct {
	http    *http.Client
	baseURL string
	token   string
	log     zerolog.Logger
}

var _ domain.RemoteStore = (*GridAPI)(nil)

// NewGridAPI создаёт клиента хранилища. Пустой baseURL означает
// ненастроенное хранилище: все операции тихо возвращают пустые
// значения.
func NewGridAPI(baseURL, token string, timeout time.Duration, log zerolog.Logger) *GridAPI {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GridAPI{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		log:     log,
	}
}

func (g *GridAPI) configured() bool {
	return g.baseURL != ""
}

// gridRecord запись в ответе табличного API.
type gridRecord struct {
	ID     string          `json:"id"`
	Fields json.RawMessage `json:"fields"`
}

type gridListResponse struct {
	Records []gridRecord `json:"records"`
	Offset  string       `json:"offset,omitempty"`
}

func (g *GridAPI) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	target := g.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

// FetchCollection возвращает все записи таблицы. Отсутствующая
// таблица (404) эквивалентна пустой; сбой транспорта отмечается
// ok=false, чтобы вызывающая сторона не приняла его за пустоту.
func (g *GridAPI) FetchCollection(ctx context.Context, name string) ([]domain.RawRecord, bool) {
	if !g.configured() {
		return nil, true
	}
	var out []domain.RawRecord
	offset := ""
	for {
		query := url.Values{}
		if offset != "" {
			query.Set("offset", offset)
		}
		start := time.Now()
		raw, status, err := g.do(ctx, http.MethodGet, "/"+url.PathEscape(name), query, nil)
		metrics.ObserveNetworkRequest("gridapi", "fetch", name, start, err)
		if err != nil {
			g.log.Warn().Err(err).Str("collection", name).Msg("gridapi: выборка не удалась")
			return nil, false
		}
		if status == http.StatusNotFound {
			g.log.Warn().Str("collection", name).Msg("gridapi: таблица отсутствует, считаем коллекцию пустой")
			return out, true
		}
		if status != http.StatusOK {
			g.log.Warn().Int("status", status).Str("collection", name).Msg("gridapi: неожиданный статус")
			return nil, false
		}
		var list gridListResponse
		if err := json.Unmarshal(raw, &list); err != nil {
			g.log.Warn().Err(err).Str("collection", name).Msg("gridapi: ответ не декодируется")
			return nil, false
		}
		for _, rec := range list.Records {
			if rec.ID == "" || len(rec.Fields) == 0 || !json.Valid(rec.Fields) {
				g.log.Warn().Str("collection", name).Str("id", rec.ID).RawJSON("raw", safeRaw(rec.Fields)).Msg("gridapi: битая запись пропущена")
				metrics.SkippedRecordsTotal.WithLabelValues(name).Inc()
				continue
			}
			out = append(out, domain.RawRecord{ID: rec.ID, Fields: rec.Fields})
		}
		if list.Offset == "" {
			return out, true
		}
		offset = list.Offset
	}
}

// findByField ищет записи точным совпадением поля через формулу
// фильтра; кавычки в значении экранируются, чтобы не ломать формулу.
func (g *GridAPI) findByField(ctx context.Context, name, field, value string) ([]gridRecord, bool) {
	query := url.Values{}
	query.Set("filterByFormula", fmt.Sprintf("{%s} = '%s'", field, EscapeQuotes(value)))
	start := time.Now()
	raw, status, err := g.do(ctx, http.MethodGet, "/"+url.PathEscape(name), query, nil)
	metrics.ObserveNetworkRequest("gridapi", "query", name, start, err)
	if err != nil {
		g.log.Warn().Err(err).Str("collection", name).Msg("gridapi: поиск не удался")
		return nil, false
	}
	if status != http.StatusOK {
		if status == http.StatusNotFound {
			return nil, true
		}
		g.log.Warn().Int("status", status).Str("collection", name).Msg("gridapi: поиск вернул неожиданный статус")
		return nil, false
	}
	var list gridListResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		g.log.Warn().Err(err).Str("collection", name).Msg("gridapi: ответ поиска не декодируется")
		return nil, false
	}
	return list.Records, true
}

// Upsert ищет запись по idField=idValue, затем PATCH либо POST.
func (g *GridAPI) Upsert(ctx context.Context, name, idField, idValue string, fields map[string]any) string {
	if !g.configured() {
		return ""
	}
	if !isPlainIdent(idField) {
		g.log.Warn().Str("field", idField).Msg("gridapi: недопустимое имя поля")
		return ""
	}

	// Неудавшийся поиск прерывает операцию: слепой POST после сбоя
	// поиска создавал бы дубликат существующей записи.
	found, ok := g.findByField(ctx, name, idField, idValue)
	if !ok {
		return ""
	}
	body := map[string]any{"fields": fields}

	if len(found) > 0 {
		recordID := found[0].ID
		start := time.Now()
		_, status, err := g.do(ctx, http.MethodPatch, "/"+url.PathEscape(name)+"/"+url.PathEscape(recordID), nil, body)
		metrics.ObserveNetworkRequest("gridapi", "update", name, start, err)
		if err != nil || status != http.StatusOK {
			g.log.Warn().Err(err).Int("status", status).Str("collection", name).Str("record", recordID).Msg("gridapi: запись не обновлена")
			return ""
		}
		return recordID
	}

	start := time.Now()
	raw, status, err := g.do(ctx, http.MethodPost, "/"+url.PathEscape(name), nil, body)
	metrics.ObserveNetworkRequest("gridapi", "create", name, start, err)
	if err != nil || (status != http.StatusOK && status != http.StatusCreated) {
		g.log.Warn().Err(err).Int("status", status).Str("collection", name).Msg("gridapi: запись не создана")
		return ""
	}
	var created gridRecord
	if err := json.Unmarshal(raw, &created); err != nil {
		g.log.Warn().Err(err).Str("collection", name).Msg("gridapi: ответ создания не декодируется")
		return ""
	}
	return created.ID
}

// Query возвращает записи с точным совпадением поля; семантика ok та
// же, что у FetchCollection.
func (g *GridAPI) Query(ctx context.Context, name, field, value string) ([]domain.RawRecord, bool) {
	if !g.configured() {
		return nil, true
	}
	if !isPlainIdent(field) {
		g.log.Warn().Str("field", field).Msg("gridapi: недопустимое имя поля")
		return nil, false
	}
	found, ok := g.findByField(ctx, name, field, value)
	if !ok {
		return nil, false
	}
	var out []domain.RawRecord
	for _, rec := range found {
		if rec.ID == "" || !json.Valid(rec.Fields) {
			metrics.SkippedRecordsTotal.WithLabelValues(name).Inc()
			continue
		}
		out = append(out, domain.RawRecord{ID: rec.ID, Fields: rec.Fields})
	}
	return out, true
}

// Ping проверяет доступность хранилища.
func (g *GridAPI) Ping(ctx context.Context) error {
	if !g.configured() {
		return fmt.Errorf("хранилище не настроено")
	}
	query := url.Values{}
	query.Set("maxRecords", "1")
	start := time.Now()
	_, status, err := g.do(ctx, http.MethodGet, "/"+url.PathEscape(domain.CollectionSettings), query, nil)
	metrics.ObserveNetworkRequest("gridapi", "ping", domain.CollectionSettings, start, err)
	if err != nil {
		return err
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("хранилище ответило статусом %d", status)
	}
	return nil
}

func safeRaw(raw json.RawMessage) json.RawMessage {
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
