package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"tg-academy-bot/internal/domain"
	"tg-academy-bot/internal/infra/metrics"
)

// Postgres реализует domain.RemoteStore поверх таблиц с JSON-колонкой.
// Коллекция profiles хранится типизированными колонками плюс jsonb,
// остальные коллекции — парой (id, data jsonb).
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

var _ domain.RemoteStore = (*Postgres)(nil)

// Разрешённые таблицы; имя коллекции никогда не интерполируется в SQL
// напрямую.
var pgTables = map[string]string{
	domain.CollectionProfiles:      "profiles",
	domain.CollectionModules:       "modules",
	domain.CollectionMaterials:     "materials",
	domain.CollectionStreams:       "streams",
	domain.CollectionEvents:        "events",
	domain.CollectionScenarios:     "scenarios",
	domain.CollectionNotifications: "notifications",
	domain.CollectionSettings:      "app_settings",
}

// NewPostgres создаёт адаптер хранилища.
func NewPostgres(pool *pgxpool.Pool, log zerolog.Logger) *Postgres {
	return &Postgres{pool: pool, log: log}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// EnsureSchema создаёт недостающие таблицы.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if _, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS profiles (
    id          text PRIMARY KEY,
    telegram_id bigint UNIQUE NOT NULL,
    username    text NOT NULL DEFAULT '',
    xp          integer NOT NULL DEFAULT 0,
    level       integer NOT NULL DEFAULT 1,
    role        text NOT NULL DEFAULT 'STUDENT',
    data        jsonb NOT NULL DEFAULT '{}'::jsonb,
    updated_at  timestamptz NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}
	for name, table := range pgTables {
		if name == domain.CollectionProfiles {
			continue
		}
		if _, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+table+` (
    id         text PRIMARY KEY,
    data       jsonb NOT NULL DEFAULT '{}'::jsonb,
    updated_at timestamptz NOT NULL DEFAULT now()
)`); err != nil {
			return err
		}
	}
	return nil
}

// FetchCollection возвращает все записи коллекции. Отсутствующая
// таблица эквивалентна пустой коллекции; сбой транспорта отмечается
// ok=false, чтобы вызывающая сторона не приняла его за пустоту.
func (p *Postgres) FetchCollection(ctx context.Context, name string) ([]domain.RawRecord, bool) {
	table, ok := pgTables[name]
	if !ok {
		p.log.Warn().Str("collection", name).Msg("postgres: неизвестная коллекция")
		return nil, false
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if name == domain.CollectionProfiles {
		return p.fetchProfiles(ctx, "", "")
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, data FROM `+table+` ORDER BY updated_at`)
	metrics.ObserveNetworkRequest("postgres", "fetch", name, start, err)
	if err != nil {
		if isUndefinedTable(err) {
			p.log.Warn().Str("collection", name).Msg("postgres: таблица отсутствует, считаем коллекцию пустой")
			return nil, true
		}
		p.log.Warn().Err(err).Str("collection", name).Msg("postgres: выборка не удалась")
		return nil, false
	}
	defer rows.Close()

	var out []domain.RawRecord
	for rows.Next() {
		var rec domain.RawRecord
		if err := rows.Scan(&rec.ID, &rec.Fields); err != nil {
			p.log.Warn().Err(err).Str("collection", name).Msg("postgres: запись пропущена")
			metrics.SkippedRecordsTotal.WithLabelValues(name).Inc()
			continue
		}
		if !json.Valid(rec.Fields) {
			p.log.Warn().Str("collection", name).Str("id", rec.ID).Bytes("raw", rec.Fields).Msg("postgres: битый JSON, запись пропущена")
			metrics.SkippedRecordsTotal.WithLabelValues(name).Inc()
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		p.log.Warn().Err(err).Str("collection", name).Msg("postgres: обход записей прерван")
		return nil, false
	}
	return out, true
}

// fetchProfiles нормализует типизированные колонки профиля и jsonb-блоб
// в единый JSON записи.
func (p *Postgres) fetchProfiles(ctx context.Context, field, value string) ([]domain.RawRecord, bool) {
	query := `SELECT id, telegram_id, username, xp, level, role, data FROM profiles`
	var args []any
	switch field {
	case "":
	case "telegram_id":
		query += ` WHERE telegram_id = $1::bigint`
		args = append(args, value)
	case "username":
		query += ` WHERE username = $1`
		args = append(args, value)
	default:
		p.log.Warn().Str("field", field).Msg("postgres: профили ищутся по telegram_id или username")
		return nil, false
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "fetch", domain.CollectionProfiles, start, err)
	if err != nil {
		if isUndefinedTable(err) {
			p.log.Warn().Msg("postgres: таблица profiles отсутствует")
			return nil, true
		}
		p.log.Warn().Err(err).Msg("postgres: выборка профилей не удалась")
		return nil, false
	}
	defer rows.Close()

	var out []domain.RawRecord
	for rows.Next() {
		var (
			id       string
			tgID     int64
			username string
			xp       int
			level    int
			role     string
			blob     []byte
		)
		if err := rows.Scan(&id, &tgID, &username, &xp, &level, &role, &blob); err != nil {
			p.log.Warn().Err(err).Msg("postgres: профиль пропущен")
			metrics.SkippedRecordsTotal.WithLabelValues(domain.CollectionProfiles).Inc()
			continue
		}
		merged := map[string]json.RawMessage{}
		if len(blob) > 0 {
			if err := json.Unmarshal(blob, &merged); err != nil {
				p.log.Warn().Err(err).Int64("telegram_id", tgID).Bytes("raw", blob).Msg("postgres: битый блоб профиля, запись пропущена")
				metrics.SkippedRecordsTotal.WithLabelValues(domain.CollectionProfiles).Inc()
				continue
			}
		}
		setRaw := func(key string, v any) {
			raw, err := json.Marshal(v)
			if err == nil {
				merged[key] = raw
			}
		}
		setRaw("telegram_id", tgID)
		setRaw("username", username)
		setRaw("xp", xp)
		setRaw("level", level)
		setRaw("role", role)
		fields, err := json.Marshal(merged)
		if err != nil {
			continue
		}
		out = append(out, domain.RawRecord{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		p.log.Warn().Err(err).Msg("postgres: обход профилей прерван")
		return nil, false
	}
	return out, true
}

// Upsert обновляет запись по совпадению idField=idValue либо создаёт
// новую. Возвращает идентификатор записи или пустую строку.
func (p *Postgres) Upsert(ctx context.Context, name, idField, idValue string, fields map[string]any) string {
	table, ok := pgTables[name]
	if !ok {
		p.log.Warn().Str("collection", name).Msg("postgres: неизвестная коллекция")
		return ""
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if name == domain.CollectionProfiles {
		return p.upsertProfile(ctx, idField, idValue, fields)
	}

	data, err := json.Marshal(fields)
	if err != nil {
		p.log.Warn().Err(err).Str("collection", name).Msg("postgres: поля не кодируются")
		return ""
	}
	id := idValue
	if id == "" {
		id = uuid.NewString()
	}

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO `+table+` (id, data, updated_at) VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
`, id, data)
	metrics.ObserveNetworkRequest("postgres", "upsert", name, start, err)
	if err != nil {
		p.log.Warn().Err(err).Str("collection", name).Str("id", id).Msg("postgres: запись не сохранена")
		return ""
	}
	return id
}

func (p *Postgres) upsertProfile(ctx context.Context, idField, idValue string, fields map[string]any) string {
	if idField != "telegram_id" {
		p.log.Warn().Str("id_field", idField).Msg("postgres: профили адресуются только по telegram_id")
		return ""
	}

	typed := map[string]any{}
	blob := map[string]any{}
	for k, v := range fields {
		switch k {
		case "telegram_id", "username", "xp", "level", "role":
			typed[k] = v
		default:
			blob[k] = v
		}
	}
	data, err := json.Marshal(blob)
	if err != nil {
		p.log.Warn().Err(err).Msg("postgres: блоб профиля не кодируется")
		return ""
	}

	var username, role sql.NullString
	if v, ok := typed["username"].(string); ok {
		username = sql.NullString{String: v, Valid: true}
	}
	if v, ok := typed["role"].(string); ok {
		role = sql.NullString{String: v, Valid: true}
	}
	xp, _ := toInt(typed["xp"])
	level, _ := toInt(typed["level"])

	start := time.Now()
	var id string
	err = p.pool.QueryRow(ctx, `
INSERT INTO profiles (id, telegram_id, username, xp, level, role, data, updated_at)
VALUES ($1, $2::bigint, COALESCE($3,''), $4, $5, COALESCE($6,'STUDENT'), $7, now())
ON CONFLICT (telegram_id) DO UPDATE SET
    username = COALESCE($3, profiles.username),
    xp = $4, level = $5,
    role = COALESCE($6, profiles.role),
    data = $7, updated_at = now()
RETURNING id
`, uuid.NewString(), idValue, username, xp, level, role, data).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "upsert", domain.CollectionProfiles, start, err)
	if err != nil {
		p.log.Warn().Err(err).Str("telegram_id", idValue).Msg("postgres: профиль не сохранён")
		return ""
	}
	return id
}

// Query возвращает записи с точным совпадением поля; семантика ok та
// же, что у FetchCollection.
func (p *Postgres) Query(ctx context.Context, name, field, value string) ([]domain.RawRecord, bool) {
	table, ok := pgTables[name]
	if !ok {
		p.log.Warn().Str("collection", name).Msg("postgres: неизвестная коллекция")
		return nil, false
	}
	if !isPlainIdent(field) {
		p.log.Warn().Str("field", field).Msg("postgres: недопустимое имя поля")
		return nil, false
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if name == domain.CollectionProfiles {
		if field != "telegram_id" && field != "username" {
			p.log.Warn().Str("field", field).Msg("postgres: профили ищутся по telegram_id или username")
			return nil, false
		}
		return p.fetchProfiles(ctx, field, value)
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, data FROM `+table+` WHERE data->>'`+field+`' = $1`, value)
	metrics.ObserveNetworkRequest("postgres", "query", name, start, err)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, true
		}
		p.log.Warn().Err(err).Str("collection", name).Msg("postgres: поиск не удался")
		return nil, false
	}
	defer rows.Close()

	var out []domain.RawRecord
	for rows.Next() {
		var rec domain.RawRecord
		if err := rows.Scan(&rec.ID, &rec.Fields); err != nil {
			metrics.SkippedRecordsTotal.WithLabelValues(name).Inc()
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		p.log.Warn().Err(err).Str("collection", name).Msg("postgres: обход записей прерван")
		return nil, false
	}
	return out, true
}

// Ping проверяет доступность базы.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	return p.pool.Ping(ctx)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
