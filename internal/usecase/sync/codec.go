package sync

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"tg-academy-bot/internal/domain"
	"tg-academy-bot/internal/infra/metrics"
)

// decodeList декодирует записи коллекции в типизированный срез.
// Битая запись пропускается с логом и сырым содержимым для разбора,
// остальная выборка не страдает.
func decodeList[T any](records []domain.RawRecord, collection string, log zerolog.Logger) []T {
	var out []T
	for _, rec := range records {
		var item T
		if err := json.Unmarshal(rec.Fields, &item); err != nil {
			log.Warn().Err(err).Str("collection", collection).Str("id", rec.ID).Bytes("raw", rec.Fields).Msg("sync: битая запись пропущена")
			metrics.SkippedRecordsTotal.WithLabelValues(collection).Inc()
			continue
		}
		out = append(out, item)
	}
	return out
}

// decodeUsers декодирует профили, сохраняя идентификатор записи
// хранилища.
func decodeUsers(records []domain.RawRecord, log zerolog.Logger) []domain.UserProgress {
	var out []domain.UserProgress
	for _, rec := range records {
		var p domain.UserProgress
		if err := json.Unmarshal(rec.Fields, &p); err != nil {
			log.Warn().Err(err).Str("id", rec.ID).Bytes("raw", rec.Fields).Msg("sync: битый профиль пропущен")
			metrics.SkippedRecordsTotal.WithLabelValues(domain.CollectionProfiles).Inc()
			continue
		}
		if p.TelegramID == 0 {
			log.Warn().Str("id", rec.ID).Bytes("raw", rec.Fields).Msg("sync: профиль без telegram_id пропущен")
			metrics.SkippedRecordsTotal.WithLabelValues(domain.CollectionProfiles).Inc()
			continue
		}
		p.RecordID = rec.ID
		p.Level = domain.LevelForXP(p.XP)
		out = append(out, p)
	}
	return out
}

// entityFields разворачивает сущность в набор полей записи для
// Upsert.
func entityFields(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}
