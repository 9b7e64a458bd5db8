package domain

import "time"

// XP-награды за действия ученика.
const (
	XPPerLesson   = 100
	XPPerHomework = 150
)

// LevelForXP вычисляет уровень из опыта. Уровень всегда выводится из
// xp и никогда не хранится независимо.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/1000 + 1
}

// AddXP начисляет опыт (отрицательная дельта обрезается нулём снизу)
// и пересчитывает уровень.
func (p *UserProgress) AddXP(delta int) {
	p.XP += delta
	if p.XP < 0 {
		p.XP = 0
	}
	p.Level = LevelForXP(p.XP)
}

// CompleteLesson отмечает урок пройденным и начисляет XP. Повторное
// прохождение того же урока опыт не начисляет.
func (p *UserProgress) CompleteLesson(lessonID string) bool {
	for _, id := range p.CompletedLessons {
		if id == lessonID {
			return false
		}
	}
	p.CompletedLessons = append(p.CompletedLessons, lessonID)
	p.AddXP(XPPerLesson)
	p.TouchActivity(time.Now())
	return true
}

// SubmitHomework фиксирует сдачу домашнего задания и начисляет XP.
// Повторная сдача того же задания опыт не начисляет.
func (p *UserProgress) SubmitHomework(homeworkID string) bool {
	for _, id := range p.SubmittedHomework {
		if id == homeworkID {
			return false
		}
	}
	p.SubmittedHomework = append(p.SubmittedHomework, homeworkID)
	p.AddXP(XPPerHomework)
	p.TouchActivity(time.Now())
	return true
}

// TouchActivity обновляет серию активности: активность на следующий
// календарный день продолжает серию, пропуск дня сбрасывает её.
func (p *UserProgress) TouchActivity(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	switch p.Stats.LastActiveDay {
	case day:
		return
	case now.UTC().AddDate(0, 0, -1).Format("2006-01-02"):
		p.Stats.Streak++
	default:
		p.Stats.Streak = 1
	}
	p.Stats.LastActiveDay = day
}

// ApplyUpdate накладывает клиентскую правку прогресса поверх текущей
// серверной версии. Опыт, уровень, серия, роль и бан клиенту не
// принадлежат: они берутся из текущей версии, а опыт начисляется
// только за впервые засчитанные уроки и домашние задания. Списки
// зачтённого растут монотонно — урок нельзя «раззачесть» и сдать
// заново ради повторного начисления.
func ApplyUpdate(current, incoming UserProgress, now time.Time) UserProgress {
	merged := incoming
	merged.TelegramID = current.TelegramID
	merged.Role = current.Role
	merged.Banned = current.Banned
	merged.XP = current.XP
	merged.Stats = current.Stats

	newLessons := newIDs(current.CompletedLessons, incoming.CompletedLessons)
	newHomework := newIDs(current.SubmittedHomework, incoming.SubmittedHomework)
	merged.CompletedLessons = append(append([]string(nil), current.CompletedLessons...), newLessons...)
	merged.SubmittedHomework = append(append([]string(nil), current.SubmittedHomework...), newHomework...)

	if len(newLessons)+len(newHomework) > 0 {
		merged.AddXP(len(newLessons)*XPPerLesson + len(newHomework)*XPPerHomework)
		merged.TouchActivity(now)
	}
	merged.Level = LevelForXP(merged.XP)
	return merged
}

// newIDs возвращает идентификаторы из next, которых нет в prev, без
// дублей.
func newIDs(prev, next []string) []string {
	seen := make(map[string]bool, len(prev))
	for _, id := range prev {
		seen[id] = true
	}
	var out []string
	for _, id := range next {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// NewUserProgress создаёт прогресс нового ученика с дефолтами.
func NewUserProgress(tgID int64, username string) UserProgress {
	p := UserProgress{
		TelegramID: tgID,
		Username:   username,
		Role:       RoleStudent,
		Level:      LevelForXP(0),
		Theme:      "light",
	}
	p.Prefs.Enabled = true
	p.Prefs.Broadcasts = true
	return p
}
