package domain

import (
	"testing"
	"time"
)

func TestLevelForXP(t *testing.T) {
	cases := map[int]int{
		0:    1,
		999:  1,
		1000: 2,
		2500: 3,
		-10:  1,
	}
	for xp, expected := range cases {
		if got := LevelForXP(xp); got != expected {
			t.Fatalf("для xp=%d ожидали уровень %d, получили %d", xp, expected, got)
		}
	}
}

func TestAddXPRecomputesLevel(t *testing.T) {
	p := NewUserProgress(1, "test")
	p.AddXP(1050)
	if p.Level != 2 {
		t.Fatalf("ожидали уровень 2, получили %d", p.Level)
	}
	p.AddXP(-5000)
	if p.XP != 0 || p.Level != 1 {
		t.Fatalf("ожидали сброс к xp=0 уровню 1, получили xp=%d уровень=%d", p.XP, p.Level)
	}
}

func TestCompleteLessonIdempotent(t *testing.T) {
	p := NewUserProgress(1, "test")
	if !p.CompleteLesson("l1") {
		t.Fatal("первое прохождение должно засчитаться")
	}
	if p.CompleteLesson("l1") {
		t.Fatal("повторное прохождение не должно засчитаться")
	}
	if p.XP != XPPerLesson {
		t.Fatalf("ожидали %d XP, получили %d", XPPerLesson, p.XP)
	}
}

func TestTouchActivityStreak(t *testing.T) {
	p := NewUserProgress(1, "test")
	day1 := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p.TouchActivity(day1)
	if p.Stats.Streak != 1 {
		t.Fatalf("ожидали серию 1, получили %d", p.Stats.Streak)
	}
	p.TouchActivity(day1.Add(2 * time.Hour))
	if p.Stats.Streak != 1 {
		t.Fatalf("повторная активность в тот же день не продолжает серию")
	}
	p.TouchActivity(day1.AddDate(0, 0, 1))
	if p.Stats.Streak != 2 {
		t.Fatalf("ожидали серию 2, получили %d", p.Stats.Streak)
	}
	p.TouchActivity(day1.AddDate(0, 0, 5))
	if p.Stats.Streak != 1 {
		t.Fatalf("пропуск дней должен сбросить серию, получили %d", p.Stats.Streak)
	}
}

func TestApplyUpdateAwardsOnlyNewCompletions(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	current := NewUserProgress(1, "test")
	current.CompleteLesson("l1")

	incoming := current
	incoming.CompletedLessons = []string{"l1", "l2"}
	incoming.SubmittedHomework = []string{"hw1"}

	merged := ApplyUpdate(current, incoming, now)
	if merged.XP != current.XP+XPPerLesson+XPPerHomework {
		t.Fatalf("опыт начисляется только за новое, получили %d", merged.XP)
	}
	if len(merged.CompletedLessons) != 2 {
		t.Fatalf("ожидали два зачтённых урока, получили %v", merged.CompletedLessons)
	}

	// Повторная отправка того же состояния ничего не доначисляет.
	again := ApplyUpdate(merged, merged, now)
	if again.XP != merged.XP {
		t.Fatalf("повторная правка не должна начислять опыт: %d -> %d", merged.XP, again.XP)
	}
}

func TestApplyUpdateIgnoresClientOwnedFields(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	current := NewUserProgress(1, "test")
	current.XP = 300
	current.Level = LevelForXP(300)

	incoming := current
	incoming.XP = 99_999
	incoming.Level = 50
	incoming.Role = RoleAdmin
	incoming.Banned = false
	incoming.Stats.Streak = 365

	merged := ApplyUpdate(current, incoming, now)
	if merged.XP != 300 || merged.Level != LevelForXP(300) {
		t.Fatalf("клиентский опыт игнорируется, получили xp=%d уровень=%d", merged.XP, merged.Level)
	}
	if merged.Role != RoleStudent {
		t.Fatal("клиент не назначает себе роль")
	}
	if merged.Stats.Streak != current.Stats.Streak {
		t.Fatal("серия ведётся сервером")
	}
}

func TestApplyUpdateCompletionsAreMonotonic(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	current := NewUserProgress(1, "test")
	merged := ApplyUpdate(current, UserProgress{CompletedLessons: []string{"l1"}}, now)
	if merged.XP != XPPerLesson {
		t.Fatalf("ожидали %d опыта, получили %d", XPPerLesson, merged.XP)
	}

	// Урок «пропал» из клиентского списка и прислан заново: список
	// зачтённого не сжимается, повторного начисления нет.
	merged = ApplyUpdate(merged, UserProgress{CompletedLessons: nil}, now)
	if len(merged.CompletedLessons) != 1 {
		t.Fatalf("зачтённые уроки не раззачитываются: %v", merged.CompletedLessons)
	}
	merged = ApplyUpdate(merged, UserProgress{CompletedLessons: []string{"l1", "l1"}}, now)
	if merged.XP != XPPerLesson {
		t.Fatalf("повторная сдача и дубли не начисляют опыт, получили %d", merged.XP)
	}
}

func TestNotificationAddressing(t *testing.T) {
	student := NewUserProgress(10, "student")
	admin := NewUserProgress(20, "admin")
	admin.Role = RoleAdmin

	broadcast := AppNotification{Type: NotificationInfo}
	toAdmins := AppNotification{Type: NotificationWarning, TargetRole: RoleAdmin}
	personal := AppNotification{Type: NotificationSuccess, TargetUserID: 10}

	feed := []AppNotification{broadcast, toAdmins, personal}

	forStudent := FilterNotifications(feed, student)
	if len(forStudent) != 2 {
		t.Fatalf("ожидали 2 уведомления для ученика, получили %d", len(forStudent))
	}
	forAdmin := FilterNotifications(feed, admin)
	if len(forAdmin) != 2 {
		t.Fatalf("ожидали 2 уведомления для админа, получили %d", len(forAdmin))
	}
}
