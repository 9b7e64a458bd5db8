package state

import (
	"testing"

	"tg-academy-bot/internal/domain"
)

func TestApplyGatesOnEquality(t *testing.T) {
	s := New()
	modules := []domain.CourseModule{{ID: "m1", Title: "Холодные звонки"}}

	if !s.Apply(KindModules, modules) {
		t.Fatal("первое применение должно изменить состояние")
	}
	v1 := s.Snapshot().Version

	same := []domain.CourseModule{{ID: "m1", Title: "Холодные звонки"}}
	if s.Apply(KindModules, same) {
		t.Fatal("структурно равное значение не должно менять состояние")
	}
	if s.Snapshot().Version != v1 {
		t.Fatal("версия не должна расти без изменений")
	}
}

func TestApplyIgnoresWrongType(t *testing.T) {
	s := New()
	if s.Apply(KindModules, "не срез модулей") {
		t.Fatal("значение неподходящего типа должно игнорироваться")
	}
}

func TestSubscribeNotifiesOnChange(t *testing.T) {
	s := New()
	ch := s.Subscribe()
	s.Apply(KindConfig, domain.AppConfig{})

	cfg := domain.AppConfig{}
	cfg.Features.Practice = true
	s.Apply(KindConfig, cfg)

	select {
	case <-ch:
	default:
		t.Fatal("ожидали сигнал об изменении")
	}
}

func TestVisibleUsersExcludesBannedAndSorts(t *testing.T) {
	s := New()
	users := []domain.UserProgress{
		{TelegramID: 1, Username: "low", XP: 100},
		{TelegramID: 2, Username: "banned", XP: 9999, Banned: true},
		{TelegramID: 3, Username: "top", XP: 2500},
	}
	s.Apply(KindUsers, users)

	visible := s.VisibleUsers()
	if len(visible) != 2 {
		t.Fatalf("ожидали 2 видимых пользователя, получили %d", len(visible))
	}
	if visible[0].Username != "top" || visible[1].Username != "low" {
		t.Fatalf("ожидали сортировку по убыванию xp: %+v", visible)
	}
	for _, u := range visible {
		if u.Banned {
			t.Fatal("забаненный пользователь не должен попадать в ростер")
		}
	}
}
