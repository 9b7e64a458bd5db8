package resolve

import (
	"testing"

	"tg-academy-bot/internal/domain"
)

func makeVersions(localTime, remoteTime int64) (domain.UserProgress, domain.UserProgress) {
	local := domain.NewUserProgress(1, "local")
	local.XP = 1200
	local.LastSyncTimestamp = localTime
	remote := domain.NewUserProgress(1, "remote")
	remote.RecordID = "rec1"
	remote.XP = 300
	remote.LastSyncTimestamp = remoteTime
	return local, remote
}

func TestLocalWinsBeyondGrace(t *testing.T) {
	local, remote := makeVersions(10_000+GraceMillis+1, 10_000)
	d := Resolve(local, remote, 99_999)
	if d.Outcome != LocalWins {
		t.Fatalf("ожидали победу локальной версии, получили %v", d.Outcome)
	}
	if !d.PushRemote {
		t.Fatal("победа локальной версии требует записи в удалённое хранилище")
	}
	if d.Merged.XP != 1200 {
		t.Fatalf("ожидали локальные поля, получили xp=%d", d.Merged.XP)
	}
	if d.Merged.LastSyncTimestamp != 99_999 {
		t.Fatalf("итог должен быть проштампован новым временем, получили %d", d.Merged.LastSyncTimestamp)
	}
	if d.Merged.RecordID != "rec1" {
		t.Fatal("итог должен сохранить удалённый идентификатор записи")
	}
}

func TestLocalKeptWithinGrace(t *testing.T) {
	local, remote := makeVersions(10_000+GraceMillis-1, 10_000)
	d := Resolve(local, remote, 99_999)
	if d.Outcome != LocalKept {
		t.Fatalf("внутри окна предпочитается локальная версия, получили %v", d.Outcome)
	}
	if d.PushRemote {
		t.Fatal("внутри окна запись в удалённое хранилище не требуется")
	}
	if d.Merged.XP != 1200 || d.Merged.RecordID != "rec1" {
		t.Fatalf("ожидали локальные поля с удалённым идентификатором: %+v", d.Merged)
	}
}

func TestRemoteWinsWhenNewer(t *testing.T) {
	local, remote := makeVersions(10_000, 10_001)
	d := Resolve(local, remote, 99_999)
	if d.Outcome != RemoteWins {
		t.Fatalf("ожидали победу удалённой версии, получили %v", d.Outcome)
	}
	if d.Merged.XP != 300 {
		t.Fatalf("удалённая версия заменяет локальную целиком, получили xp=%d", d.Merged.XP)
	}
	if d.Merged.LastSyncTimestamp != 10_001 {
		t.Fatalf("временная метка удалённой версии сохраняется, получили %d", d.Merged.LastSyncTimestamp)
	}
}

func TestResolveDeterministic(t *testing.T) {
	local, remote := makeVersions(5_000, 4_000)
	first := Resolve(local, remote, 50_000)
	second := Resolve(local, remote, 50_000)
	if first.Outcome != second.Outcome || first.Merged.XP != second.Merged.XP {
		t.Fatal("разрешение конфликта должно быть детерминированным")
	}
}

func TestLevelRecomputedOnMerge(t *testing.T) {
	local, remote := makeVersions(10_000, 20_000)
	remote.XP = 2100
	remote.Level = 99
	d := Resolve(local, remote, 99_999)
	if d.Merged.Level != 3 {
		t.Fatalf("уровень всегда выводится из xp, получили %d", d.Merged.Level)
	}
}
