package resolve

import "tg-academy-bot/internal/domain"

// GraceMillis окно согласованности: правки, разнесённые меньше чем на
// это время, считаются одновременными.
const GraceMillis = 2000

// Outcome результат разрешения конфликта.
type Outcome int

const (
	// LocalWins локальная версия новее: её нужно дослать в удалённое
	// хранилище и проштамповать обе стороны новым временем.
	LocalWins Outcome = iota
	// RemoteWins удалённая версия новее: локальное состояние целиком
	// заменяется полями удалённой записи, без пополевого слияния.
	RemoteWins
	// LocalKept версии одновременны в пределах окна: остаются
	// локальные поля, но запись перенимает удалённый идентификатор.
	LocalKept
)

// Decision описывает победителя и итоговое состояние.
type Decision struct {
	Outcome Outcome
	// Merged итоговый прогресс после разрешения.
	Merged domain.UserProgress
	// PushRemote требуется ли запись итога в удалённое хранилище.
	PushRemote bool
}

// Resolve сравнивает локальную и удалённую версии прогресса одного
// пользователя по last-write-wins с асимметричным окном: устройство,
// только что правившее данные, получает преимущество. Известное
// принятое ограничение: правка другого устройства внутри окна может
// быть молча отброшена.
func Resolve(local, remote domain.UserProgress, nowMillis int64) Decision {
	localTime := local.LastSyncTimestamp
	remoteTime := remote.LastSyncTimestamp

	switch {
	case localTime > remoteTime+GraceMillis:
		merged := local
		merged.RecordID = remote.RecordID
		merged.LastSyncTimestamp = nowMillis
		merged.Level = domain.LevelForXP(merged.XP)
		return Decision{Outcome: LocalWins, Merged: merged, PushRemote: true}
	case remoteTime > localTime:
		merged := remote
		merged.Level = domain.LevelForXP(merged.XP)
		return Decision{Outcome: RemoteWins, Merged: merged}
	default:
		merged := local
		merged.RecordID = remote.RecordID
		merged.Level = domain.LevelForXP(merged.XP)
		return Decision{Outcome: LocalKept, Merged: merged}
	}
}
