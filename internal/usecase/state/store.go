package state

import (
	"reflect"
	"sort"
	"sync"

	"tg-academy-bot/internal/domain"
)

// Kind именует раздел состояния; значения совпадают с логическими
// ключами локального кэша.
type Kind = string

const (
	KindConfig        Kind = domain.CacheKeyConfig
	KindModules       Kind = domain.CacheKeyModules
	KindMaterials     Kind = domain.CacheKeyMaterials
	KindStreams       Kind = domain.CacheKeyStreams
	KindEvents        Kind = domain.CacheKeyEvents
	KindScenarios     Kind = domain.CacheKeyScenarios
	KindUsers         Kind = domain.CacheKeyUsers
	KindCurrentUser   Kind = domain.CacheKeyProgress
	KindNotifications Kind = domain.CacheKeyNotifications
)

// Snapshot значение состояния сессии на момент чтения. Передаётся
// потребителям по значению; потребители не мутируют вложенные срезы.
type Snapshot struct {
	Version       uint64                   `json:"version"`
	Config        domain.AppConfig         `json:"config"`
	Modules       []domain.CourseModule    `json:"modules"`
	Materials     []domain.Material        `json:"materials"`
	Streams       []domain.Stream          `json:"streams"`
	Events        []domain.Event           `json:"events"`
	Scenarios     []domain.Scenario        `json:"scenarios"`
	Users         []domain.UserProgress    `json:"users"`
	CurrentUser   domain.UserProgress      `json:"current_user"`
	Notifications []domain.AppNotification `json:"notifications"`
}

// Store единственный владелец состояния сессии: все записи проходят
// через Apply под мьютексом, потребители получают снимки по значению.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	subs []chan struct{}
}

// New создаёт пустой контейнер состояния.
func New() *Store {
	return &Store{}
}

// Snapshot возвращает копию текущего состояния.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Apply записывает новое значение раздела, если оно отличается от
// текущего (глубокое сравнение). Возвращает true при изменении.
// Значение незнакомого раздела или неподходящего типа игнорируется.
func (s *Store) Apply(kind Kind, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	switch kind {
	case KindConfig:
		if v, ok := value.(domain.AppConfig); ok && !reflect.DeepEqual(s.snap.Config, v) {
			s.snap.Config = v
			changed = true
		}
	case KindModules:
		if v, ok := value.([]domain.CourseModule); ok && !reflect.DeepEqual(s.snap.Modules, v) {
			s.snap.Modules = v
			changed = true
		}
	case KindMaterials:
		if v, ok := value.([]domain.Material); ok && !reflect.DeepEqual(s.snap.Materials, v) {
			s.snap.Materials = v
			changed = true
		}
	case KindStreams:
		if v, ok := value.([]domain.Stream); ok && !reflect.DeepEqual(s.snap.Streams, v) {
			s.snap.Streams = v
			changed = true
		}
	case KindEvents:
		if v, ok := value.([]domain.Event); ok && !reflect.DeepEqual(s.snap.Events, v) {
			s.snap.Events = v
			changed = true
		}
	case KindScenarios:
		if v, ok := value.([]domain.Scenario); ok && !reflect.DeepEqual(s.snap.Scenarios, v) {
			s.snap.Scenarios = v
			changed = true
		}
	case KindUsers:
		if v, ok := value.([]domain.UserProgress); ok && !reflect.DeepEqual(s.snap.Users, v) {
			s.snap.Users = v
			changed = true
		}
	case KindCurrentUser:
		if v, ok := value.(domain.UserProgress); ok && !reflect.DeepEqual(s.snap.CurrentUser, v) {
			s.snap.CurrentUser = v
			changed = true
		}
	case KindNotifications:
		if v, ok := value.([]domain.AppNotification); ok && !reflect.DeepEqual(s.snap.Notifications, v) {
			s.snap.Notifications = v
			changed = true
		}
	}
	if changed {
		s.snap.Version++
		s.notifyLocked()
	}
	return changed
}

// Subscribe возвращает канал с сигналами об изменении состояния.
// Уведомление неблокирующее: пропущенный сигнал означает, что
// подписчик и так прочитает свежий снимок.
func (s *Store) Subscribe() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// VisibleUsers возвращает видимый ростер: без забаненных, по убыванию
// опыта. Бан не уничтожает удалённую запись, только прячет её.
func (s *Store) VisibleUsers() []domain.UserProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.UserProgress
	for _, u := range s.snap.Users {
		if !u.Banned {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].XP > out[j].XP
	})
	return out
}
