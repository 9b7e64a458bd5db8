package domain

import "time"

// Role определяет роль пользователя академии.
type Role string

const (
	// RoleStudent обычный ученик.
	RoleStudent Role = "STUDENT"
	// RoleAdmin администратор контента и рассылок.
	RoleAdmin Role = "ADMIN"
)

// NotificationType задаёт тип уведомления.
type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationWarning NotificationType = "WARNING"
	NotificationSuccess NotificationType = "SUCCESS"
	NotificationAlert   NotificationType = "ALERT"
)

// UserProgress описывает прогресс одного ученика.
type UserProgress struct {
	RecordID          string            `json:"-"`
	TelegramID        int64             `json:"telegram_id"`
	Username          string            `json:"username"`
	Role              Role              `json:"role"`
	XP                int               `json:"xp"`
	Level             int               `json:"level"`
	CompletedLessons  []string          `json:"completed_lessons"`
	SubmittedHomework []string          `json:"submitted_homework"`
	Notebook          []NotebookEntry   `json:"notebook"`
	Habits            []Habit           `json:"habits"`
	Goals             []Goal            `json:"goals"`
	Stats             Stats             `json:"stats"`
	Prefs             NotificationPrefs `json:"prefs"`
	Theme             string            `json:"theme"`
	Banned            bool              `json:"banned"`
	LastSyncTimestamp int64             `json:"last_sync_timestamp"`
}

// NotebookEntry запись в конспекте ученика.
type NotebookEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Date  int64  `json:"date"`
}

// Habit привычка с отметками по дням.
type Habit struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	DoneDates []string `json:"done_dates"`
}

// Goal цель ученика с измеримым прогрессом.
type Goal struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Target   int    `json:"target"`
	Progress int    `json:"progress"`
	Done     bool   `json:"done"`
}

// Stats счётчики активности ученика.
type Stats struct {
	Streak        int    `json:"streak"`
	LastActiveDay string `json:"last_active_day"`
}

// NotificationPrefs настройки уведомлений ученика.
type NotificationPrefs struct {
	Enabled    bool `json:"enabled"`
	Broadcasts bool `json:"broadcasts"`
}

// Lesson один урок внутри модуля.
type Lesson struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	VideoURL string `json:"video_url,omitempty"`
	Homework string `json:"homework,omitempty"`
}

// CourseModule модуль курса; порядок в списке задаёт порядок показа.
type CourseModule struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lessons     []Lesson `json:"lessons"`
}

// Material дополнительный материал.
type Material struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
	URL   string `json:"url"`
	Date  int64  `json:"date"`
}

// Stream запланированный эфир.
type Stream struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
	Date  int64  `json:"date"`
}

// Event событие академии.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        int64  `json:"date"`
}

// Scenario сценарий ролевой отработки продаж.
type Scenario struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Persona    string `json:"persona"`
	Goal       string `json:"goal"`
	Difficulty string `json:"difficulty"`
}

// AppNotification уведомление из общей ленты.
type AppNotification struct {
	ID           string           `json:"id"`
	Type         NotificationType `json:"type"`
	Text         string           `json:"text"`
	Link         string           `json:"link,omitempty"`
	TargetRole   Role             `json:"target_role,omitempty"`
	TargetUserID int64            `json:"target_user_id,omitempty"`
	Date         int64            `json:"date"`
}

// AppConfig единственная глобальная конфигурация приложения.
type AppConfig struct {
	Features struct {
		Practice bool `json:"practice"`
		Notebook bool `json:"notebook"`
		Habits   bool `json:"habits"`
		Goals    bool `json:"goals"`
	} `json:"features"`
	AI struct {
		Provider    string  `json:"provider"`
		Model       string  `json:"model"`
		APIKey      string  `json:"api_key"`
		Temperature float64 `json:"temperature"`
	} `json:"ai"`
	Integrations struct {
		RemoteURL   string `json:"remote_url"`
		RemoteToken string `json:"remote_token"`
	} `json:"integrations"`
	Agent struct {
		SystemPrompt string `json:"system_prompt"`
	} `json:"agent"`
}

// RawRecord нормализованная запись удалённой коллекции: стабильный
// строковый идентификатор и непрозрачный JSON с полями.
type RawRecord struct {
	ID     string
	Fields []byte
}

// Имена удалённых коллекций.
const (
	CollectionProfiles      = "profiles"
	CollectionModules       = "modules"
	CollectionMaterials     = "materials"
	CollectionStreams       = "streams"
	CollectionEvents        = "events"
	CollectionScenarios     = "scenarios"
	CollectionNotifications = "notifications"
	CollectionSettings      = "app_settings"
)

// Логические ключи локального кэша.
const (
	CacheKeyConfig        = "appConfig"
	CacheKeyModules       = "courseModules"
	CacheKeyMaterials     = "materials"
	CacheKeyStreams       = "streams"
	CacheKeyEvents        = "events"
	CacheKeyScenarios     = "scenarios"
	CacheKeyUsers         = "allUsers"
	CacheKeyProgress      = "progress"
	CacheKeyNotifications = "local_notifications"
)

// NowMillis возвращает текущее время в миллисекундах эпохи.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
