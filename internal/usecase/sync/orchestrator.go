package sync

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-academy-bot/internal/defaults"
	"tg-academy-bot/internal/domain"
	"tg-academy-bot/internal/infra/debounce"
	"tg-academy-bot/internal/infra/metrics"
	"tg-academy-bot/internal/usecase/resolve"
	"tg-academy-bot/internal/usecase/state"
)

// Options настройки оркестратора.
type Options struct {
	// PollInterval период фонового опроса удалённого хранилища.
	PollInterval time.Duration
	// Debounce тихий период перед записью прогресса в удалённое
	// хранилище.
	Debounce time.Duration
	// ToastWindow окно свежести: тост показывается только для
	// уведомления не старше этого окна на момент обнаружения.
	ToastWindow time.Duration
	// SeedTTL время жизни замка первичного засева.
	SeedTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 15 * time.Second
	}
	if o.Debounce <= 0 {
		o.Debounce = 2 * time.Second
	}
	if o.ToastWindow <= 0 {
		o.ToastWindow = 10 * time.Second
	}
	if o.SeedTTL <= 0 {
		o.SeedTTL = 24 * time.Hour
	}
	return o
}

// Orchestrator сверяет состояние одной сессии ученика с удалённым
// хранилищем: цикл опроса по таймеру, внеочередные циклы по событию,
// засев пустых коллекций и отложенная запись прогресса. Циклы могут
// пересекаться: каждая запись идемпотентна и применяется только при
// структурном отличии от текущего значения.
type Orchestrator struct {
	remote domain.RemoteStore
	cache  domain.LocalCache
	store  *state.Store
	toasts domain.ToastSink
	log    zerolog.Logger
	opts   Options

	userID   int64
	username string
	chatID   int64

	now       func() time.Time
	trigger   chan struct{}
	debouncer *debounce.Trailing

	mu          sync.Mutex
	seeded      map[string]bool
	prevFeedLen int
	clearedAt   int64
}

// New создаёт оркестратор сессии пользователя.
func New(remote domain.RemoteStore, cache domain.LocalCache, store *state.Store, toasts domain.ToastSink, log zerolog.Logger, opts Options, userID int64, username string) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		remote:    remote,
		cache:     cache,
		store:     store,
		toasts:    toasts,
		log:       log.With().Int64("user", userID).Logger(),
		opts:      opts,
		userID:    userID,
		username:  username,
		chatID:    userID,
		now:       time.Now,
		trigger:   make(chan struct{}, 1),
		debouncer: debounce.NewTrailing(opts.Debounce),
		seeded:    map[string]bool{},
	}
}

func (o *Orchestrator) nowMillis() int64 {
	return o.now().UnixMilli()
}

func (o *Orchestrator) key(logical string) string {
	return domain.CacheKey(o.userID, logical)
}

// Hydrate наполняет состояние из локального кэша до первого цикла:
// единственный способ пережить рестарт без сети. Отсутствующие и
// битые ключи остаются на встроенных дефолтах.
func (o *Orchestrator) Hydrate(ctx context.Context) state.Snapshot {
	cfg := defaults.Config()
	o.cache.GetJSON(ctx, o.key(domain.CacheKeyConfig), &cfg)
	o.store.Apply(state.KindConfig, cfg)

	modules := defaults.Modules()
	o.cache.GetJSON(ctx, o.key(domain.CacheKeyModules), &modules)
	o.store.Apply(state.KindModules, modules)

	materials := defaults.Materials()
	o.cache.GetJSON(ctx, o.key(domain.CacheKeyMaterials), &materials)
	o.store.Apply(state.KindMaterials, materials)

	streams := defaults.Streams()
	o.cache.GetJSON(ctx, o.key(domain.CacheKeyStreams), &streams)
	o.store.Apply(state.KindStreams, streams)

	events := defaults.Events()
	o.cache.GetJSON(ctx, o.key(domain.CacheKeyEvents), &events)
	o.store.Apply(state.KindEvents, events)

	scenarios := defaults.Scenarios()
	o.cache.GetJSON(ctx, o.key(domain.CacheKeyScenarios), &scenarios)
	o.store.Apply(state.KindScenarios, scenarios)

	var users []domain.UserProgress
	o.cache.GetJSON(ctx, o.key(domain.CacheKeyUsers), &users)
	o.store.Apply(state.KindUsers, users)

	progress := domain.NewUserProgress(o.userID, o.username)
	o.cache.GetJSON(ctx, o.key(domain.CacheKeyProgress), &progress)
	progress.Level = domain.LevelForXP(progress.XP)
	o.store.Apply(state.KindCurrentUser, progress)

	var feed []domain.AppNotification
	o.cache.GetJSON(ctx, o.key(domain.CacheKeyNotifications), &feed)
	o.store.Apply(state.KindNotifications, feed)

	var clearedAt int64
	o.cache.GetJSON(ctx, o.key("notifications_cleared_at"), &clearedAt)

	o.mu.Lock()
	o.prevFeedLen = len(feed)
	o.clearedAt = clearedAt
	o.mu.Unlock()

	return o.store.Snapshot()
}

// Run выполняет стартовый цикл и крутит опрос до отмены контекста.
// Медленный цикл не задерживает таймер: каждый цикл уходит в свою
// горутину.
func (o *Orchestrator) Run(ctx context.Context) {
	o.RunCycle(ctx)
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.debouncer.Stop()
			return
		case <-ticker.C:
			go o.RunCycle(ctx)
		case <-o.trigger:
			go o.RunCycle(ctx)
		}
	}
}

// TriggerSync запрашивает внеочередной цикл (событие изменения из
// удалённого хранилища).
func (o *Orchestrator) TriggerSync() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// RunCycle прогоняет стадии в фиксированном порядке. Стадии не
// связаны исключениями: неудавшаяся стадия оставляет прежнее значение
// и не мешает следующим.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	start := o.now()
	o.syncConfig(ctx)
	o.syncNotifications(ctx)
	o.syncContent(ctx)
	o.syncUsers(ctx)
	o.syncCurrentUser(ctx)
	metrics.SyncCyclesTotal.Inc()
	metrics.SyncCycleSeconds.Observe(time.Since(start).Seconds())
}

func (o *Orchestrator) syncConfig(ctx context.Context) {
	records, ok := o.remote.FetchCollection(ctx, domain.CollectionSettings)
	if !ok {
		metrics.SyncStageErrors.WithLabelValues("config").Inc()
		return
	}
	var cfg domain.AppConfig
	if len(records) == 0 {
		cfg = defaults.Config()
		o.seedOnce(ctx, domain.CollectionSettings, func(c context.Context) {
			fields := entityFields(cfg)
			if fields == nil {
				return
			}
			fields["id"] = "app"
			o.remote.Upsert(c, domain.CollectionSettings, "id", "app", fields)
		})
	} else {
		if err := json.Unmarshal(records[0].Fields, &cfg); err != nil {
			o.log.Warn().Err(err).Bytes("raw", records[0].Fields).Msg("sync: конфигурация не декодируется, остаёмся на прежней")
			metrics.SyncStageErrors.WithLabelValues("config").Inc()
			return
		}
	}
	if o.store.Apply(state.KindConfig, cfg) {
		o.cache.SetJSON(ctx, o.key(domain.CacheKeyConfig), cfg)
	}
}

func (o *Orchestrator) syncNotifications(ctx context.Context) {
	records, ok := o.remote.FetchCollection(ctx, domain.CollectionNotifications)
	if !ok {
		metrics.SyncStageErrors.WithLabelValues("notifications").Inc()
		return
	}
	feed := decodeList[domain.AppNotification](records, domain.CollectionNotifications, o.log)

	o.mu.Lock()
	clearedAt := o.clearedAt
	prevLen := o.prevFeedLen
	o.mu.Unlock()

	if clearedAt > 0 {
		filtered := feed[:0:0]
		for _, n := range feed {
			if n.Date > clearedAt {
				filtered = append(filtered, n)
			}
		}
		feed = filtered
	}
	sort.SliceStable(feed, func(i, j int) bool { return feed[i].Date < feed[j].Date })

	if o.store.Apply(state.KindNotifications, feed) {
		o.cache.SetJSON(ctx, o.key(domain.CacheKeyNotifications), feed)
	}

	if len(feed) > prevLen {
		newest := feed[len(feed)-1]
		o.maybeToast(ctx, newest)
	}

	o.mu.Lock()
	o.prevFeedLen = len(feed)
	o.mu.Unlock()
}

// maybeToast показывает тост только для действительно свежего
// уведомления: рост ленты уже установлен вызывающей стороной, здесь
// проверяется окно свежести и адресация. Без окна каждый опрос
// после офлайна превращал бы историю в шквал тостов.
func (o *Orchestrator) maybeToast(ctx context.Context, n domain.AppNotification) {
	if o.nowMillis()-n.Date > o.opts.ToastWindow.Milliseconds() {
		return
	}
	current := o.store.Snapshot().CurrentUser
	if !n.VisibleTo(current) || !current.Prefs.Enabled {
		return
	}
	if err := o.toasts.Toast(ctx, o.chatID, n.Type, n.Text, n.Link); err != nil {
		o.log.Warn().Err(err).Msg("sync: тост не доставлен")
		return
	}
	metrics.ToastsTotal.Inc()
}

func (o *Orchestrator) syncContent(ctx context.Context) {
	syncCollection(o, ctx, domain.CollectionModules, state.KindModules, domain.CacheKeyModules, defaults.Modules)
	syncCollection(o, ctx, domain.CollectionMaterials, state.KindMaterials, domain.CacheKeyMaterials, defaults.Materials)
	syncCollection(o, ctx, domain.CollectionStreams, state.KindStreams, domain.CacheKeyStreams, defaults.Streams)
	syncCollection(o, ctx, domain.CollectionEvents, state.KindEvents, domain.CacheKeyEvents, defaults.Events)
	syncCollection(o, ctx, domain.CollectionScenarios, state.KindScenarios, domain.CacheKeyScenarios, defaults.Scenarios)
}

// syncCollection тянет одну коллекцию контента; пустая удалённая
// коллекция засевается дефолтами ровно один раз, и дефолты идут в
// дело этим же циклом, чтобы наверху не мелькала пустота. Сбой
// выборки оставляет прежнее значение и не трогает замок засева.
func syncCollection[T any](o *Orchestrator, ctx context.Context, collection string, kind state.Kind, cacheKey string, defaultSet func() []T) {
	records, ok := o.remote.FetchCollection(ctx, collection)
	if !ok {
		metrics.SyncStageErrors.WithLabelValues("content").Inc()
		return
	}
	var items []T
	if len(records) == 0 {
		items = defaultSet()
		o.seedOnce(ctx, collection, func(c context.Context) {
			o.pushCollection(c, collection, items)
		})
	} else {
		items = decodeList[T](records, collection, o.log)
	}
	if o.store.Apply(kind, items) {
		o.cache.SetJSON(ctx, o.key(cacheKey), items)
	}
}

// seedOnce выполняет засев не более одного раза: в памяти сессии и
// межсессионно через замок в кэше. Непустая коллекция сюда не
// попадает и дефолтами не перезаписывается.
func (o *Orchestrator) seedOnce(ctx context.Context, collection string, seed func(context.Context)) {
	o.mu.Lock()
	if o.seeded[collection] {
		o.mu.Unlock()
		return
	}
	o.seeded[collection] = true
	o.mu.Unlock()

	err := o.cache.Once(ctx, "academy:seed:"+collection, o.opts.SeedTTL, func() error {
		seed(ctx)
		metrics.SeedWritesTotal.WithLabelValues(collection).Inc()
		o.log.Info().Str("collection", collection).Msg("sync: пустая коллекция засеяна дефолтами")
		return nil
	})
	if err != nil {
		o.log.Warn().Err(err).Str("collection", collection).Msg("sync: замок засева недоступен")
	}
}

func (o *Orchestrator) syncUsers(ctx context.Context) {
	records, ok := o.remote.FetchCollection(ctx, domain.CollectionProfiles)
	if !ok {
		metrics.SyncStageErrors.WithLabelValues("users").Inc()
		return
	}
	if len(records) == 0 {
		return
	}
	users := decodeUsers(records, o.log)
	if o.store.Apply(state.KindUsers, users) {
		o.cache.SetJSON(ctx, o.key(domain.CacheKeyUsers), users)
	}
}

func (o *Orchestrator) syncCurrentUser(ctx context.Context) {
	local := o.store.Snapshot().CurrentUser
	// Сбой поиска нельзя путать с «профиля нет»: слепой первый-вход
	// после сбоя затёр бы удалённый профиль локальным состоянием.
	records, ok := o.remote.Query(ctx, domain.CollectionProfiles, "telegram_id", strconv.FormatInt(o.userID, 10))
	if !ok {
		metrics.SyncStageErrors.WithLabelValues("current_user").Inc()
		return
	}
	remotes := decodeUsers(records, o.log)
	if len(remotes) == 0 {
		// Первый вход: удалённого профиля ещё нет, создаём его из
		// локального состояния.
		o.pushCurrentUser(ctx)
		return
	}
	decision := resolve.Resolve(local, remotes[0], o.nowMillis())
	if decision.PushRemote {
		fields := profileFields(decision.Merged)
		recordID := o.remote.Upsert(ctx, domain.CollectionProfiles, "telegram_id", strconv.FormatInt(o.userID, 10), fields)
		if recordID != "" {
			decision.Merged.RecordID = recordID
		}
	}
	if o.store.Apply(state.KindCurrentUser, decision.Merged) {
		o.cache.SetJSON(ctx, o.key(domain.CacheKeyProgress), decision.Merged)
	}
}

// pushCurrentUser пишет текущий прогресс в удалённое хранилище,
// штампуя его временем записи. Неудача не ретраится: следующий цикл
// или следующее отложенное сохранение повторит запись, пока память и
// хранилище расходятся.
func (o *Orchestrator) pushCurrentUser(ctx context.Context) {
	p := o.store.Snapshot().CurrentUser
	p.LastSyncTimestamp = o.nowMillis()
	p.Level = domain.LevelForXP(p.XP)
	recordID := o.remote.Upsert(ctx, domain.CollectionProfiles, "telegram_id", strconv.FormatInt(p.TelegramID, 10), profileFields(p))
	if recordID == "" {
		o.log.Warn().Msg("sync: прогресс не записан в удалённое хранилище")
		return
	}
	p.RecordID = recordID
	if o.store.Apply(state.KindCurrentUser, p) {
		o.cache.SetJSON(ctx, o.key(domain.CacheKeyProgress), p)
	}
}

// profileFields разворачивает прогресс в поля записи профиля.
func profileFields(p domain.UserProgress) map[string]any {
	return entityFields(p)
}

// MutateCurrentUser применяет локальное изменение прогресса: кэш
// пишется сразу, запись в удалённое хранилище откладывается до тихого
// периода (серия быстрых действий сливается в одну запись). Правка
// проходит через domain.ApplyUpdate: опыт начисляется на сервере за
// впервые зачтённые уроки и задания, присланные клиентом значения
// опыта, уровня, роли и бана игнорируются.
func (o *Orchestrator) MutateCurrentUser(ctx context.Context, p domain.UserProgress) {
	current := o.store.Snapshot().CurrentUser
	merged := domain.ApplyUpdate(current, p, o.now())
	merged.TelegramID = o.userID
	merged.LastSyncTimestamp = o.nowMillis()
	if !o.store.Apply(state.KindCurrentUser, merged) {
		return
	}
	o.cache.SetJSON(ctx, o.key(domain.CacheKeyProgress), merged)
	o.debouncer.Trigger(func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		o.pushCurrentUser(pushCtx)
	})
}

// MutateUsers применяет админскую правку ростера (бан, смена роли):
// состояние и кэш — сразу, изменённые профили дописываются в
// удалённое хранилище по одному.
func (o *Orchestrator) MutateUsers(ctx context.Context, users []domain.UserProgress) bool {
	prev := o.store.Snapshot().Users
	prevByID := make(map[int64]domain.UserProgress, len(prev))
	for _, u := range prev {
		prevByID[u.TelegramID] = u
	}

	for i := range users {
		users[i].Level = domain.LevelForXP(users[i].XP)
	}
	if !o.store.Apply(state.KindUsers, users) {
		return false
	}
	o.cache.SetJSON(ctx, o.key(domain.CacheKeyUsers), users)

	now := o.nowMillis()
	for _, u := range users {
		if old, seen := prevByID[u.TelegramID]; seen && reflect.DeepEqual(old, u) {
			continue
		}
		u.LastSyncTimestamp = now
		if o.remote.Upsert(ctx, domain.CollectionProfiles, "telegram_id", strconv.FormatInt(u.TelegramID, 10), profileFields(u)) == "" {
			o.log.Warn().Int64("telegram_id", u.TelegramID).Msg("sync: профиль из ростера не сохранён")
		}
	}
	return true
}

// MutateContent применяет админскую правку коллекции контента: кэш —
// сразу, удалённое хранилище — немедленной записью всей коллекции.
func (o *Orchestrator) MutateContent(ctx context.Context, kind state.Kind, value any) bool {
	collection, ok := collectionForKind(kind)
	if !ok {
		o.log.Warn().Str("kind", kind).Msg("sync: неизвестный раздел контента")
		return false
	}
	if !o.store.Apply(kind, value) {
		return false
	}
	o.cache.SetJSON(ctx, o.key(kind), value)
	o.pushCollection(ctx, collection, value)
	return true
}

// MutateConfig сохраняет глобальную конфигурацию: следующий опрос
// разнесёт её по всем клиентам целиком.
func (o *Orchestrator) MutateConfig(ctx context.Context, cfg domain.AppConfig) bool {
	if !o.store.Apply(state.KindConfig, cfg) {
		return false
	}
	o.cache.SetJSON(ctx, o.key(domain.CacheKeyConfig), cfg)
	fields := entityFields(cfg)
	if fields != nil {
		fields["id"] = "app"
		o.remote.Upsert(ctx, domain.CollectionSettings, "id", "app", fields)
	}
	return true
}

// ClearNotifications очищает видимую ленту для этого пользователя:
// локально сразу, для удалённой ленты ставится отметка времени, ниже
// которой уведомления этому пользователю больше не показываются.
// Глобального удаления из общей ленты не происходит.
func (o *Orchestrator) ClearNotifications(ctx context.Context) {
	clearedAt := o.nowMillis()
	o.mu.Lock()
	o.clearedAt = clearedAt
	o.prevFeedLen = 0
	o.mu.Unlock()

	o.cache.SetJSON(ctx, o.key("notifications_cleared_at"), clearedAt)
	if o.store.Apply(state.KindNotifications, []domain.AppNotification(nil)) {
		o.cache.SetJSON(ctx, o.key(domain.CacheKeyNotifications), []domain.AppNotification(nil))
	}
}

// pushCollection пишет все записи коллекции в удалённое хранилище.
// Записи независимы: атомарности между ними нет.
func (o *Orchestrator) pushCollection(ctx context.Context, collection string, items any) {
	raw, err := json.Marshal(items)
	if err != nil {
		o.log.Warn().Err(err).Str("collection", collection).Msg("sync: коллекция не кодируется")
		return
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil {
		o.log.Warn().Err(err).Str("collection", collection).Msg("sync: коллекция не разворачивается в записи")
		return
	}
	for _, fields := range list {
		id, _ := fields["id"].(string)
		if id == "" {
			id = uuid.NewString()
			fields["id"] = id
		}
		if o.remote.Upsert(ctx, collection, "id", id, fields) == "" {
			o.log.Warn().Str("collection", collection).Str("id", id).Msg("sync: запись коллекции не сохранена")
		}
	}
}

func collectionForKind(kind state.Kind) (string, bool) {
	switch kind {
	case state.KindModules:
		return domain.CollectionModules, true
	case state.KindMaterials:
		return domain.CollectionMaterials, true
	case state.KindStreams:
		return domain.CollectionStreams, true
	case state.KindEvents:
		return domain.CollectionEvents, true
	case state.KindScenarios:
		return domain.CollectionScenarios, true
	default:
		return "", false
	}
}
