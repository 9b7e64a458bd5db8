package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-academy-bot/internal/domain"
	"tg-academy-bot/internal/usecase/state"
)

// Session живая сессия мини-аппа: контейнер состояния и оркестратор
// с собственным циклом опроса.
type Session struct {
	Orch  *Orchestrator
	Store *state.Store

	cancel   context.CancelFunc
	lastSeen time.Time
}

// Registry владеет сессиями пользователей: создаёт оркестратор на
// первый запрос, гасит простаивающие сессии, разносит события
// изменений по живым.
type Registry struct {
	remote domain.RemoteStore
	cache  domain.LocalCache
	toasts domain.ToastSink
	log    zerolog.Logger
	opts   Options
	expiry time.Duration

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewRegistry создаёт реестр сессий.
func NewRegistry(remote domain.RemoteStore, cache domain.LocalCache, toasts domain.ToastSink, log zerolog.Logger, opts Options, expiry time.Duration) *Registry {
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &Registry{
		remote:   remote,
		cache:    cache,
		toasts:   toasts,
		log:      log,
		opts:     opts,
		expiry:   expiry,
		sessions: map[int64]*Session{},
	}
}

// Acquire возвращает сессию пользователя, создавая её при первом
// обращении: состояние наполняется из кэша синхронно, цикл опроса
// стартует в фоне.
func (r *Registry) Acquire(ctx context.Context, userID int64, username string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		s.lastSeen = time.Now()
		return s
	}

	store := state.New()
	orch := New(r.remote, r.cache, store, r.toasts, r.log, r.opts, userID, username)
	orch.Hydrate(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	go orch.Run(runCtx)

	s := &Session{Orch: orch, Store: store, cancel: cancel, lastSeen: time.Now()}
	r.sessions[userID] = s
	r.log.Info().Int64("user", userID).Msg("registry: сессия создана")
	return s
}

// TriggerAll запрашивает внеочередной цикл у всех живых сессий.
func (r *Registry) TriggerAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Orch.TriggerSync()
	}
}

// Sweep гасит сессии, простаивающие дольше срока жизни. Запускается
// периодически владельцем реестра.
func (r *Registry) Sweep() {
	cutoff := time.Now().Add(-r.expiry)
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			s.cancel()
			delete(r.sessions, userID)
			r.log.Info().Int64("user", userID).Msg("registry: сессия погашена по простою")
		}
	}
}

// Close гасит все сессии.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, s := range r.sessions {
		s.cancel()
		delete(r.sessions, userID)
	}
}
