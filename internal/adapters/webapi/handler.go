package webapi

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tg-academy-bot/internal/domain"
	httpinfra "tg-academy-bot/internal/infra/http"
	"tg-academy-bot/internal/usecase/broadcast"
	syncuc "tg-academy-bot/internal/usecase/sync"
	"tg-academy-bot/internal/usecase/state"
)

// Handler обслуживает HTTP API мини-аппа.
type Handler struct {
	registry  *syncuc.Registry
	broadcast *broadcast.Service
	remote    domain.RemoteStore
	log       zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(registry *syncuc.Registry, broadcastUC *broadcast.Service, remote domain.RemoteStore, log zerolog.Logger) *Handler {
	return &Handler{registry: registry, broadcast: broadcastUC, remote: remote, log: log}
}

// Register вешает маршруты под проверкой initData.
func (h *Handler) Register(r chi.Router, botToken string) {
	r.Group(func(protected chi.Router) {
		protected.Use(httpinfra.WebAppAuthMiddleware(botToken))
		protected.Get("/api/v1/state", h.handleState)
		protected.Put("/api/v1/state/{kind}", h.handleMutate)
		protected.Post("/api/v1/broadcast", h.handleBroadcast)
		protected.Post("/api/v1/admin/ping", h.handlePing)
		protected.Delete("/api/v1/notifications", h.handleClearNotifications)
	})
}

func (h *Handler) session(r *http.Request) (*syncuc.Session, domain.UserProgress, bool) {
	user, ok := httpinfra.UserFromContext(r.Context())
	if !ok {
		return nil, domain.UserProgress{}, false
	}
	s := h.registry.Acquire(r.Context(), user.ID, user.Username)
	return s, s.Store.Snapshot().CurrentUser, true
}

// stateResponse срез состояния для отрисовки: ростер уже отфильтрован
// и отсортирован, лента сужена до адресованных пользователю.
type stateResponse struct {
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

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	s, current, ok := h.session(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "пользователь не определён")
		return
	}
	snap := s.Store.Snapshot()
	resp := stateResponse{
		Version:       snap.Version,
		Config:        snap.Config,
		Modules:       snap.Modules,
		Materials:     snap.Materials,
		Streams:       snap.Streams,
		Events:        snap.Events,
		Scenarios:     snap.Scenarios,
		Users:         s.Store.VisibleUsers(),
		CurrentUser:   current,
		Notifications: domain.FilterNotifications(snap.Notifications, current),
	}
	httpinfra.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMutate(w http.ResponseWriter, r *http.Request) {
	s, current, ok := h.session(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "пользователь не определён")
		return
	}
	defer r.Body.Close()

	kind := chi.URLParam(r, "kind")
	dec := json.NewDecoder(r.Body)

	switch kind {
	case state.KindCurrentUser:
		var p domain.UserProgress
		if err := dec.Decode(&p); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "тело запроса не декодируется")
			return
		}
		// Роль, бан и опыт правятся на сервере: роль и бан — только
		// админом через ростер, опыт начисляется за зачтённые уроки.
		s.Orch.MutateCurrentUser(r.Context(), p)
		httpinfra.WriteJSON(w, http.StatusOK, s.Store.Snapshot().CurrentUser)
		return
	case state.KindConfig:
		if current.Role != domain.RoleAdmin {
			httpinfra.WriteError(w, http.StatusForbidden, "только для администратора")
			return
		}
		var cfg domain.AppConfig
		if err := dec.Decode(&cfg); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "тело запроса не декодируется")
			return
		}
		s.Orch.MutateConfig(r.Context(), cfg)
		httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if current.Role != domain.RoleAdmin {
		httpinfra.WriteError(w, http.StatusForbidden, "только для администратора")
		return
	}
	applied := false
	switch kind {
	case state.KindUsers:
		var v []domain.UserProgress
		if err := dec.Decode(&v); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "тело запроса не декодируется")
			return
		}
		applied = s.Orch.MutateUsers(r.Context(), v)
	case state.KindModules:
		var v []domain.CourseModule
		if err := dec.Decode(&v); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "тело запроса не декодируется")
			return
		}
		applied = s.Orch.MutateContent(r.Context(), kind, v)
	case state.KindMaterials:
		var v []domain.Material
		if err := dec.Decode(&v); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "тело запроса не декодируется")
			return
		}
		applied = s.Orch.MutateContent(r.Context(), kind, v)
	case state.KindStreams:
		var v []domain.Stream
		if err := dec.Decode(&v); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "тело запроса не декодируется")
			return
		}
		applied = s.Orch.MutateContent(r.Context(), kind, v)
	case state.KindEvents:
		var v []domain.Event
		if err := dec.Decode(&v); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "тело запроса не декодируется")
			return
		}
		applied = s.Orch.MutateContent(r.Context(), kind, v)
	case state.KindScenarios:
		var v []domain.Scenario
		if err := dec.Decode(&v); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "тело запроса не декодируется")
			return
		}
		applied = s.Orch.MutateContent(r.Context(), kind, v)
	default:
		httpinfra.WriteError(w, http.StatusNotFound, "неизвестный раздел состояния")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

type broadcastRequest struct {
	Type         domain.NotificationType `json:"type"`
	Text         string                  `json:"text"`
	Link         string                  `json:"link"`
	TargetRole   domain.Role             `json:"target_role"`
	TargetUserID int64                   `json:"target_user_id"`
}

func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	s, current, ok := h.session(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "пользователь не определён")
		return
	}
	if current.Role != domain.RoleAdmin {
		httpinfra.WriteError(w, http.StatusForbidden, "только для администратора")
		return
	}
	defer r.Body.Close()

	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "тело запроса не декодируется")
		return
	}
	n := domain.AppNotification{
		Type:         req.Type,
		Text:         req.Text,
		Link:         req.Link,
		TargetRole:   req.TargetRole,
		TargetUserID: req.TargetUserID,
	}
	sent, err := h.broadcast.Send(r.Context(), n, s.Store.Snapshot().Users)
	if err != nil {
		h.log.Error().Err(err).Msg("webapi: рассылка не отправлена")
		httpinfra.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.registry.TriggerAll()
	httpinfra.WriteJSON(w, http.StatusOK, sent)
}

// handlePing явная проверка соединения: единственное место, где
// ошибка хранилища показывается пользователю.
func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	_, current, ok := h.session(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "пользователь не определён")
		return
	}
	if current.Role != domain.RoleAdmin {
		httpinfra.WriteError(w, http.StatusForbidden, "только для администратора")
		return
	}
	if err := h.remote.Ping(r.Context()); err != nil {
		httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "fail", "error": err.Error()})
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "пользователь не определён")
		return
	}
	s.Orch.ClearNotifications(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
