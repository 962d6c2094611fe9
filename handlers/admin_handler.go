package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"poimap-server/events"
	"poimap-server/middleware"
	"poimap-server/models"
	"poimap-server/services"
	"poimap-server/utils/errors"
)

const sseKeepAlive = 25 * time.Second

var ErrEventsUnavailable = errors.NewAPIError("EVENTS_UNAVAILABLE", "Event stream requires Redis", http.StatusServiceUnavailable)

// EventSource is implemented by events.RedisBus.
type EventSource interface {
	Subscribe(ctx context.Context) <-chan events.Event
}

type AdminHandler struct {
	adminService *services.AdminService
	userService  *services.UserService
	events       EventSource
	logger       *zap.Logger
}

func NewAdminHandler(adminService *services.AdminService, userService *services.UserService, source EventSource, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{adminService: adminService, userService: userService, events: source, logger: logger}
}

func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Stats(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	points, err := h.adminService.PendingQueue(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"points": points, "count": len(points)})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	role, err := models.ParseRole(input.Role)
	if err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	user, err := h.userService.SetRole(r.Context(), mux.Vars(r)["id"], role)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.adminService.Export(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	filename := fmt.Sprintf("poimap-%s.json", snap.ExportedAt.Format("20060102-150405"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	middleware.WriteJSON(w, http.StatusOK, snap)
}

// Import serves POST /admin/import?mode=merge|replace with a snapshot body.
func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	snap, err := services.DecodeSnapshot(data)
	if err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	mode := services.ImportMode(r.URL.Query().Get("mode"))
	report, err := h.adminService.Import(r.Context(), snap, mode)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// StreamEvents relays the event bus as server-sent events until the client goes away.
func (h *AdminHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		middleware.WriteError(w, ErrEventsUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteError(w, errors.ErrInternal.WithDetails("streaming unsupported"))
		return
	}

	ctx := r.Context()
	stream := h.events.Subscribe(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case e, ok := <-stream:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Warn("failed to encode event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
			flusher.Flush()
		}
	}
}
