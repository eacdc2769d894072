package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	gwebsocket "github.com/gorilla/websocket" // Alias to avoid name conflict

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/compose"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/websocket"
)

// maxSwitchBody is far more than "OFF" needs.
const maxSwitchBody = 64

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // previews are served from anywhere on the LAN
}

// Sign is the part of the controller the control surface drives.
type Sign interface {
	Notify(ctx context.Context, text string) (data.Notification, error)
	SetPower(ctx context.Context, on bool) error
	PoweredOn() bool
	Notifications() []data.Notification
	Now() time.Time
}

type APIHandler struct {
	sign   Sign
	hub    *websocket.Hub // nil disables /ws
	logger *slog.Logger
}

func NewAPIHandler(sign Sign, hub *websocket.Hub, logger *slog.Logger) *APIHandler {
	return &APIHandler{sign: sign, hub: hub, logger: logger}
}

// HandleNotify adds the "message" query parameter as a notification. The
// acknowledgement is the same whether or not a message was given, and
// whether or not the sign could be updated.
func (h *APIHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Has("message") {
		// The redraw outlives the request if the client hangs up.
		ctx := context.WithoutCancel(r.Context())
		n, err := h.sign.Notify(ctx, query.Get("message"))
		if err != nil {
			h.logger.Warn("notification stored but sign update failed", "id", n.ID, "error", err)
		} else {
			h.logger.Info("notification added", "id", n.ID, "text", n.Text)
		}
	}

	writeJSON(w, map[string]bool{"test": true})
}

// HandleSwitch sets the power state from a POST body of exactly ON or OFF
// and always answers with the current state.
func (h *APIHandler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSwitchBody))
		if err != nil {
			h.logger.Warn("reading switch body", "error", err)
		}
		defer r.Body.Close()

		var on, recognized bool
		switch {
		case bytes.Equal(body, []byte("ON")):
			on, recognized = true, true
		case bytes.Equal(body, []byte("OFF")):
			on, recognized = false, true
		}
		if recognized {
			if err := h.sign.SetPower(context.WithoutCancel(r.Context()), on); err != nil {
				h.logger.Warn("power changed but sign update failed", "on", on, "error", err)
			}
		}
	}

	state := "OFF"
	if h.sign.PoweredOn() {
		state = "ON"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, state)
}

type notificationView struct {
	data.Notification
	AgeSeconds int64 `json:"age_seconds"`
}

// HandleNotifications lists the stored notifications, newest first.
func (h *APIHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	now := h.sign.Now()
	notifications := h.sign.Notifications()
	views := make([]notificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, notificationView{Notification: n, AgeSeconds: compose.AgeSeconds(n.Age(now))})
	}
	writeJSON(w, views)
}

// HandleWebSocket upgrades the connection and serves it as a preview client
// until it disconnects.
func (h *APIHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	h.logger.Info("preview connected", "remote", conn.RemoteAddr().String())
	websocket.NewClient(h.hub, conn).Serve()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
