package karma

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/karmahub/karma-api/internal/pkg/response"
	"github.com/karmahub/karma-api/internal/pkg/validator"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

type Handler struct {
	svc      Service
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(svc Service, hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		svc: svc,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed || allowed == "*" {
						return true
					}
				}
				return false
			},
		},
	}
}

// Award handles POST /transactions
func (h *Handler) Award(w http.ResponseWriter, r *http.Request) {
	var req AwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	tx, err := h.svc.Award(r.Context(), AwardInput{
		User: UserRef{
			ID:          req.User.ID,
			Username:    req.User.Username,
			DisplayName: req.User.DisplayName,
			AvatarURL:   req.User.AvatarURL,
		},
		Points:     req.Points,
		ActionType: ActionType(req.ActionType),
		Domain:     req.Domain,
		Metadata:   Metadata(req.Metadata),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, tx)
}

// GetUserKarma handles GET /users/{id}/karma
func (h *Handler) GetUserKarma(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	domain := r.URL.Query().Get("domain")

	dates, err := parseDateRange(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var total float64
	if domain != "" {
		total, err = h.svc.DomainKarma(r.Context(), userID, domain, dates)
	} else {
		total, err = h.svc.TotalKarma(r.Context(), userID, dates)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, KarmaTotalResponse{UserID: userID, Domain: domain, Total: total})
}

// GetUserActions handles GET /users/{id}/actions
func (h *Handler) GetUserActions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	domain := r.URL.Query().Get("domain")

	dates, err := parseDateRange(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var actions []Transaction
	if domain != "" {
		actions, err = h.svc.HistoryByDomain(r.Context(), userID, domain, dates)
	} else {
		actions, err = h.svc.History(r.Context(), userID, dates)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ActionsResponse{UserID: userID, Count: len(actions), Actions: actions})
}

// GetUserActionsToday handles GET /users/{id}/actions/today
func (h *Handler) GetUserActionsToday(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	actionType := r.URL.Query().Get("action_type")
	if actionType == "" {
		response.BadRequest(w, "action_type query parameter is required")
		return
	}

	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			response.BadRequest(w, "date must be RFC3339 or YYYY-MM-DD")
			return
		}
		day = parsed
	}

	actions, err := h.svc.ActionsToday(r.Context(), userID, ActionType(actionType), day)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ActionsResponse{UserID: userID, Count: len(actions), Actions: actions})
}

// Leaderboard handles GET /leaderboard
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	totals, err := h.svc.Leaderboard(r.Context(), limit, r.URL.Query().Get("domain"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, totals)
}

// WebSocket handles GET /ws/feed, streaming awarded transactions
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Connection{
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.hub.Register(client)

	go h.wsReader(client)
	go h.wsWriter(client)
}

// wsReader drains the connection; the feed is one-way so inbound frames are
// only read to detect disconnects and answer pings.
func (h *Handler) wsReader(client *Connection) {
	defer func() {
		h.hub.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("WebSocket read error")
			}
			break
		}
	}
}

func (h *Handler) wsWriter(client *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAction):
		response.BadRequest(w, "unknown action type")
	case errors.Is(err, ErrDailyLimitReached):
		response.Conflict(w, "daily limit reached for this action")
	case errors.Is(err, ErrStoreUnavailable):
		response.ServiceUnavailable(w, "karma store unavailable")
	default:
		response.InternalError(w)
	}
}

func parseDateRange(r *http.Request) (DateRange, error) {
	var dates DateRange

	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return dates, errors.New("start must be RFC3339 or YYYY-MM-DD")
		}
		dates.Start = &parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return dates, errors.New("end must be RFC3339 or YYYY-MM-DD")
		}
		dates.End = &parsed
	}

	return dates, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
