package karma

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the karma API. Reads are public; awarding karma is reserved
// for trusted backend callers behind auth.
func (h *Handler) Routes(authMiddleware, serviceOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(authMiddleware, serviceOnly).Post("/transactions", h.Award)

	r.Get("/users/{id}/karma", h.GetUserKarma)
	r.Get("/users/{id}/actions", h.GetUserActions)
	r.Get("/users/{id}/actions/today", h.GetUserActionsToday)
	r.Get("/leaderboard", h.Leaderboard)

	return r
}
