package handlers

import (
	"log/slog"
	"net/http"

	"github.com/umar/agency-chat/internal/chat"
)

// OnlineSessions lists the online sessions the caller shares a chat with.
func OnlineSessions(hub *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := hub.OnlineCounterparts(r.Context(), identity(r))
		if err != nil {
			slog.Error("failed to list online sessions", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"online": keys})
	}
}
