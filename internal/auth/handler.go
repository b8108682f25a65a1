package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/umar/agency-chat/internal/models"
)

type sessionRequest struct {
	UserID   string `json:"user_id"`
	UserType string `json:"user_type"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// SessionHandler starts a session for the declared participant. There are no
// credentials; the token only binds later requests to one side of a chat.
func SessionHandler(jwtSecret string, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.UserID = strings.TrimSpace(req.UserID)
		req.Name = strings.TrimSpace(req.Name)
		userType := models.SenderType(req.UserType)

		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if !userType.Valid() {
			writeError(w, http.StatusBadRequest, "user_type must be agency or freelancer")
			return
		}

		id := Identity{UserID: req.UserID, UserType: userType, Name: req.Name}
		token, err := GenerateToken(id, jwtSecret, ttl)
		if err != nil {
			slog.Error("failed to generate token", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, sessionResponse{Token: token, Identity: id})
	}
}
