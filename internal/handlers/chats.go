package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/umar/agency-chat/internal/auth"
	"github.com/umar/agency-chat/internal/bookings"
	"github.com/umar/agency-chat/internal/models"
	"github.com/umar/agency-chat/internal/store"
)

type chatSummary struct {
	ID                     string          `json:"id"`
	AgencyID               string          `json:"agency_id"`
	AgencyName             string          `json:"agency_name"`
	AgencyProfileImage     string          `json:"agency_profile_image,omitempty"`
	FreelancerID           string          `json:"freelancer_id"`
	FreelancerName         string          `json:"freelancer_name"`
	FreelancerProfileImage string          `json:"freelancer_profile_image,omitempty"`
	LastMessageAt          time.Time       `json:"last_message_at"`
	CreatedAt              time.Time       `json:"created_at"`
	UnreadCount            int             `json:"unread_count"`
	LastMessage            *models.Message `json:"last_message,omitempty"`
}

func summarize(c models.Chat, side models.SenderType) chatSummary {
	s := chatSummary{
		ID:                     c.ID,
		AgencyID:               c.AgencyID,
		AgencyName:             c.AgencyName,
		AgencyProfileImage:     c.AgencyProfileImage,
		FreelancerID:           c.FreelancerID,
		FreelancerName:         c.FreelancerName,
		FreelancerProfileImage: c.FreelancerProfileImage,
		LastMessageAt:          c.LastMessageAt,
		CreatedAt:              c.CreatedAt,
		UnreadCount:            c.UnreadFor(side),
	}
	if m, ok := c.LastMessage(); ok {
		s.LastMessage = &m
	}
	return s
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

// sessionChat loads the chat named in the route and checks that the session
// takes part in it. On failure the response is already written.
func sessionChat(w http.ResponseWriter, r *http.Request, st *store.Store) (models.Chat, bool) {
	id := identity(r)
	c, ok := st.GetChatByID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "chat not found")
		return models.Chat{}, false
	}
	if !c.HasParticipant(id.UserID, id.UserType) {
		writeError(w, http.StatusForbidden, "not a participant of this chat")
		return models.Chat{}, false
	}
	return c, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrChatNotFound):
		writeError(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, store.ErrBookingRefNotFound):
		writeError(w, http.StatusNotFound, "booking reference not found")
	case errors.Is(err, bookings.ErrNoThread):
		writeError(w, http.StatusNotFound, "no chat between booking participants")
	case errors.Is(err, store.ErrInvalidMessage), errors.Is(err, bookings.ErrInvalidUpdate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("store operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func ListChats(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)
		var chats []models.Chat
		if id.UserType == models.SenderAgency {
			chats = st.GetChatsForAgency(id.UserID)
		} else {
			chats = st.GetChatsForFreelancer(id.UserID)
		}

		out := make([]chatSummary, 0, len(chats))
		for _, c := range chats {
			out = append(out, summarize(c, id.UserType))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func StartChat(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)

		var req struct {
			Agency     models.Participant `json:"agency"`
			Freelancer models.Participant `json:"freelancer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Agency.ID = strings.TrimSpace(req.Agency.ID)
		req.Freelancer.ID = strings.TrimSpace(req.Freelancer.ID)
		if req.Agency.ID == "" || req.Freelancer.ID == "" {
			writeError(w, http.StatusBadRequest, "agency.id and freelancer.id are required")
			return
		}

		own := req.Agency
		if id.UserType == models.SenderFreelancer {
			own = req.Freelancer
		}
		if own.ID != id.UserID {
			writeError(w, http.StatusForbidden, "session must be one of the chat participants")
			return
		}

		c, created := st.GetOrCreateChat(req.Agency, req.Freelancer)
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, c)
	}
}

func GetChat(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionChat(w, r, st)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func MarkChatRead(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionChat(w, r, st)
		if !ok {
			return
		}
		n := st.MarkChatAsRead(c.ID, identity(r).UserType)
		writeJSON(w, http.StatusOK, map[string]int{"marked": n})
	}
}

func MarkAllRead(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)
		n := st.MarkAllMessagesAsReadFor(id.UserID, id.UserType)
		writeJSON(w, http.StatusOK, map[string]int{"marked": n})
	}
}

func UnreadCount(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)
		writeJSON(w, http.StatusOK, map[string]int{
			"count": st.GetUnreadCount(id.UserID, id.UserType),
		})
	}
}
