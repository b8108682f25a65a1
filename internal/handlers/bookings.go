package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/umar/agency-chat/internal/bookings"
)

// BookingWebhook accepts status changes from an external booking workflow.
// An empty secret disables the endpoint.
func BookingWebhook(router *bookings.Router, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Webhook-Secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}

		var u bookings.StatusUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		chatID, err := router.Apply(u)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"chat_id": chatID, "status": string(u.Status)})
	}
}
