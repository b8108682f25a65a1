package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/umar/agency-chat/internal/models"
	"github.com/umar/agency-chat/internal/store"
)

func SendMessage(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionChat(w, r, st)
		if !ok {
			return
		}

		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		msg, err := st.SendMessage(c.ID, identity(r).Sender(), req.Text)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func SendBookingRef(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionChat(w, r, st)
		if !ok {
			return
		}

		var req struct {
			Text       string            `json:"text"`
			BookingRef models.BookingRef `json:"booking_ref"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !req.BookingRef.Type.Valid() {
			writeError(w, http.StatusBadRequest, "booking_ref.type must be option or fix")
			return
		}
		if !req.BookingRef.Status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown booking_ref.status")
			return
		}

		msg, err := st.SendBookingRef(c.ID, identity(r).Sender(), req.Text, req.BookingRef)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func UpdateBookingStatus(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionChat(w, r, st)
		if !ok {
			return
		}

		var req struct {
			Status models.BookingStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !req.Status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}

		if err := st.UpdateBookingRefStatus(c.ID, mux.Vars(r)["bookingID"], req.Status); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
	}
}
