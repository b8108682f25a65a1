// Package bookings routes status changes from external booking workflows
// to the chat thread that carries the booking reference.
package bookings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/umar/agency-chat/internal/models"
)

var (
	ErrNoThread      = errors.New("no chat between booking participants")
	ErrInvalidUpdate = errors.New("invalid booking status update")
)

type StatusUpdate struct {
	AgencyID     string               `json:"agency_id"`
	FreelancerID string               `json:"freelancer_id"`
	BookingID    string               `json:"booking_id"`
	Status       models.BookingStatus `json:"status"`
}

func (u StatusUpdate) Validate() error {
	if u.AgencyID == "" || u.FreelancerID == "" || u.BookingID == "" {
		return fmt.Errorf("%w: agency_id, freelancer_id and booking_id are required", ErrInvalidUpdate)
	}
	if !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidUpdate, u.Status)
	}
	return nil
}

// ChatStore is the part of the store the router needs.
type ChatStore interface {
	FindChatForBooking(agencyID, freelancerID string) (models.Chat, bool)
	UpdateBookingRefStatus(chatID, bookingID string, status models.BookingStatus) error
}

type Router struct {
	store ChatStore
}

func NewRouter(st ChatStore) *Router {
	return &Router{store: st}
}

// Apply finds the participants' chat without creating one and updates the
// booking reference in it. It returns the chat id.
func (r *Router) Apply(u StatusUpdate) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	chat, ok := r.store.FindChatForBooking(u.AgencyID, u.FreelancerID)
	if !ok {
		return "", fmt.Errorf("booking %s: %w", u.BookingID, ErrNoThread)
	}
	if err := r.store.UpdateBookingRefStatus(chat.ID, u.BookingID, u.Status); err != nil {
		return "", err
	}
	slog.Info("booking status routed", "chat_id", chat.ID, "booking_id", u.BookingID, "status", u.Status)
	return chat.ID, nil
}

// HandlePayload decodes a JSON StatusUpdate, as published on the booking
// event channel, and applies it.
func (r *Router) HandlePayload(data []byte) error {
	var u StatusUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	_, err := r.Apply(u)
	return err
}
