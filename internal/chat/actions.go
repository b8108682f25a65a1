package chat

import (
	"errors"
	"log/slog"

	"github.com/umar/agency-chat/internal/store"
)

// Frames produced by these actions reach participants through the hub's
// store subscription, not from here.

func HandleSendMessage(c *Client, payload SendMessagePayload) {
	if payload.ChatID == "" || payload.Text == "" {
		sendError(c, "chat_id and text are required", CodeInvalidPayload)
		return
	}
	if !c.participates(payload.ChatID) || !c.allowSend() {
		return
	}

	_, err := c.hub.Store.SendMessage(payload.ChatID, c.Identity.Sender(), payload.Text)
	if err != nil {
		sendStoreError(c, err)
	}
}

func HandleSendBooking(c *Client, payload SendBookingPayload) {
	if payload.ChatID == "" || payload.BookingRef.BookingID == "" {
		sendError(c, "chat_id and booking_ref.booking_id are required", CodeInvalidPayload)
		return
	}
	if !payload.BookingRef.Type.Valid() {
		sendError(c, "booking_ref.type must be option or fix", CodeInvalidPayload)
		return
	}
	if !payload.BookingRef.Status.Valid() {
		sendError(c, "unknown booking_ref.status", CodeInvalidPayload)
		return
	}
	if !c.participates(payload.ChatID) || !c.allowSend() {
		return
	}

	_, err := c.hub.Store.SendBookingRef(payload.ChatID, c.Identity.Sender(), payload.Text, payload.BookingRef)
	if err != nil {
		sendStoreError(c, err)
	}
}

func HandleChatRead(c *Client, payload ChatPayload) {
	if !c.participates(payload.ChatID) {
		return
	}
	c.hub.Store.MarkChatAsRead(payload.ChatID, c.Identity.UserType)
}

func HandleChatReadAll(c *Client) {
	c.hub.Store.MarkAllMessagesAsReadFor(c.Identity.UserID, c.Identity.UserType)
}

func HandleTyping(c *Client, payload ChatPayload, isTyping bool) {
	chat, ok := c.hub.Store.GetChatByID(payload.ChatID)
	if !ok || !chat.HasParticipant(c.Identity.UserID, c.Identity.UserType) {
		return
	}
	c.hub.deliver(participantKeys(chat), TypeTypingUpdate, TypingUpdatePayload{
		ChatID:   chat.ID,
		UserID:   c.Identity.UserID,
		UserType: c.Identity.UserType,
		Name:     c.Identity.Name,
		IsTyping: isTyping,
	}, c.Identity.Key())
}

// participates reports whether the session is a participant of the chat,
// answering the client with an error frame when it is not.
func (c *Client) participates(chatID string) bool {
	chat, ok := c.hub.Store.GetChatByID(chatID)
	if !ok {
		sendError(c, "chat not found", CodeChatNotFound)
		return false
	}
	if !chat.HasParticipant(c.Identity.UserID, c.Identity.UserType) {
		sendError(c, "not a participant of this chat", CodeNotParticipant)
		return false
	}
	return true
}

func (c *Client) allowSend() bool {
	if c.limiter.Allow() {
		return true
	}
	sendError(c, "sending too fast", CodeRateLimited)
	return false
}

func sendStoreError(c *Client, err error) {
	switch {
	case errors.Is(err, store.ErrChatNotFound):
		sendError(c, "chat not found", CodeChatNotFound)
	case errors.Is(err, store.ErrInvalidMessage):
		sendError(c, err.Error(), CodeInvalidPayload)
	default:
		slog.Error("chat action failed", "error", err, "session", c.Identity.Key())
		sendError(c, "internal error", CodeInternal)
	}
}

func sendError(c *Client, message, code string) {
	data, _ := NewWSMessage(TypeError, ErrorPayload{
		Message: message,
		Code:    code,
	})
	c.enqueue(data)
}
