package chat

import (
	"encoding/json"
	"time"

	"github.com/umar/agency-chat/internal/models"
)

const (
	TypeMessageSend = "message.send"
	TypeBookingSend = "booking.send"
	TypeChatRead    = "chat.read"
	TypeChatReadAll = "chat.read_all"
	TypeTypingStart = "typing.start"
	TypeTypingStop  = "typing.stop"
	TypePing        = "ping"

	TypeChatCreated    = "chat.created"
	TypeMessageNew     = "message.new"
	TypeReadReceipt    = "read_receipt.update"
	TypeBookingUpdated = "booking.updated"
	TypeUnreadUpdate   = "unread.update"
	TypeTypingUpdate   = "typing.update"
	TypePresenceUpdate = "presence.update"
	TypeError          = "error"
	TypePong           = "pong"
)

const (
	CodeInvalidPayload = "INVALID_PAYLOAD"
	CodeChatNotFound   = "CHAT_NOT_FOUND"
	CodeNotParticipant = "NOT_PARTICIPANT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL_ERROR"
)

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SendMessagePayload struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type SendBookingPayload struct {
	ChatID     string            `json:"chat_id"`
	Text       string            `json:"text"`
	BookingRef models.BookingRef `json:"booking_ref"`
}

type ChatPayload struct {
	ChatID string `json:"chat_id"`
}

type ChatCreatedPayload struct {
	Chat models.Chat `json:"chat"`
}

type NewMessagePayload struct {
	ChatID  string         `json:"chat_id"`
	Message models.Message `json:"message"`
}

type ReadReceiptPayload struct {
	ChatID string            `json:"chat_id"`
	Reader models.SenderType `json:"reader"`
	ReadAt string            `json:"read_at"`
}

type BookingUpdatedPayload struct {
	ChatID     string            `json:"chat_id"`
	MessageID  string            `json:"message_id"`
	BookingRef models.BookingRef `json:"booking_ref"`
}

type UnreadUpdatePayload struct {
	ChatID    string `json:"chat_id"`
	ChatCount int    `json:"chat_count"`
	Total     int    `json:"total"`
}

type TypingUpdatePayload struct {
	ChatID   string            `json:"chat_id"`
	UserID   string            `json:"user_id"`
	UserType models.SenderType `json:"user_type"`
	Name     string            `json:"name"`
	IsTyping bool              `json:"is_typing"`
}

type PresenceUpdatePayload struct {
	UserID   string            `json:"user_id"`
	UserType models.SenderType `json:"user_type"`
	Status   string            `json:"status"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func NewWSMessage(msgType string, payload interface{}) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	msg := WSMessage{Type: msgType, Payload: p}
	return json.Marshal(msg)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
