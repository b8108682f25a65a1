package models

import (
	"encoding/json"
	"time"
)

type SenderType string

const (
	SenderAgency     SenderType = "agency"
	SenderFreelancer SenderType = "freelancer"
)

func (s SenderType) Valid() bool {
	return s == SenderAgency || s == SenderFreelancer
}

// Opposite returns the other side of a chat. It is only meaningful for valid
// sender types.
func (s SenderType) Opposite() SenderType {
	if s == SenderAgency {
		return SenderFreelancer
	}
	return SenderAgency
}

type MessageType string

const (
	MessageText       MessageType = "text"
	MessageBookingRef MessageType = "booking_ref"
)

type BookingStatus string

const (
	BookingPending         BookingStatus = "pending"
	BookingOptionPending   BookingStatus = "option_pending"
	BookingOptionConfirmed BookingStatus = "option_confirmed"
	BookingConfirmed       BookingStatus = "confirmed"
	BookingFixPending      BookingStatus = "fix_pending"
	BookingFixConfirmed    BookingStatus = "fix_confirmed"
	BookingDeclined        BookingStatus = "declined"
	BookingCancelled       BookingStatus = "cancelled"
)

var bookingStatuses = map[BookingStatus]bool{
	BookingPending:         true,
	BookingOptionPending:   true,
	BookingOptionConfirmed: true,
	BookingConfirmed:       true,
	BookingFixPending:      true,
	BookingFixConfirmed:    true,
	BookingDeclined:        true,
	BookingCancelled:       true,
}

func (s BookingStatus) Valid() bool {
	return bookingStatuses[s]
}

type BookingType string

const (
	BookingOption BookingType = "option"
	BookingFix    BookingType = "fix"
)

func (t BookingType) Valid() bool {
	return t == BookingOption || t == BookingFix
}

type BookingRef struct {
	BookingID   string        `json:"booking_id" yaml:"booking_id"`
	ProjectName string        `json:"project_name" yaml:"project_name"`
	Dates       []string      `json:"dates" yaml:"dates"`
	Status      BookingStatus `json:"status" yaml:"status"`
	Type        BookingType   `json:"type" yaml:"type"`
}

func (b BookingRef) clone() BookingRef {
	if b.Dates != nil {
		b.Dates = append([]string(nil), b.Dates...)
	}
	return b
}

// Content is the variant part of a Message. The set of implementations is
// closed: TextContent and BookingRefContent.
type Content interface {
	messageType() MessageType
}

type TextContent struct {
	Text string
}

func (TextContent) messageType() MessageType { return MessageText }

type BookingRefContent struct {
	Text       string
	BookingRef BookingRef
}

func (BookingRefContent) messageType() MessageType { return MessageBookingRef }

type Sender struct {
	ID   string
	Type SenderType
	Name string
}

type Message struct {
	ID         string
	SenderID   string
	SenderType SenderType
	SenderName string
	CreatedAt  time.Time
	ReadAt     *time.Time
	Content    Content
}

func (m Message) Type() MessageType {
	if m.Content == nil {
		return MessageText
	}
	return m.Content.messageType()
}

func (m Message) Text() string {
	switch c := m.Content.(type) {
	case TextContent:
		return c.Text
	case BookingRefContent:
		return c.Text
	}
	return ""
}

func (m Message) BookingRef() (BookingRef, bool) {
	c, ok := m.Content.(BookingRefContent)
	if !ok {
		return BookingRef{}, false
	}
	return c.BookingRef.clone(), true
}

func (m Message) IsRead() bool {
	return m.ReadAt != nil
}

func (m Message) Clone() Message {
	if m.ReadAt != nil {
		t := *m.ReadAt
		m.ReadAt = &t
	}
	if c, ok := m.Content.(BookingRefContent); ok {
		c.BookingRef = c.BookingRef.clone()
		m.Content = c
	}
	return m
}

type messageJSON struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	SenderID   string      `json:"sender_id"`
	SenderType SenderType  `json:"sender_type"`
	SenderName string      `json:"sender_name"`
	Text       string      `json:"text,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ReadAt     *time.Time  `json:"read_at"`
	BookingRef *BookingRef `json:"booking_ref,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		ID:         m.ID,
		Type:       m.Type(),
		SenderID:   m.SenderID,
		SenderType: m.SenderType,
		SenderName: m.SenderName,
		Text:       m.Text(),
		CreatedAt:  m.CreatedAt,
		ReadAt:     m.ReadAt,
	}
	if ref, ok := m.BookingRef(); ok {
		out.BookingRef = &ref
	}
	return json.Marshal(out)
}
