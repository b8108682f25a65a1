// Package store holds the in-memory collection of agency/freelancer chats.
//
// A Store is the single owner of its chats. Queries hand out deep copies, and
// all mutations go through Store methods, each applied under one lock so a
// chat's messages and counters never change separately.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/umar/agency-chat/internal/models"
)

var (
	ErrChatNotFound       = errors.New("chat not found")
	ErrBookingRefNotFound = errors.New("booking reference not found")
	ErrInvalidMessage     = errors.New("invalid message")
)

type Store struct {
	mu    sync.RWMutex
	chats []*models.Chat

	now   func() time.Time
	newID func() string

	lmu       sync.RWMutex
	listeners []Listener
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateChat returns the chat for the (agency, freelancer) pair,
// creating it at the front of the collection when none exists. An existing
// chat is returned as stored; names and images from the arguments are
// ignored. The bool reports whether a chat was created.
func (s *Store) GetOrCreateChat(agency, freelancer models.Participant) (models.Chat, bool) {
	s.mu.Lock()
	if c := s.findPair(agency.ID, freelancer.ID); c != nil {
		snap := c.Clone()
		s.mu.Unlock()
		return snap, false
	}

	now := s.now()
	c := &models.Chat{
		ID:                     s.newID(),
		AgencyID:               agency.ID,
		AgencyName:             agency.Name,
		AgencyProfileImage:     agency.ProfileImage,
		FreelancerID:           freelancer.ID,
		FreelancerName:         freelancer.Name,
		FreelancerProfileImage: freelancer.ProfileImage,
		LastMessageAt:          now,
		Messages:               []models.Message{},
		CreatedAt:              now,
	}
	s.chats = append([]*models.Chat{c}, s.chats...)
	snap := c.Clone()
	s.mu.Unlock()

	s.emit(Event{Kind: EventChatCreated, Chat: snap})
	return snap, true
}

func (s *Store) GetChatByID(chatID string) (models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.findByID(chatID)
	if c == nil {
		return models.Chat{}, false
	}
	return c.Clone(), true
}

// GetChatsForAgency returns the agency's chats, most recent activity first.
func (s *Store) GetChatsForAgency(agencyID string) []models.Chat {
	return s.chatsFor(agencyID, models.SenderAgency)
}

// GetChatsForFreelancer returns the freelancer's chats, most recent activity
// first.
func (s *Store) GetChatsForFreelancer(freelancerID string) []models.Chat {
	return s.chatsFor(freelancerID, models.SenderFreelancer)
}

func (s *Store) chatsFor(userID string, side models.SenderType) []models.Chat {
	s.mu.RLock()
	out := []models.Chat{}
	for _, c := range s.chats {
		if c.ParticipantID(side) == userID {
			out = append(out, c.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

func (s *Store) FindChatForBooking(agencyID, freelancerID string) (models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.findPair(agencyID, freelancerID)
	if c == nil {
		return models.Chat{}, false
	}
	return c.Clone(), true
}

// GetUnreadCount sums the side's unread counter over every chat the user
// takes part in on that side.
func (s *Store) GetUnreadCount(userID string, side models.SenderType) int {
	if !side.Valid() {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.chats {
		if c.ParticipantID(side) == userID {
			total += c.UnreadFor(side)
		}
	}
	return total
}

// MarkChatAsRead stamps every unread message sent by the other side and
// zeroes the reader's counter. Unknown chats are ignored. It returns the
// number of messages stamped.
func (s *Store) MarkChatAsRead(chatID string, reader models.SenderType) int {
	if !reader.Valid() {
		return 0
	}
	s.mu.Lock()
	c := s.findByID(chatID)
	if c == nil {
		s.mu.Unlock()
		return 0
	}
	now := s.now()
	n := markRead(c, reader, now)
	snap := c.Clone()
	s.mu.Unlock()

	s.emit(Event{Kind: EventChatRead, Chat: snap, Reader: reader, ReadAt: now})
	return n
}

// MarkAllMessagesAsRead applies MarkChatAsRead to every chat in the store.
func (s *Store) MarkAllMessagesAsRead(reader models.SenderType) int {
	return s.markAll(reader, func(*models.Chat) bool { return true })
}

// MarkAllMessagesAsReadFor is MarkAllMessagesAsRead limited to the chats in
// which userID is the reader-side participant.
func (s *Store) MarkAllMessagesAsReadFor(userID string, reader models.SenderType) int {
	return s.markAll(reader, func(c *models.Chat) bool {
		return c.ParticipantID(reader) == userID
	})
}

func (s *Store) markAll(reader models.SenderType, match func(*models.Chat) bool) int {
	if !reader.Valid() {
		return 0
	}
	s.mu.Lock()
	now := s.now()
	total := 0
	var changed []models.Chat
	for _, c := range s.chats {
		if !match(c) {
			continue
		}
		hadUnread := c.UnreadFor(reader) > 0
		n := markRead(c, reader, now)
		total += n
		if n > 0 || hadUnread {
			changed = append(changed, c.Clone())
		}
	}
	s.mu.Unlock()

	for _, snap := range changed {
		s.emit(Event{Kind: EventChatRead, Chat: snap, Reader: reader, ReadAt: now})
	}
	return total
}

func markRead(c *models.Chat, reader models.SenderType, now time.Time) int {
	n := 0
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.SenderType != reader && !m.IsRead() {
			t := now
			m.ReadAt = &t
			n++
		}
	}
	c.SetUnread(reader, 0)
	return n
}

// SendMessage appends a text message and bumps the other side's unread
// counter.
func (s *Store) SendMessage(chatID string, sender models.Sender, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, fmt.Errorf("%w: text is required", ErrInvalidMessage)
	}
	return s.appendMessage(chatID, sender, models.TextContent{Text: text})
}

// SendBookingRef appends a booking reference message. The payload is stored
// as given; status values are not checked against any workflow.
func (s *Store) SendBookingRef(chatID string, sender models.Sender, text string, ref models.BookingRef) (models.Message, error) {
	if strings.TrimSpace(ref.BookingID) == "" {
		return models.Message{}, fmt.Errorf("%w: booking id is required", ErrInvalidMessage)
	}
	if ref.Dates != nil {
		ref.Dates = append([]string(nil), ref.Dates...)
	}
	return s.appendMessage(chatID, sender, models.BookingRefContent{Text: text, BookingRef: ref})
}

func (s *Store) appendMessage(chatID string, sender models.Sender, content models.Content) (models.Message, error) {
	if !sender.Type.Valid() {
		return models.Message{}, fmt.Errorf("%w: unknown sender type %q", ErrInvalidMessage, sender.Type)
	}

	s.mu.Lock()
	c := s.findByID(chatID)
	if c == nil {
		s.mu.Unlock()
		return models.Message{}, fmt.Errorf("send to %s: %w", chatID, ErrChatNotFound)
	}

	now := s.now()
	msg := models.Message{
		ID:         s.newID(),
		SenderID:   sender.ID,
		SenderType: sender.Type,
		SenderName: sender.Name,
		CreatedAt:  now,
		Content:    content,
	}
	c.Messages = append(c.Messages, msg)
	c.LastMessageAt = now
	recipient := sender.Type.Opposite()
	c.SetUnread(recipient, c.UnreadFor(recipient)+1)

	snap := c.Clone()
	out := msg.Clone()
	s.mu.Unlock()

	sent := out.Clone()
	s.emit(Event{Kind: EventMessageSent, Chat: snap, Message: &sent})
	return out, nil
}

// UpdateBookingRefStatus replaces the status of the booking reference with
// the given booking id. Nothing else in the chat changes.
func (s *Store) UpdateBookingRefStatus(chatID, bookingID string, status models.BookingStatus) error {
	s.mu.Lock()
	c := s.findByID(chatID)
	if c == nil {
		s.mu.Unlock()
		return fmt.Errorf("update booking %s: %w", bookingID, ErrChatNotFound)
	}

	var updated *models.Message
	for i := range c.Messages {
		m := &c.Messages[i]
		ref, ok := m.Content.(models.BookingRefContent)
		if !ok || ref.BookingRef.BookingID != bookingID {
			continue
		}
		ref.BookingRef.Status = status
		m.Content = ref
		if updated == nil {
			cp := m.Clone()
			updated = &cp
		}
	}
	if updated == nil {
		s.mu.Unlock()
		return fmt.Errorf("update booking %s in chat %s: %w", bookingID, chatID, ErrBookingRefNotFound)
	}
	snap := c.Clone()
	s.mu.Unlock()

	s.emit(Event{Kind: EventBookingUpdated, Chat: snap, Message: updated})
	return nil
}

// Load replaces the collection with the given chats, keeping their order.
// A chat whose id or (agency, freelancer) pair was already loaded is
// skipped, so the first occurrence wins.
func (s *Store) Load(chats []models.Chat) int {
	loaded := make([]*models.Chat, 0, len(chats))
	pairs := make(map[[2]string]bool, len(chats))
	ids := make(map[string]bool, len(chats))
	for i := range chats {
		key := [2]string{chats[i].AgencyID, chats[i].FreelancerID}
		if pairs[key] || ids[chats[i].ID] {
			continue
		}
		pairs[key] = true
		ids[chats[i].ID] = true
		c := chats[i].Clone()
		loaded = append(loaded, &c)
	}

	s.mu.Lock()
	s.chats = loaded
	s.mu.Unlock()
	return len(loaded)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}

func (s *Store) findByID(chatID string) *models.Chat {
	for _, c := range s.chats {
		if c.ID == chatID {
			return c
		}
	}
	return nil
}

func (s *Store) findPair(agencyID, freelancerID string) *models.Chat {
	for _, c := range s.chats {
		if c.AgencyID == agencyID && c.FreelancerID == freelancerID {
			return c
		}
	}
	return nil
}
