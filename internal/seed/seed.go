// Package seed loads sample chats from a YAML file into the store.
package seed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/umar/agency-chat/internal/models"
	"github.com/umar/agency-chat/internal/store"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSeed = errors.New("invalid seed data")

type File struct {
	Chats []Chat `yaml:"chats"`
}

type Chat struct {
	ID         string             `yaml:"id"`
	Agency     models.Participant `yaml:"agency"`
	Freelancer models.Participant `yaml:"freelancer"`
	CreatedAt  time.Time          `yaml:"created_at"`
	Messages   []Message          `yaml:"messages"`
}

type Message struct {
	ID         string             `yaml:"id"`
	Type       models.MessageType `yaml:"type"`
	SenderType models.SenderType  `yaml:"sender_type"`
	SenderName string             `yaml:"sender_name"`
	Text       string             `yaml:"text"`
	CreatedAt  time.Time          `yaml:"created_at"`
	ReadAt     *time.Time         `yaml:"read_at"`
	BookingRef *models.BookingRef `yaml:"booking_ref"`
}

// Parse decodes and validates seed data. Unread counters and last activity
// are derived from the messages rather than read from the file.
func Parse(r io.Reader) ([]models.Chat, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return []models.Chat{}, nil
		}
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}

	chats := make([]models.Chat, 0, len(f.Chats))
	ids := make(map[string]bool, len(f.Chats))
	pairs := make(map[[2]string]bool, len(f.Chats))
	for i, sc := range f.Chats {
		c, err := sc.toModel()
		if err != nil {
			return nil, fmt.Errorf("chat %d: %w", i, err)
		}
		if ids[c.ID] {
			return nil, fmt.Errorf("chat %d: %w: duplicate chat id %q", i, ErrInvalidSeed, c.ID)
		}
		pair := [2]string{c.AgencyID, c.FreelancerID}
		if pairs[pair] {
			return nil, fmt.Errorf("chat %d: %w: second chat for agency %q and freelancer %q", i, ErrInvalidSeed, c.AgencyID, c.FreelancerID)
		}
		ids[c.ID] = true
		pairs[pair] = true
		chats = append(chats, c)
	}
	return chats, nil
}

func (sc Chat) toModel() (models.Chat, error) {
	if sc.ID == "" || sc.Agency.ID == "" || sc.Freelancer.ID == "" {
		return models.Chat{}, fmt.Errorf("%w: id, agency.id and freelancer.id are required", ErrInvalidSeed)
	}

	c := models.Chat{
		ID:                     sc.ID,
		AgencyID:               sc.Agency.ID,
		AgencyName:             sc.Agency.Name,
		AgencyProfileImage:     sc.Agency.ProfileImage,
		FreelancerID:           sc.Freelancer.ID,
		FreelancerName:         sc.Freelancer.Name,
		FreelancerProfileImage: sc.Freelancer.ProfileImage,
		CreatedAt:              sc.CreatedAt,
		LastMessageAt:          sc.CreatedAt,
		Messages:               make([]models.Message, 0, len(sc.Messages)),
	}

	seen := make(map[string]bool, len(sc.Messages))
	for j, sm := range sc.Messages {
		if seen[sm.ID] {
			return models.Chat{}, fmt.Errorf("message %d: %w: duplicate message id %q", j, ErrInvalidSeed, sm.ID)
		}
		seen[sm.ID] = true
		m, err := sm.toModel(c)
		if err != nil {
			return models.Chat{}, fmt.Errorf("message %d: %w", j, err)
		}
		if m.CreatedAt.Before(c.LastMessageAt) {
			return models.Chat{}, fmt.Errorf("message %d: %w: messages must be in chronological order", j, ErrInvalidSeed)
		}
		c.Messages = append(c.Messages, m)
		c.LastMessageAt = m.CreatedAt
		if !m.IsRead() {
			recipient := m.SenderType.Opposite()
			c.SetUnread(recipient, c.UnreadFor(recipient)+1)
		}
	}
	return c, nil
}

func (sm Message) toModel(c models.Chat) (models.Message, error) {
	if sm.ID == "" {
		return models.Message{}, fmt.Errorf("%w: message id is required", ErrInvalidSeed)
	}
	if !sm.SenderType.Valid() {
		return models.Message{}, fmt.Errorf("%w: unknown sender_type %q", ErrInvalidSeed, sm.SenderType)
	}

	m := models.Message{
		ID:         sm.ID,
		SenderID:   c.ParticipantID(sm.SenderType),
		SenderType: sm.SenderType,
		SenderName: sm.SenderName,
		CreatedAt:  sm.CreatedAt,
		ReadAt:     sm.ReadAt,
	}

	switch sm.Type {
	case models.MessageText, "":
		if sm.Text == "" {
			return models.Message{}, fmt.Errorf("%w: text message without text", ErrInvalidSeed)
		}
		m.Content = models.TextContent{Text: sm.Text}
	case models.MessageBookingRef:
		if sm.BookingRef == nil || sm.BookingRef.BookingID == "" {
			return models.Message{}, fmt.Errorf("%w: booking_ref message without booking id", ErrInvalidSeed)
		}
		if !sm.BookingRef.Status.Valid() || !sm.BookingRef.Type.Valid() {
			return models.Message{}, fmt.Errorf("%w: booking %s has unknown status or type", ErrInvalidSeed, sm.BookingRef.BookingID)
		}
		m.Content = models.BookingRefContent{Text: sm.Text, BookingRef: *sm.BookingRef}
	default:
		return models.Message{}, fmt.Errorf("%w: unknown message type %q", ErrInvalidSeed, sm.Type)
	}
	return m, nil
}

// LoadFile parses path and replaces the store's contents with it.
func LoadFile(st *store.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	chats, err := Parse(f)
	if err != nil {
		return 0, err
	}
	return st.Load(chats), nil
}
