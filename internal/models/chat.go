package models

import "time"

type Participant struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	ProfileImage string `json:"profile_image,omitempty" yaml:"profile_image"`
}

type Chat struct {
	ID                     string    `json:"id"`
	AgencyID               string    `json:"agency_id"`
	AgencyName             string    `json:"agency_name"`
	AgencyProfileImage     string    `json:"agency_profile_image,omitempty"`
	FreelancerID           string    `json:"freelancer_id"`
	FreelancerName         string    `json:"freelancer_name"`
	FreelancerProfileImage string    `json:"freelancer_profile_image,omitempty"`
	LastMessageAt          time.Time `json:"last_message_at"`
	UnreadCountAgency      int       `json:"unread_count_agency"`
	UnreadCountFreelancer  int       `json:"unread_count_freelancer"`
	Messages               []Message `json:"messages"`
	CreatedAt              time.Time `json:"created_at"`
}

// ParticipantID returns the id of the participant on the given side.
func (c *Chat) ParticipantID(side SenderType) string {
	if side == SenderAgency {
		return c.AgencyID
	}
	return c.FreelancerID
}

func (c *Chat) HasParticipant(userID string, side SenderType) bool {
	return side.Valid() && userID != "" && c.ParticipantID(side) == userID
}

func (c *Chat) UnreadFor(side SenderType) int {
	if side == SenderAgency {
		return c.UnreadCountAgency
	}
	return c.UnreadCountFreelancer
}

func (c *Chat) SetUnread(side SenderType, n int) {
	if side == SenderAgency {
		c.UnreadCountAgency = n
		return
	}
	c.UnreadCountFreelancer = n
}

// LastMessage returns the most recent message, if any.
func (c *Chat) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1].Clone(), true
}

// Clone returns a deep copy that shares no mutable state with c.
func (c *Chat) Clone() Chat {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}
