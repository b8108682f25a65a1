package seed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umar/agency-chat/internal/models"
	"github.com/umar/agency-chat/internal/store"
)

func TestLoadFile(t *testing.T) {
	st := store.New()
	n, err := LoadFile(st, "testdata/sample_chats.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c, ok := st.GetChatByID("chat-northwind-jo")
	require.True(t, ok)
	require.Len(t, c.Messages, 3)
	assert.Equal(t, 1, c.UnreadCountAgency)
	assert.Equal(t, 1, c.UnreadCountFreelancer)
	assert.Equal(t, c.Messages[2].CreatedAt, c.LastMessageAt)
	assert.Equal(t, "2", c.Messages[1].SenderID)
	assert.True(t, c.Messages[0].IsRead())

	ref, ok := c.Messages[2].BookingRef()
	require.True(t, ok)
	assert.Equal(t, "Summer Lookbook", ref.ProjectName)
	assert.Equal(t, []string{"2024-06-10", "2024-06-11"}, ref.Dates)
	assert.Equal(t, models.BookingOptionPending, ref.Status)

	chats := st.GetChatsForAgency("1")
	require.Len(t, chats, 2)
	assert.Equal(t, "chat-northwind-jo", chats[0].ID)

	assert.Equal(t, 1, st.GetUnreadCount("1", models.SenderAgency))

	// Seeded chats behave like created ones.
	again, created := st.GetOrCreateChat(models.Participant{ID: "1"}, models.Participant{ID: "3"})
	assert.False(t, created)
	assert.Equal(t, "chat-northwind-sam", again.ID)
}

func TestParseRejectsBadData(t *testing.T) {
	cases := map[string]string{
		"missing freelancer": `
chats:
  - id: c1
    agency: {id: "1"}
`,
		"bad sender": `
chats:
  - id: c1
    agency: {id: "1"}
    freelancer: {id: "2"}
    messages:
      - {id: m1, sender_type: admin, text: hi}
`,
		"booking without id": `
chats:
  - id: c1
    agency: {id: "1"}
    freelancer: {id: "2"}
    messages:
      - {id: m1, type: booking_ref, sender_type: agency}
`,
		"out of order": `
chats:
  - id: c1
    agency: {id: "1"}
    freelancer: {id: "2"}
    messages:
      - {id: m1, sender_type: agency, text: b, created_at: 2024-01-02T00:00:00Z}
      - {id: m2, sender_type: agency, text: a, created_at: 2024-01-01T00:00:00Z}
`,
		"duplicate chat id": `
chats:
  - id: c1
    agency: {id: a1}
    freelancer: {id: f1}
  - id: c1
    agency: {id: a2}
    freelancer: {id: f2}
`,
		"duplicate pair": `
chats:
  - id: c1
    agency: {id: a1}
    freelancer: {id: f1}
  - id: c2
    agency: {id: a1}
    freelancer: {id: f1}
`,
		"duplicate message id": `
chats:
  - id: c1
    agency: {id: "1"}
    freelancer: {id: "2"}
    messages:
      - {id: m1, sender_type: agency, text: a, created_at: 2024-01-01T00:00:00Z}
      - {id: m1, sender_type: freelancer, text: b, created_at: 2024-01-02T00:00:00Z}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidSeed)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	chats, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(store.New(), "testdata/nope.yaml")
	assert.Error(t, err)
}
