package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umar/agency-chat/internal/auth"
	"github.com/umar/agency-chat/internal/bookings"
	"github.com/umar/agency-chat/internal/chat"
	"github.com/umar/agency-chat/internal/middleware"
	"github.com/umar/agency-chat/internal/models"
	"github.com/umar/agency-chat/internal/store"
)

const (
	jwtSecret     = "handlers-secret"
	webhookSecret = "hook"
	origin        = "http://localhost:5173"
)

var (
	agencyID     = auth.Identity{UserID: "1", UserType: models.SenderAgency, Name: "Acme"}
	freelancerID = auth.Identity{UserID: "2", UserType: models.SenderFreelancer, Name: "Jo"}
	strangerID   = auth.Identity{UserID: "3", UserType: models.SenderFreelancer, Name: "Sam"}
)

func newTestRouter(t *testing.T, limiter *middleware.Limiter) (http.Handler, *store.Store) {
	t.Helper()
	st := store.New()
	hub := chat.NewHub(st)
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	if limiter == nil {
		limiter = middleware.NewLimiter(1000, 1000)
	}
	h := NewRouter(Deps{
		Store:         st,
		Hub:           hub,
		Bookings:      bookings.NewRouter(st),
		SendLimiter:   limiter,
		JWTSecret:     jwtSecret,
		SessionTTL:    time.Hour,
		WebhookSecret: webhookSecret,
		CORSOrigin:    origin,
	})
	return h, st
}

func tokenFor(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := auth.GenerateToken(id, jwtSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, h http.Handler, method, path string, id *auth.Identity, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if id != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *id))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func startChat(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/chats", &agencyID, map[string]interface{}{
		"agency":     map[string]string{"id": "1", "name": "Acme"},
		"freelancer": map[string]string{"id": "2", "name": "Jo"},
	})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())
	var c struct {
		ID string `json:"id"`
	}
	decode(t, rec, &c)
	return c.ID
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(t, h, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestSessionThenChat(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/api/session", nil, map[string]string{
		"user_id": "1", "user_type": "agency", "name": "Acme",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sess struct {
		Token string `json:"token"`
	}
	decode(t, rec, &sess)

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestChatLifecycle(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	chatID := startChat(t, h)
	again := do(t, h, http.MethodPost, "/api/chats", &agencyID, map[string]interface{}{
		"agency":     map[string]string{"id": "1", "name": "Renamed"},
		"freelancer": map[string]string{"id": "2"},
	})
	require.Equal(t, http.StatusOK, again.Code)
	var existing struct {
		ID         string `json:"id"`
		AgencyName string `json:"agency_name"`
	}
	decode(t, again, &existing)
	assert.Equal(t, chatID, existing.ID)
	assert.Equal(t, "Acme", existing.AgencyName)

	rec := do(t, h, http.MethodPost, "/api/chats/"+chatID+"/messages", &agencyID, map[string]string{"text": "Hello Jo"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent struct {
		Type       string  `json:"type"`
		Text       string  `json:"text"`
		SenderType string  `json:"sender_type"`
		ReadAt     *string `json:"read_at"`
	}
	decode(t, rec, &sent)
	assert.Equal(t, "text", sent.Type)
	assert.Equal(t, "Hello Jo", sent.Text)
	assert.Equal(t, "agency", sent.SenderType)
	assert.Nil(t, sent.ReadAt)

	rec = do(t, h, http.MethodGet, "/api/chats", &freelancerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []chatSummary
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)

	rec = do(t, h, http.MethodGet, "/api/unread", &freelancerID, nil)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/chats/"+chatID+"/read", &freelancerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"marked":1}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/unread", &freelancerID, nil)
	assert.JSONEq(t, `{"count":0}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/chats/"+chatID, &agencyID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var full struct {
		Messages []struct {
			ReadAt *string `json:"read_at"`
		} `json:"messages"`
	}
	decode(t, rec, &full)
	require.Len(t, full.Messages, 1)
	assert.NotNil(t, full.Messages[0].ReadAt)
}

func TestStartChatRequiresOwnSide(t *testing.T) {
	h, st := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/api/chats", &strangerID, map[string]interface{}{
		"agency":     map[string]string{"id": "1"},
		"freelancer": map[string]string{"id": "2"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/chats", &agencyID, map[string]interface{}{
		"agency": map[string]string{"id": "1"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, st.Len())
}

func TestChatAccess(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	chatID := startChat(t, h)

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/chats/"+chatID, nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/chats/missing", &agencyID, nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/api/chats/"+chatID, &strangerID, nil).Code)
	assert.Equal(t, http.StatusForbidden,
		do(t, h, http.MethodPost, "/api/chats/"+chatID+"/messages", &strangerID, map[string]string{"text": "hi"}).Code)
	assert.Equal(t, http.StatusNotFound,
		do(t, h, http.MethodPost, "/api/chats/missing/messages", &agencyID, map[string]string{"text": "hi"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, h, http.MethodPost, "/api/chats/"+chatID+"/messages", &agencyID, map[string]string{"text": " "}).Code)
}

func TestBookingRoutes(t *testing.T) {
	h, st := newTestRouter(t, nil)
	chatID := startChat(t, h)

	ref := map[string]interface{}{
		"booking_id":   "99",
		"project_name": "Lookbook",
		"dates":        []string{"2024-07-01", "2024-07-02"},
		"status":       "fix_pending",
		"type":         "fix",
	}
	rec := do(t, h, http.MethodPost, "/api/chats/"+chatID+"/bookings", &agencyID, map[string]interface{}{
		"text": "Fix request", "booking_ref": ref,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent struct {
		Type       string            `json:"type"`
		BookingRef models.BookingRef `json:"booking_ref"`
	}
	decode(t, rec, &sent)
	assert.Equal(t, "booking_ref", sent.Type)
	assert.Equal(t, []string{"2024-07-01", "2024-07-02"}, sent.BookingRef.Dates)

	bad := map[string]interface{}{"booking_id": "100", "status": "pending", "type": "maybe"}
	rec = do(t, h, http.MethodPost, "/api/chats/"+chatID+"/bookings", &agencyID, map[string]interface{}{"booking_ref": bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/chats/"+chatID+"/bookings/99", &freelancerID, map[string]string{"status": "fix_confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	c, _ := st.GetChatByID(chatID)
	got, ok := c.Messages[0].BookingRef()
	require.True(t, ok)
	assert.Equal(t, models.BookingFixConfirmed, got.Status)

	rec = do(t, h, http.MethodPatch, "/api/chats/"+chatID+"/bookings/12345", &freelancerID, map[string]string{"status": "declined"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/chats/"+chatID+"/bookings/99", &freelancerID, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingWebhook(t *testing.T) {
	h, st := newTestRouter(t, nil)
	chatID := startChat(t, h)
	_, err := st.SendBookingRef(chatID, agencyID.Sender(), "", models.BookingRef{
		BookingID: "99", Status: models.BookingOptionPending, Type: models.BookingOption,
	})
	require.NoError(t, err)

	post := func(secret string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/api/bookings/status", &buf)
		req.Header.Set("X-Webhook-Secret", secret)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	update := map[string]string{"agency_id": "1", "freelancer_id": "2", "booking_id": "99", "status": "option_confirmed"}
	assert.Equal(t, http.StatusUnauthorized, post("wrong", update).Code)

	rec := post(webhookSecret, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"chat_id":"`+chatID+`","status":"option_confirmed"}`, rec.Body.String())

	unknown := map[string]string{"agency_id": "1", "freelancer_id": "7", "booking_id": "99", "status": "declined"}
	assert.Equal(t, http.StatusNotFound, post(webhookSecret, unknown).Code)
	assert.Equal(t, 1, st.Len())
}

func TestMarkAllRead(t *testing.T) {
	h, st := newTestRouter(t, nil)
	chatID := startChat(t, h)
	other, _ := st.GetOrCreateChat(models.Participant{ID: "5"}, models.Participant{ID: "2"})

	_, _ = st.SendMessage(chatID, agencyID.Sender(), "a")
	_, _ = st.SendMessage(other.ID, models.Sender{ID: "5", Type: models.SenderAgency}, "b")

	rec := do(t, h, http.MethodPost, "/api/chats/read-all", &freelancerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"marked":2}`, rec.Body.String())
	assert.Equal(t, 0, st.GetUnreadCount("2", models.SenderFreelancer))
}

func TestSendRateLimited(t *testing.T) {
	h, _ := newTestRouter(t, middleware.NewLimiter(0.001, 1))
	chatID := startChat(t, h)

	body := map[string]string{"text": "hi"}
	assert.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/chats/"+chatID+"/messages", &agencyID, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/api/chats/"+chatID+"/messages", &agencyID, body).Code)
	assert.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/chats/"+chatID+"/messages", &freelancerID, body).Code)
}

func TestPresenceRoute(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(t, h, http.MethodGet, "/api/presence", &agencyID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"online":[]}`, rec.Body.String())
}

func TestPresenceRouteListsOnlyCounterparts(t *testing.T) {
	h, st := newTestRouter(t, nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	otherAgency := auth.Identity{UserID: "5", UserType: models.SenderAgency}
	st.GetOrCreateChat(models.Participant{ID: "1"}, models.Participant{ID: "2"})
	st.GetOrCreateChat(models.Participant{ID: "5"}, models.Participant{ID: "3"})

	for _, id := range []auth.Identity{freelancerID, strangerID} {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tokenFor(t, id)
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
	}

	tokens := make(map[string]string)
	for _, id := range []auth.Identity{agencyID, otherAgency, strangerID} {
		tokens[id.Key()] = tokenFor(t, id)
	}
	online := func(id auth.Identity) []string {
		req := httptest.NewRequest(http.MethodGet, "/api/presence", nil)
		req.Header.Set("Authorization", "Bearer "+tokens[id.Key()])
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		var out struct {
			Online []string `json:"online"`
		}
		if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &out) != nil {
			return nil
		}
		return out.Online
	}

	require.Eventually(t, func() bool {
		return len(online(agencyID)) == 1 && len(online(otherAgency)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"freelancer:2"}, online(agencyID))
	assert.Equal(t, []string{"freelancer:3"}, online(otherAgency))
	assert.Empty(t, online(strangerID))
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/chats", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
}
