package chat

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/umar/agency-chat/internal/auth"
	"github.com/umar/agency-chat/internal/models"
	"github.com/umar/agency-chat/internal/store"
	"golang.org/x/time/rate"
)

const presenceTimeout = 2 * time.Second

// PresenceTracker mirrors connected sessions into shared storage.
type PresenceTracker interface {
	SetOnline(ctx context.Context, key string) error
	SetOffline(ctx context.Context, key string) error
	Refresh(ctx context.Context, key string) error
	Online(ctx context.Context) ([]string, error)
}

// Delivery is a frame addressed to a set of session keys.
type Delivery struct {
	Keys       []string
	Data       []byte
	ExcludeKey string
}

type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Delivery
	done       chan struct{}
	closeOnce  sync.Once

	Store    *store.Store
	presence PresenceTracker

	sendRate  rate.Limit
	sendBurst int
}

type HubOption func(*Hub)

func WithPresence(p PresenceTracker) HubOption {
	return func(h *Hub) { h.presence = p }
}

// WithSendLimit throttles message.send and booking.send per connection.
func WithSendLimit(perSecond float64, burst int) HubOption {
	return func(h *Hub) {
		h.sendRate = rate.Limit(perSecond)
		h.sendBurst = burst
	}
}

// NewHub creates a hub and subscribes it to st, so every store mutation is
// pushed to the connected participants of the affected chat.
func NewHub(st *store.Store, opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Delivery, 256),
		done:       make(chan struct{}),
		Store:      st,
		sendRate:   rate.Inf,
		sendBurst:  1,
	}
	for _, opt := range opts {
		opt(h)
	}
	st.Subscribe(h.handleEvent)
	return h
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			key := client.Identity.Key()
			h.mu.Lock()
			if old, ok := h.clients[key]; ok {
				close(old.send)
			}
			h.clients[key] = client
			h.mu.Unlock()
			slog.Info("client connected", "session", key)
			h.trackPresence(key, true)
			h.broadcastPresence(client.Identity, "online")

		case client := <-h.unregister:
			h.dropClient(client, "disconnected")

		case d := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for _, key := range d.Keys {
				if key == d.ExcludeKey {
					continue
				}
				client, ok := h.clients[key]
				if !ok {
					continue
				}
				select {
				case client.send <- d.Data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.dropClient(client, "send buffer full")
			}
		}
	}
}

// dropClient removes client if it is still the session's current
// connection, closes its send channel and marks the session offline.
func (h *Hub) dropClient(client *Client, reason string) {
	key := client.Identity.Key()
	h.mu.Lock()
	existing, ok := h.clients[key]
	current := ok && existing == client
	if current {
		delete(h.clients, key)
		close(client.send)
	}
	h.mu.Unlock()
	if !current {
		return
	}
	slog.Info("client disconnected", "session", key, "reason", reason)
	h.trackPresence(key, false)
	h.broadcastPresence(client.Identity, "offline")
}

func (h *Hub) handleEvent(e store.Event) {
	keys := participantKeys(e.Chat)

	switch e.Kind {
	case store.EventChatCreated:
		h.deliver(keys, TypeChatCreated, ChatCreatedPayload{Chat: e.Chat}, "")

	case store.EventMessageSent:
		if e.Message == nil {
			return
		}
		h.deliver(keys, TypeMessageNew, NewMessagePayload{ChatID: e.Chat.ID, Message: *e.Message}, "")
		h.sendUnread(e.Chat, e.Message.SenderType.Opposite())

	case store.EventChatRead:
		h.deliver(keys, TypeReadReceipt, ReadReceiptPayload{
			ChatID: e.Chat.ID,
			Reader: e.Reader,
			ReadAt: formatTime(e.ReadAt),
		}, "")
		h.sendUnread(e.Chat, e.Reader)

	case store.EventBookingUpdated:
		if e.Message == nil {
			return
		}
		ref, ok := e.Message.BookingRef()
		if !ok {
			return
		}
		h.deliver(keys, TypeBookingUpdated, BookingUpdatedPayload{
			ChatID:     e.Chat.ID,
			MessageID:  e.Message.ID,
			BookingRef: ref,
		}, "")
	}
}

func (h *Hub) sendUnread(c models.Chat, side models.SenderType) {
	userID := c.ParticipantID(side)
	data, err := NewWSMessage(TypeUnreadUpdate, UnreadUpdatePayload{
		ChatID:    c.ID,
		ChatCount: c.UnreadFor(side),
		Total:     h.Store.GetUnreadCount(userID, side),
	})
	if err != nil {
		return
	}
	h.SendToUser(sessionKey(userID, side), data)
}

func (h *Hub) deliver(keys []string, msgType string, payload interface{}, excludeKey string) {
	data, err := NewWSMessage(msgType, payload)
	if err != nil {
		slog.Error("failed to encode frame", "type", msgType, "error", err)
		return
	}
	h.Deliver(&Delivery{Keys: keys, Data: data, ExcludeKey: excludeKey})
}

func (h *Hub) Deliver(d *Delivery) {
	select {
	case h.broadcast <- d:
	case <-h.done:
	}
}

// broadcastPresence tells the session's chat counterparts that it went
// online or offline.
func (h *Hub) broadcastPresence(id auth.Identity, status string) {
	data, err := NewWSMessage(TypePresenceUpdate, PresenceUpdatePayload{
		UserID:   id.UserID,
		UserType: id.UserType,
		Status:   status,
	})
	if err != nil {
		return
	}
	h.mu.RLock()
	for key := range h.counterpartKeys(id) {
		client, ok := h.clients[key]
		if !ok {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
	h.mu.RUnlock()
}

// counterpartKeys returns the session keys of everyone who shares a chat
// with id.
func (h *Hub) counterpartKeys(id auth.Identity) map[string]bool {
	var chats []models.Chat
	switch id.UserType {
	case models.SenderAgency:
		chats = h.Store.GetChatsForAgency(id.UserID)
	case models.SenderFreelancer:
		chats = h.Store.GetChatsForFreelancer(id.UserID)
	}
	other := id.UserType.Opposite()
	keys := make(map[string]bool, len(chats))
	for _, c := range chats {
		keys[sessionKey(c.ParticipantID(other), other)] = true
	}
	return keys
}

func (h *Hub) trackPresence(key string, online bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	var err error
	if online {
		err = h.presence.SetOnline(ctx, key)
	} else {
		err = h.presence.SetOffline(ctx, key)
	}
	if err != nil {
		slog.Warn("failed to update presence", "session", key, "online", online, "error", err)
	}
}

func (h *Hub) refreshPresence(key string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := h.presence.Refresh(ctx, key); err != nil {
		slog.Debug("failed to refresh presence", "session", key, "error", err)
	}
}

func (h *Hub) SendToUser(key string, data []byte) {
	h.mu.RLock()
	client, ok := h.clients[key]
	if ok {
		select {
		case client.send <- data:
		default:
		}
	}
	h.mu.RUnlock()
}

// ConnectedKeys lists sessions connected to this hub.
func (h *Hub) ConnectedKeys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.clients))
	for key := range h.clients {
		keys = append(keys, key)
	}
	return keys
}

// OnlineKeys lists online sessions, from the presence tracker when one is
// configured and from local connections otherwise.
func (h *Hub) OnlineKeys(ctx context.Context) ([]string, error) {
	if h.presence == nil {
		return h.ConnectedKeys(), nil
	}
	return h.presence.Online(ctx)
}

// OnlineCounterparts lists the online sessions that share a chat with id.
func (h *Hub) OnlineCounterparts(ctx context.Context, id auth.Identity) ([]string, error) {
	online, err := h.OnlineKeys(ctx)
	if err != nil {
		return nil, err
	}
	counterparts := h.counterpartKeys(id)
	keys := []string{}
	for _, key := range online {
		if counterparts[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for key, client := range h.clients {
			close(client.send)
			delete(h.clients, key)
		}
	})
}

func participantKeys(c models.Chat) []string {
	return []string{
		sessionKey(c.AgencyID, models.SenderAgency),
		sessionKey(c.FreelancerID, models.SenderFreelancer),
	}
}

func sessionKey(userID string, side models.SenderType) string {
	return auth.Identity{UserID: userID, UserType: side}.Key()
}
