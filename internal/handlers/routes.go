package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/umar/agency-chat/internal/auth"
	"github.com/umar/agency-chat/internal/bookings"
	"github.com/umar/agency-chat/internal/chat"
	"github.com/umar/agency-chat/internal/middleware"
	"github.com/umar/agency-chat/internal/store"
)

type Deps struct {
	Store         *store.Store
	Hub           *chat.Hub
	Bookings      *bookings.Router
	SendLimiter   *middleware.Limiter
	JWTSecret     string
	SessionTTL    time.Duration
	WebhookSecret string
	CORSOrigin    string
}

// NewRouter wires every HTTP and WebSocket route. CORS wraps the router so
// preflight requests are answered before route matching.
func NewRouter(d Deps) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.Logging)

	// Public routes
	router.HandleFunc("/health", Health(d.Store)).Methods("GET")
	router.HandleFunc("/api/session", auth.SessionHandler(d.JWTSecret, d.SessionTTL)).Methods("POST")
	router.HandleFunc("/api/bookings/status", BookingWebhook(d.Bookings, d.WebhookSecret)).Methods("POST")

	// WebSocket
	router.HandleFunc("/ws", chat.ServeWS(d.Hub, d.JWTSecret)).Methods("GET")

	// Session routes
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(auth.JWTMiddleware(d.JWTSecret))

	limited := middleware.RateLimit(d.SendLimiter)

	protected.HandleFunc("/chats", ListChats(d.Store)).Methods("GET")
	protected.HandleFunc("/chats", StartChat(d.Store)).Methods("POST")
	protected.HandleFunc("/chats/read-all", MarkAllRead(d.Store)).Methods("POST")
	protected.HandleFunc("/chats/{id}", GetChat(d.Store)).Methods("GET")
	protected.HandleFunc("/chats/{id}/read", MarkChatRead(d.Store)).Methods("POST")
	protected.Handle("/chats/{id}/messages", limited(SendMessage(d.Store))).Methods("POST")
	protected.Handle("/chats/{id}/bookings", limited(SendBookingRef(d.Store))).Methods("POST")
	protected.HandleFunc("/chats/{id}/bookings/{bookingID}", UpdateBookingStatus(d.Store)).Methods("PATCH")
	protected.HandleFunc("/unread", UnreadCount(d.Store)).Methods("GET")
	protected.HandleFunc("/presence", OnlineSessions(d.Hub)).Methods("GET")

	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{d.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Secret"},
		AllowCredentials: true,
	})(router)
}
