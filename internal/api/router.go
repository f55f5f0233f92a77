package api

import (
	"askpaul-backend/internal/config"
	"askpaul-backend/internal/handlers"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	RelayHandler        *handlers.RelayHandler
	AuthHandler         *handlers.AuthHandler
	ConversationHandler *handlers.ConversationHandlers
	Revocations         RevocationChecker
	Config              *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second)) // provider calls can be slow

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if deps.RelayHandler == nil {
		panic("RelayHandler dependency is nil in router setup")
	}
	r.Group(func(r chi.Router) {
		if deps.Config.ChatRatePerMinute > 0 {
			r.Use(NewIPRateLimiter(deps.Config.ChatRatePerMinute).Middleware)
		}
		r.HandleFunc("/chat", deps.RelayHandler.HandleChat)
	})

	if deps.AuthHandler == nil {
		panic("AuthHandler dependency is nil in router setup")
	}
	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Get("/confirm", deps.AuthHandler.HandleConfirm)
		r.Post("/login", deps.AuthHandler.HandleLogin)
		r.With(JwtAuthMiddleware(deps.Config.JWTSecret, deps.Revocations)).Post("/logout", deps.AuthHandler.HandleLogout)
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret, deps.Revocations))

		r.Get("/profile", deps.AuthHandler.HandleGetProfile)

		if deps.ConversationHandler != nil {
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", deps.ConversationHandler.HandleListConversations)
				r.Post("/", deps.ConversationHandler.HandleCreateConversation)
				r.Delete("/{conversationID}", deps.ConversationHandler.HandleDeleteConversation)
				r.Get("/{conversationID}/messages", deps.ConversationHandler.HandleListMessages)
				r.Post("/{conversationID}/messages", deps.ConversationHandler.HandleAppendMessage)
			})
		} else {
			log.Println("WARN: ConversationHandler dependency is nil, skipping /v1/conversations routes.")
		}
	})

	return r
}
