package http

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Events        *EventHandler
	Registrations *RegistrationHandler
	Tokens        TokenValidator
	Logger        *slog.Logger
	// RequestTimeout bounds each request's context. Zero disables the limit.
	RequestTimeout time.Duration
	// StaticDir, when set, is served at / with index.html as the fallback page.
	StaticDir  string
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	responder := newResponder(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, codeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusMethodNotAllowed, codeMethod, "")
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		responder.writeSuccess(req.Context(), w, http.StatusOK, "Club events API is running", map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	requireAuth := RequireAuth(cfg.Tokens, logger)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			responder.writeError(req.Context(), w, http.StatusNotFound, codeNotFound, "Route not found")
		})

		if cfg.Auth != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/signup", cfg.Auth.Signup)
				r.Post("/login", cfg.Auth.Login)
				r.With(requireAuth).Get("/me", cfg.Auth.Me)
				r.With(requireAuth).Put("/profile", cfg.Auth.UpdateProfile)
			})
		}

		if cfg.Users != nil {
			r.With(requireAuth).Get("/users", cfg.Users.List)
		}

		if cfg.Events != nil {
			r.Route("/events", func(r chi.Router) {
				r.Get("/", cfg.Events.List)
				r.Get("/{id}", cfg.Events.Get)
				r.Group(func(r chi.Router) {
					r.Use(requireAuth)
					r.Get("/my/events", cfg.Events.Mine)
					r.Post("/", cfg.Events.Create)
					r.Put("/{id}", cfg.Events.Update)
					r.Delete("/{id}", cfg.Events.Delete)
					r.Patch("/{id}/toggle-status", cfg.Events.ToggleStatus)
				})
			})
		}

		if cfg.Registrations != nil {
			r.Route("/registrations", func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/events/{eventId}", cfg.Registrations.Register)
				r.Get("/events/{eventId}", cfg.Registrations.EventRegistrations)
				r.Get("/my", cfg.Registrations.Mine)
				r.Get("/{registrationId}", cfg.Registrations.Get)
				r.Delete("/{registrationId}", cfg.Registrations.Cancel)
				r.Post("/{registrationId}/feedback", cfg.Registrations.Feedback)
				r.Patch("/{registrationId}/status", cfg.Registrations.UpdateStatus)
				r.Patch("/{registrationId}/attendance", cfg.Registrations.UpdateAttendance)
				r.Patch("/{registrationId}/payment", cfg.Registrations.UpdatePayment)
			})
		}
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", spaHandler(cfg.StaticDir))
	}

	return r
}

// spaHandler serves files from dir and falls back to index.html for client side routes.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}
