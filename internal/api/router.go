package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"echobox/internal/account"
	"echobox/internal/auth"
	"echobox/internal/config"
	"echobox/internal/constants"
	"echobox/internal/db"
	"echobox/internal/echo"
	"echobox/internal/media"
	"echobox/internal/ws"
)

// Deps are the collaborators the HTTP surface routes to.
type Deps struct {
	Config     *config.Config
	Database   *db.DB
	Users      *db.UserRepository
	JWT        *auth.JWTService
	Accounts   *account.Service
	Echos      *echo.Service
	Ingester   Ingester
	LocalMedia *media.LocalStore
	Hub        *ws.Hub
	Cache      Pinger
}

type Server struct {
	router *chi.Mux
	config *config.Config
	hub    *ws.Hub
}

func NewServer(d Deps) *Server {
	cfg := d.Config

	authHandler := NewAuthHandler(d.Accounts)
	userHandler := NewUserHandler(d.Accounts)
	echoHandler := NewEchoHandler(d.Echos, d.Ingester)
	mediaHandler := NewMediaHandler(d.LocalMedia)
	serverInfoHandler := NewServerInfoHandler(cfg.Server.Name, cfg.Storage.Mode, d.Ingester.MaxUploadBytes())
	wsHandler := NewWebSocketHandler(d.Hub, d.JWT, d.Users)
	healthHandler := NewHealthHandler(d.Database, d.Cache)

	authMiddleware := NewAuthMiddleware(d.JWT, d.Users)

	otpLimiter := rateLimitPerMinute(cfg.RateLimit.OTPRequestsPerMinute)
	loginLimiter := rateLimitPerMinute(cfg.RateLimit.LoginRequestsPerMinute)
	wsLimiter := rateLimitPerMinute(cfg.RateLimit.WSUpgradesPerMinute)
	smallBody := maxBodySizeMiddleware(1 << 20) // 1 MB

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		notFound(w, fmt.Sprintf("Not Found - %s %s", r.Method, r.URL.String()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, constants.ErrCodeInvalidRequest,
			fmt.Sprintf("Method Not Allowed - %s %s", r.Method, r.URL.String()))
	})

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/server/info", serverInfoHandler.GetInfo)

		r.Route("/users", func(r chi.Router) {
			r.Use(smallBody)
			r.With(otpLimiter).Post("/signup", authHandler.Signup)
			r.With(otpLimiter).Post("/verify-otp", authHandler.VerifyOTP)
			r.With(otpLimiter).Post("/resend-otp", authHandler.ResendOTP)
			r.With(otpLimiter).Post("/request-reset-pass", authHandler.RequestPasswordReset)
			r.With(otpLimiter).Post("/verify-reset-otp", authHandler.VerifyResetOTP)
			r.With(otpLimiter).Post("/reset-password", authHandler.ResetPassword)
			r.With(loginLimiter).Post("/login", authHandler.Login)
			r.With(authMiddleware.RequireAuth).Get("/profile", userHandler.GetProfile)
		})

		r.Route("/echos", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Post("/", echoHandler.Create)
			r.Get("/feed", echoHandler.Feed)
			r.Get("/pending", echoHandler.Pending)
			r.Get("/my-echos", echoHandler.Mine)

			r.Group(func(r chi.Router) {
				r.Use(smallBody)
				r.Post("/{echoID}/golive", echoHandler.GoLive)
				r.Patch("/{echoID}/caption", echoHandler.UpdateCaption)
				r.Delete("/{echoID}", echoHandler.Delete)
			})
		})
	})

	r.Get("/uploads/audio/{name}", mediaHandler.GetAudio)
	r.With(wsLimiter).Get("/ws", wsHandler.ServeWS)

	return &Server{
		router: r,
		config: cfg,
		hub:    d.Hub,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Shutdown() {
	s.hub.Shutdown()
}

// rateLimitPerMinute limits by client IP and answers with the JSON error
// shape.
func rateLimitPerMinute(requests int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "Too many requests, please try again later")
		}),
	)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
