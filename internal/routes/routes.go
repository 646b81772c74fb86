package routes

import (
	"net/http"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/handlers"
	appmiddleware "github.com/avelhart/shelfmark/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes.
//
// The IP throttle on the public auth routes caps request volume; the
// credential-keyed limiter inside the login path handles brute force.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	googleHandler *handlers.GoogleHandler,
	userHandler *handlers.UserHandler,
	guard *auth.Guard,
	healthCheck http.HandlerFunc,
) {
	throttle := appmiddleware.ThrottleByIP(appmiddleware.DefaultAuthThrottle())

	router.Get("/health", healthCheck)

	// Public auth routes
	router.Group(func(r chi.Router) {
		r.Use(throttle)

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/verify-email", authHandler.VerifyEmail)
		r.Post("/auth/resend-verification", authHandler.ResendVerification)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)

		// OAuth popup flow. The callback is hit by a browser redirect
		// from Google, so it is a GET with no auth of its own.
		r.Get("/auth/google/register", googleHandler.AuthorizeRegister)
		r.Get("/auth/google/login", googleHandler.AuthorizeLogin)
		r.Get("/auth/google/connect", googleHandler.AuthorizeConnect)
		r.Get("/auth/google/callback", googleHandler.Callback)
	})

	// Session-holder routes
	router.Group(func(r chi.Router) {
		r.Use(guard.RequireSession)

		r.Post("/auth/logout-all", authHandler.LogoutAll)
	})

	// Account routes, reachable with a session or an API key
	router.Group(func(r chi.Router) {
		r.Use(guard.RequireAny)

		r.Get("/users/me", userHandler.Me)
		r.Patch("/users/me", userHandler.UpdateSettings)
		r.Post("/users/me/password", userHandler.ChangePassword)
		r.Get("/users/me/photo", userHandler.Photo)
		r.Delete("/users/me", userHandler.Terminate)

		r.Post("/users/api-key", userHandler.RotateAPIKey)
		r.Delete("/users/api-key", userHandler.RevokeAPIKey)
	})
}
