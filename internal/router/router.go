package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dealboard/internal/config"
	"dealboard/internal/handler"
	"dealboard/internal/middleware"
	"dealboard/internal/model"
	"dealboard/internal/service"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Captcha    *handler.CaptchaHandler
	Auth       *handler.AuthHandler
	Engagement *handler.EngagementHandler
	Role       *handler.RoleHandler
	User       *handler.UserHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Metrics)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Get("/captcha", h.Captcha.Issue)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
			auth.With(authMiddleware.RequireAuth).Post("/change-password", h.Auth.ChangePassword)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		api.Route("/engagements", func(eng chi.Router) {
			eng.Use(authMiddleware.RequireAuth)
			eng.Get("/", h.Engagement.List)
			eng.Post("/", h.Engagement.Create)
			eng.Get("/{id}", h.Engagement.Get)
			eng.Put("/{id}", h.Engagement.Update)
			eng.Delete("/{id}", h.Engagement.Delete)
		})

		api.Route("/roles", func(roles chi.Router) {
			roles.Use(authMiddleware.RequireAuth)
			roles.With(authMiddleware.RequireTier(model.TierElevated)).Get("/", h.Role.List)
			roles.With(authMiddleware.RequirePermission(service.CapManageRoles)).Post("/", h.Role.Create)
			roles.With(authMiddleware.RequirePermission(service.CapManageRoles)).Put("/{id}/permissions", h.Role.UpdatePermissions)
			roles.With(authMiddleware.RequirePermission(service.CapManageRoles)).Delete("/{id}", h.Role.Deactivate)
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(authMiddleware.RequireAuth)
			users.With(authMiddleware.RequirePermission(service.CapManageUsers)).Get("/", h.User.List)
			users.With(authMiddleware.RequirePermission(service.CapManageUsers)).Post("/", h.User.Create)
			users.With(authMiddleware.RequirePermission(service.CapManageUsers)).Get("/{id}", h.User.Get)
			users.With(authMiddleware.RequirePermission(service.CapManageUsers)).Put("/{id}/active", h.User.SetActive)
			users.With(authMiddleware.RequirePermission(service.CapAssignRoles)).Post("/{user_id}/role", h.Role.Assign)
			users.With(authMiddleware.RequirePermission(service.CapAssignRoles)).Get("/{user_id}/role-history", h.Role.AssignmentHistory)
		})
	})

	return r
}
