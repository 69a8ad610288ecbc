package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certtracker/certtracker-backend/api/controllers"
	"github.com/certtracker/certtracker-backend/api/middleware"
	"github.com/certtracker/certtracker-backend/internal/auth"
	"github.com/certtracker/certtracker-backend/internal/credentials"
	"github.com/certtracker/certtracker-backend/internal/notifications"
	"github.com/certtracker/certtracker-backend/internal/prefs"
	"github.com/certtracker/certtracker-backend/pkg/auth/session"
	"github.com/certtracker/certtracker-backend/pkg/config"
	"github.com/certtracker/certtracker-backend/pkg/db"
	"github.com/certtracker/certtracker-backend/pkg/logger"
	pkgredis "github.com/certtracker/certtracker-backend/pkg/redis"
)

// RouterParams carries every dependency the HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *pkgredis.Client
	Sessions session.AccessSessionChecker
	Registry *prometheus.Registry

	Auth          auth.Service
	Credentials   credentials.Service
	Notifications notifications.Service
	Preferences   prefs.Service
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	rateLimits := middleware.NewAuthRateLimit(p.Redis, p.Config.AuthRateLimit, p.Logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(rateLimits.Register).Post("/register", controllers.AuthRegister(p.Auth, p.Logger))
		r.With(rateLimits.Login).Post("/login", controllers.AuthLogin(p.Auth, p.Logger))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, p.Logger))
		r.With(rateLimits.ForgotPassword).Post("/forgot-password", controllers.AuthForgotPassword(p.Auth, p.Logger))
		r.Post("/reset-password", controllers.AuthResetPassword(p.Auth, p.Logger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.Config.JWT, p.Sessions, p.Logger))

		r.Post("/auth/logout", controllers.AuthLogout(p.Auth, p.Logger))

		r.Route("/credentials", func(r chi.Router) {
			r.Get("/", controllers.CredentialList(p.Credentials, p.Logger))
			r.Post("/", controllers.CredentialCreate(p.Credentials, p.Logger))
			r.Get("/{credentialId}", controllers.CredentialGet(p.Credentials, p.Logger))
			r.Put("/{credentialId}", controllers.CredentialUpdate(p.Credentials, p.Logger))
			r.Delete("/{credentialId}", controllers.CredentialDelete(p.Credentials, p.Logger))
		})

		r.Get("/dashboard/summary", controllers.DashboardSummary(p.Credentials, p.Logger))
		r.Get("/reminders/preview", controllers.ReminderPreview(p.Credentials, p.Preferences, p.Logger))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, p.Logger))
			r.Get("/unread-count", controllers.NotificationUnreadCount(p.Notifications, p.Logger))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, p.Logger))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, p.Logger))
		})

		r.Route("/preferences", func(r chi.Router) {
			r.Get("/", controllers.PreferencesGet(p.Preferences, p.Logger))
			r.Put("/", controllers.PreferencesUpdate(p.Preferences, p.Logger))
		})
	})

	return r
}
