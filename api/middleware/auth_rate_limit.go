package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/certtracker/certtracker-backend/api/responses"
	"github.com/certtracker/certtracker-backend/pkg/config"
	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
	"github.com/certtracker/certtracker-backend/pkg/logger"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimit throttles credential-guessing on the auth endpoints. Each
// request is counted per client IP and, when the body carries one, per email,
// so a botnet cannot hammer a single account from many addresses.
type AuthRateLimit struct {
	limiter rateLimiter
	cfg     config.AuthRateLimitConfig
	logg    *logger.Logger
}

func NewAuthRateLimit(limiter rateLimiter, cfg config.AuthRateLimitConfig, logg *logger.Logger) *AuthRateLimit {
	return &AuthRateLimit{limiter: limiter, cfg: cfg, logg: logg}
}

func (a *AuthRateLimit) Login(next http.Handler) http.Handler {
	return a.limit(next, "login", int64(a.cfg.LoginEmailLimit), int64(a.cfg.LoginIPLimit), a.cfg.LoginWindow)
}

func (a *AuthRateLimit) Register(next http.Handler) http.Handler {
	return a.limit(next, "register", int64(a.cfg.RegisterEmailLimit), int64(a.cfg.RegisterIPLimit), a.cfg.RegisterWindow)
}

func (a *AuthRateLimit) ForgotPassword(next http.Handler) http.Handler {
	return a.limit(next, "forgot_password", int64(a.cfg.ForgotEmailLimit), int64(a.cfg.ForgotIPLimit), a.cfg.ForgotWindow)
}

func (a *AuthRateLimit) limit(next http.Handler, route string, emailLimit, ipLimit int64, window time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scopes := []struct {
			scope string
			limit int64
		}{
			{scope: route + ":ip:" + clientIP(r), limit: ipLimit},
		}
		if email := peekEmail(r); email != "" {
			scopes = append(scopes, struct {
				scope string
				limit int64
			}{scope: route + ":email:" + email, limit: emailLimit})
		}

		for _, s := range scopes {
			allowed, _, err := a.limiter.FixedWindowAllow(r.Context(), s.scope, s.limit, window)
			if err != nil {
				// Redis trouble must not lock everyone out of login.
				a.logg.Warn(a.logg.WithField(r.Context(), "scope", s.scope), "rate limit check failed, allowing request")
				continue
			}
			if !allowed {
				responses.WriteError(r.Context(), a.logg, w,
					pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// peekEmail reads the email field without consuming the body for the handler.
func peekEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var probe struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(probe.Email))
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
