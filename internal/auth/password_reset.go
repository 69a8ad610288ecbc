package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
	"github.com/certtracker/certtracker-backend/pkg/mailer"
	"github.com/certtracker/certtracker-backend/pkg/security"
)

const resetTokenBytes = 32

// ForgotPassword issues a single-use reset token and mails the reset link.
// Unknown or inactive accounts return success so the response does not reveal
// whether the email is registered.
func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if s.resetTokens == nil || s.mail == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "password reset unavailable")
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return nil
	}

	token, err := security.GenerateOpaqueToken(resetTokenBytes)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset token")
	}
	if err := s.resetTokens.Set(ctx, s.resetTokens.PasswordResetKey(token), user.ID.String(), s.resetTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reset token")
	}

	body, err := mailer.RenderPasswordReset(mailer.PasswordResetEmail{
		UserName:         user.FullName,
		ResetLink:        s.resetLink(token),
		ExpiresInMinutes: int(s.resetTTL.Minutes()),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render reset email")
	}
	if err := s.mail.Send(ctx, user.Email, "Reset your CertTracker password", body); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send reset email")
	}
	return nil
}

// ResetPassword redeems a reset token for a new password. The token is
// deleted once the password changes so it cannot be replayed.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if s.resetTokens == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "password reset unavailable")
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reset token is required")
	}
	if len(req.Password) < 8 {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	key := s.resetTokens.PasswordResetKey(token)
	rawID, err := s.resetTokens.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired reset token")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reset token")
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired reset token")
	}

	hash, err := security.HashPassword(req.Password, s.password)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	if err := s.resetTokens.Del(ctx, key); err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "failed to delete spent reset token")
	}
	return nil
}

func (s *service) resetLink(token string) string {
	return s.baseURL + "/reset-password?token=" + token
}
