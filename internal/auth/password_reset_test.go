package auth

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certtracker/certtracker-backend/pkg/config"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
	"github.com/certtracker/certtracker-backend/pkg/logger"
	"github.com/certtracker/certtracker-backend/pkg/security"
)

type fakeResetStore struct {
	values map[string]string
}

func newFakeResetStore() *fakeResetStore {
	return &fakeResetStore{values: make(map[string]string)}
}

func (f *fakeResetStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeResetStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return value, nil
}

func (f *fakeResetStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeResetStore) PasswordResetKey(token string) string {
	return "ct:password_reset:" + token
}

// tokenFor pulls the raw token back out of the single stored key.
func (f *fakeResetStore) tokenFor(t *testing.T) string {
	t.Helper()
	if len(f.values) != 1 {
		t.Fatalf("expected exactly one stored token, got %d", len(f.values))
	}
	for key := range f.values {
		return strings.TrimPrefix(key, "ct:password_reset:")
	}
	return ""
}

type fakeResetMailer struct {
	to       []string
	subjects []string
	bodies   []string
}

func (f *fakeResetMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.to = append(f.to, to)
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, htmlBody)
	return nil
}

func newResetService(t *testing.T, repo *fakeUserRepo, store *fakeResetStore, mail *fakeResetMailer) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Users:       repo,
		Sessions:    newFakeSessions(),
		ResetTokens: store,
		Mailer:      mail,
		JWT:         testJWT,
		Password:    config.PasswordConfig{
			ArgonMemoryKB:        8,
			ArgonTime:            1,
			ArgonParallelism:     1,
			ArgonSaltLen:         16,
			ArgonKeyLen:          32,
			ResetTokenTTLMinutes: 30,
		},
		BaseURL: "https://certtracker.test",
		Logger:  logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestForgotPasswordStoresTokenAndEmailsLink(t *testing.T) {
	repo := newFakeUserRepo()
	store := newFakeResetStore()
	mail := &fakeResetMailer{}
	svc := newResetService(t, repo, store, mail)
	user := seedUser(t, repo, "vet@example.com", "correct horse", enums.PlanFree)

	if err := svc.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: " Vet@Example.com "}); err != nil {
		t.Fatalf("forgot password: %v", err)
	}

	token := store.tokenFor(t)
	if store.values[store.PasswordResetKey(token)] != user.ID.String() {
		t.Fatal("expected token mapped to the user id")
	}
	if len(mail.to) != 1 || mail.to[0] != "vet@example.com" {
		t.Fatalf("expected one reset email to the user, got %v", mail.to)
	}
	wantLink := "https://certtracker.test/reset-password?token=" + token
	if !strings.Contains(mail.bodies[0], wantLink) {
		t.Fatalf("expected body to carry %q", wantLink)
	}
}

func TestForgotPasswordUnknownEmailSendsNothing(t *testing.T) {
	store := newFakeResetStore()
	mail := &fakeResetMailer{}
	svc := newResetService(t, newFakeUserRepo(), store, mail)

	if err := svc.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: "nobody@example.com"}); err != nil {
		t.Fatalf("unknown emails must not error: %v", err)
	}
	if len(mail.to) != 0 {
		t.Fatalf("expected no email sent, got %v", mail.to)
	}
	if len(store.values) != 0 {
		t.Fatal("expected no token stored")
	}
}

func TestResetPasswordUpdatesHashAndSpendsToken(t *testing.T) {
	repo := newFakeUserRepo()
	store := newFakeResetStore()
	svc := newResetService(t, repo, store, &fakeResetMailer{})
	user := seedUser(t, repo, "vet@example.com", "correct horse", enums.PlanFree)

	if err := svc.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: "vet@example.com"}); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	token := store.tokenFor(t)

	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:    token,
		Password: "brand new secret",
	}); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	ok, err := security.VerifyPassword("brand new secret", user.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected new password to verify, ok=%v err=%v", ok, err)
	}

	// The token is single-use; replaying it must fail.
	err = svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:    token,
		Password: "another secret one",
	})
	expectCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	svc := newResetService(t, newFakeUserRepo(), newFakeResetStore(), &fakeResetMailer{})

	err := svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:    "never-issued",
		Password: "brand new secret",
	})
	expectCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestResetPasswordRejectsShortPassword(t *testing.T) {
	svc := newResetService(t, newFakeUserRepo(), newFakeResetStore(), &fakeResetMailer{})

	err := svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:    "whatever",
		Password: "short",
	})
	expectCode(t, err, pkgerrors.CodeValidation)
}
