package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/certtracker/certtracker-backend/internal/users"
	pkgauth "github.com/certtracker/certtracker-backend/pkg/auth"
	"github.com/certtracker/certtracker-backend/pkg/auth/session"
	"github.com/certtracker/certtracker-backend/pkg/config"
	"github.com/certtracker/certtracker-backend/pkg/db/models"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	pkgerrors "github.com/certtracker/certtracker-backend/pkg/errors"
	"github.com/certtracker/certtracker-backend/pkg/logger"
	"github.com/certtracker/certtracker-backend/pkg/security"
)

type fakeUserRepo struct {
	byEmail    map[string]*models.User
	byID       map[uuid.UUID]*models.User
	createErr  error
	lastLogins map[uuid.UUID]time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail:    make(map[string]*models.User),
		byID:       make(map[uuid.UUID]*models.User),
		lastLogins: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeUserRepo) add(u *models.User) {
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
}

func (f *fakeUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, exists := f.byEmail[dto.Email]; exists {
		return nil, errors.New(`duplicate key value violates unique constraint "idx_users_email"`)
	}
	user := dto.ToModel()
	user.ID = uuid.New()
	f.add(user)
	return user, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.lastLogins[id] = at
	return nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	user, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

type fakeSessions struct {
	sessions  map[string]string
	generated int
	rotateErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]string)}
}

func (f *fakeSessions) Generate(ctx context.Context, accessID string) (string, error) {
	f.generated++
	token := "refresh-" + accessID
	f.sessions[accessID] = token
	return token, nil
}

func (f *fakeSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if f.rotateErr != nil {
		return "", "", f.rotateErr
	}
	stored, ok := f.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.sessions, oldAccessID)
	newID := session.NewAccessID()
	token := "refresh-" + newID
	f.sessions[newID] = token
	return newID, token, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, accessID string) error {
	delete(f.sessions, accessID)
	return nil
}

var testJWT = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "certtracker-test",
	ExpirationMinutes: 15,
}

var testPassword = config.PasswordConfig{
	ArgonMemoryKB:    8,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func newTestService(t *testing.T, repo *fakeUserRepo, sessions *fakeSessions) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Users:    repo,
		Sessions: sessions,
		JWT:      testJWT,
		Password: testPassword,
		Logger:   logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard}),
		Now:      func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, repo *fakeUserRepo, email, password string, plan enums.Plan) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FullName:     "Test User",
		Plan:         plan,
		IsActive:     true,
	}
	repo.add(user)
	return user
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error %s, got %v", code, err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s", code, typed.Code())
	}
}

func TestRegisterCreatesFreePlanUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(t, repo, newFakeSessions())

	got, err := svc.Register(context.Background(), RegisterRequest{
		Email:    " Nurse@Example.com ",
		Password: "hunter2hunter2",
		FullName: "Dana Nurse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if got.Email != "nurse@example.com" {
		t.Fatalf("expected normalized email, got %q", got.Email)
	}
	if got.Plan != enums.PlanFree {
		t.Fatalf("expected free plan default, got %s", got.Plan)
	}

	stored := repo.byEmail["nurse@example.com"]
	if stored == nil {
		t.Fatal("expected user persisted")
	}
	if stored.PasswordHash == "hunter2hunter2" {
		t.Fatal("password must be stored hashed")
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeSessions())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "a@example.com",
		Password: "short",
		FullName: "A",
	})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(t, repo, newFakeSessions())
	seedUser(t, repo, "taken@example.com", "hunter2hunter2", enums.PlanFree)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "taken@example.com",
		Password: "hunter2hunter2",
		FullName: "Dup",
	})
	expectCode(t, err, pkgerrors.CodeConflict)
}

func TestLoginIssuesTokensAndRecordsLogin(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := newFakeSessions()
	svc := newTestService(t, repo, sessions)
	user := seedUser(t, repo, "vet@example.com", "correct horse", enums.PlanPro)

	got, err := svc.Login(context.Background(), LoginRequest{
		Email:    "Vet@Example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.User.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.User.ID)
	}
	if got.Tokens.AccessToken == "" || got.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens issued")
	}
	if sessions.generated != 1 {
		t.Fatalf("expected one session, got %d", sessions.generated)
	}
	if _, ok := repo.lastLogins[user.ID]; !ok {
		t.Fatal("expected last login recorded")
	}

	claims, err := pkgauth.ParseAccessToken(testJWT, got.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.UserID != user.ID || claims.Plan != enums.PlanPro {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, ok := sessions.sessions[claims.ID]; !ok {
		t.Fatal("expected session keyed by jti")
	}
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(t, repo, newFakeSessions())
	seedUser(t, repo, "known@example.com", "correct horse", enums.PlanFree)

	_, errWrongPassword := svc.Login(context.Background(), LoginRequest{
		Email:    "known@example.com",
		Password: "wrong",
	})
	_, errUnknownEmail := svc.Login(context.Background(), LoginRequest{
		Email:    "unknown@example.com",
		Password: "correct horse",
	})

	expectCode(t, errWrongPassword, pkgerrors.CodeUnauthorized)
	expectCode(t, errUnknownEmail, pkgerrors.CodeUnauthorized)
	if errWrongPassword.Error() != errUnknownEmail.Error() {
		t.Fatalf("login failures must be indistinguishable: %q vs %q", errWrongPassword, errUnknownEmail)
	}
}

func TestLoginInactiveUserRejected(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(t, repo, newFakeSessions())
	user := seedUser(t, repo, "gone@example.com", "correct horse", enums.PlanFree)
	user.IsActive = false

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "gone@example.com",
		Password: "correct horse",
	})
	expectCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestRefreshRotatesSession(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := newFakeSessions()
	svc := newTestService(t, repo, sessions)
	seedUser(t, repo, "vet@example.com", "correct horse", enums.PlanPro)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "vet@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.Tokens.AccessToken,
		RefreshToken: login.Tokens.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.Tokens.RefreshToken {
		t.Fatal("expected refresh token rotated")
	}

	// The old pair is spent; replaying it must fail.
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.Tokens.AccessToken,
		RefreshToken: login.Tokens.RefreshToken,
	})
	expectCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := newFakeSessions()
	svc := newTestService(t, repo, sessions)
	user := seedUser(t, repo, "vet@example.com", "correct horse", enums.PlanPro)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "vet@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	user.IsActive = false
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.Tokens.AccessToken,
		RefreshToken: login.Tokens.RefreshToken,
	})
	expectCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLogoutRevokesSession(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := newFakeSessions()
	svc := newTestService(t, repo, sessions)
	seedUser(t, repo, "vet@example.com", "correct horse", enums.PlanFree)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "vet@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgauth.ParseAccessToken(testJWT, login.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := sessions.sessions[claims.ID]; ok {
		t.Fatal("expected session removed")
	}
}
