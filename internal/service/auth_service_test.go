package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/pkg/config"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	students         map[string]*models.Student
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) FindByCarnet(ctx context.Context, carnet string) (*models.Student, error) {
	student, ok := m.students[carnet]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func hashPassword(t *testing.T, raw string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(t *testing.T) (*AuthService, *mockAuthRepo, *recordingAuditRepo) {
	t.Helper()
	repo := &mockAuthRepo{
		users: map[string]*models.User{
			"admin@example.com":    {ID: "admin-1", Email: "admin@example.com", FullName: "Admin", PasswordHash: hashPassword(t, "password"), Role: models.RoleAdmin, Active: true},
			"disabled@example.com": {ID: "admin-2", Email: "disabled@example.com", PasswordHash: hashPassword(t, "password"), Role: models.RoleAdmin},
		},
		students: map[string]*models.Student{
			"C-001": {ID: "stu-1", Carnet: "C-001", FullName: "Ana Pérez", PasswordHash: hashPassword(t, "secret123"), StudentType: models.StudentTypeInternal, Active: true},
			"C-002": {ID: "stu-2", Carnet: "C-002", FullName: "Sin Clave", Active: true},
		},
	}
	auditRepo := &recordingAuditRepo{}
	audit := NewAuditService(auditRepo, config.AuditConfig{}, nil, nil)
	svc := NewAuthService(repo, repo, audit, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "enrollment-finance-api",
	})
	svc.now = fixedClock
	return svc, repo, auditRepo
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	svc, repo, auditRepo := newTestAuthService(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "Admin@Example.com ", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	logs := auditRepo.snapshot()
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionLogin, logs[0].Action)
	assert.Equal(t, "ADMIN", logs[0].ActorKind)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "password"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "disabled@example.com", Password: "password"})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "not-an-email", Password: "password"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceStudentLogin(t *testing.T) {
	svc, _, auditRepo := newTestAuthService(t)
	ctx := context.Background()

	res, err := svc.StudentLogin(ctx, models.StudentLoginRequest{Carnet: "C-001", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", res.User.ID)
	assert.Equal(t, models.RoleStudent, res.User.Role)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	actor, ok := models.ActorFromClaims(claims)
	require.True(t, ok)
	assert.Equal(t, models.Actor{Kind: models.ActorStudent, ID: "stu-1", Role: models.RoleStudent}, actor)

	_, err = svc.StudentLogin(ctx, models.StudentLoginRequest{Carnet: "C-002", Password: "anything"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.StudentLogin(ctx, models.StudentLoginRequest{Carnet: "C-001", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	logs := auditRepo.snapshot()
	require.Len(t, logs, 1)
	assert.Equal(t, "STUDENT", logs[0].ActorKind)
}

func TestValidateToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	token, err := svc.IssueToken(models.UserInfo{ID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	svc.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForeignSignatures(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "enrollment-finance-api",
		ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
	}}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	otherIssuer := *claims
	otherIssuer.Issuer = "someone-else"
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &otherIssuer).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)
}

func TestAuthServiceLoginNormalizesCredentials(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, models.LoginRequest{Email: "  ADMIN@example.COM\t", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "admin-1", res.User.ID)

	res, err = svc.StudentLogin(ctx, models.StudentLoginRequest{Carnet: " C-001 ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", res.User.ID)

	_, err = svc.StudentLogin(ctx, models.StudentLoginRequest{Carnet: "   ", Password: "secret123"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
