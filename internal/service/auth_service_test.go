package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edusched/edusched-api/internal/models"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
)

type authRepoStub struct {
	byEmail   map[string]*models.User
	lastLogin []string
}

func (s *authRepoStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) UpdateLastLogin(_ context.Context, id string, _ time.Time) error {
	s.lastLogin = append(s.lastLogin, id)
	return nil
}

func authFixture(t *testing.T) (*AuthService, *authRepoStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &authRepoStub{byEmail: map[string]*models.User{
		"owner@school.test": {
			ID:           "user-1",
			Email:        "owner@school.test",
			PasswordHash: string(hash),
			FullName:     "School Owner",
			Role:         models.RoleOwner,
			Active:       true,
		},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", Expiry: time.Hour, Issuer: "edusched"})
	return svc, repo
}

func TestLoginSuccess(t *testing.T) {
	svc, repo := authFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "owner@school.test", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleOwner, resp.User.Role)
	assert.Equal(t, []string{"user-1"}, repo.lastLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.Actor{UserID: "user-1", Role: models.RoleOwner}, claims.Actor())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "owner@school.test", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, errCode(t, err))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@school.test", Password: "s3cret"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, errCode(t, err))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "s3cret"})
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo := authFixture(t)
	repo.byEmail["owner@school.test"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "owner@school.test", Password: "s3cret"})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, errCode(t, err))
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))

	other := NewAuthService(&authRepoStub{}, nil, nil, AuthConfig{Secret: "other-secret", Expiry: time.Hour})
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "owner@school.test", Password: "s3cret"})
	require.NoError(t, err)
	_, err = other.ValidateToken(resp.AccessToken)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))
}
