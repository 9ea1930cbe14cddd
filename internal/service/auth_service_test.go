package service

import (
	"context"
	"testing"
	"time"

	"go-retail-pos/internal/model"
	"go-retail-pos/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*authService, *fakeUserRepo, *model.User, *recordingEvents) {
	t.Helper()
	user := &model.User{
		Email:    "kasir@example.com",
		FullName: "Kasir",
		IsActive: true,
		Role:     &model.Role{Code: model.RoleStaff},
	}
	require.NoError(t, user.SetPassword("rahasia1"))
	repo := newFakeUserRepo(user)
	publisher := &recordingEvents{}
	svc := NewAuthService(repo, jwt.NewManager("test-secret", time.Hour), publisher, 5*time.Minute).(*authService)
	return svc, repo, user, publisher
}

func TestLoginIssuesTokenAndRotatesSession(t *testing.T) {
	svc, repo, user, _ := newAuthFixture(t)

	first, err := svc.Login(user.Email, "rahasia1")
	require.NoError(t, err)
	require.NotEmpty(t, first.Token)

	_, err = svc.ValidateToken(first.Token)
	require.NoError(t, err)

	second, err := svc.Login(user.Email, "rahasia1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(first.Token)
	assert.ErrorIs(t, err, ErrSessionReplaced)
	_, err = svc.ValidateToken(second.Token)
	assert.NoError(t, err)
	assert.NotEmpty(t, repo.get(user.ID).TokenVersion)
}

func TestLoginFailures(t *testing.T) {
	svc, repo, user, _ := newAuthFixture(t)

	_, err := svc.Login(user.Email, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("nobody@example.com", "rahasia1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	repo.get(user.ID).IsActive = false
	_, err = svc.Login(user.Email, "rahasia1")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestValidateTokenIdleTimeout(t *testing.T) {
	svc, _, user, _ := newAuthFixture(t)

	resp, err := svc.Login(user.Email, "rahasia1")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	_, err = svc.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrSessionTimeout)
}

func TestResetPasswordInvalidatesSessions(t *testing.T) {
	svc, repo, user, _ := newAuthFixture(t)

	resp, err := svc.Login(user.Email, "rahasia1")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ResetPassword(user.Email, "nope", "baru1234"), ErrWrongPassword)
	assert.ErrorIs(t, svc.ResetPassword(user.Email, "rahasia1", "123"), ErrWeakPassword)
	require.NoError(t, svc.ResetPassword(user.Email, "rahasia1", "baru1234"))

	assert.True(t, repo.get(user.ID).CheckPassword("baru1234"))
	_, err = svc.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrSessionReplaced)
}

func TestSetPasswordForOperators(t *testing.T) {
	svc, repo, user, _ := newAuthFixture(t)

	require.NoError(t, svc.SetPassword(user.Email, "override1"))
	assert.True(t, repo.get(user.ID).CheckPassword("override1"))
	assert.ErrorIs(t, svc.SetPassword("ghost@example.com", "override1"), ErrUserNotFound)
}

func TestHeartbeatPublishesPresence(t *testing.T) {
	svc, repo, user, publisher := newAuthFixture(t)

	require.NoError(t, svc.Heartbeat(context.Background(), user.ID))

	assert.NotNil(t, repo.get(user.ID).LastSeenAt)
	require.Equal(t, 1, publisher.count())
	assert.Equal(t, user.ID.String(), publisher.events[0].Key)
}
