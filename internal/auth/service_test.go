package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omreki/domasy/internal/users"
)

type stubUserRepo struct {
	user *users.User
}

func (r *stubUserRepo) Create(_ context.Context, _ *users.User) error { return nil }

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*users.User, error) {
	if r.user != nil && r.user.Email == email {
		return r.user, nil
	}
	return nil, nil
}

func (r *stubUserRepo) ListByRole(_ context.Context, _ users.Role) ([]users.User, error) {
	return nil, nil
}

func seededService(t *testing.T, password string) (*Service, *users.User) {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user := &users.User{
		ID:           uuid.New(),
		Name:         "Otieno",
		Email:        "otieno@example.com",
		PasswordHash: hash,
		Role:         users.RoleEmployee,
	}
	return NewService(&stubUserRepo{user: user}, "test-secret", time.Hour), user
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	service, user := seededService(t, "hunter22")

	token, loggedIn, err := service.Login(context.Background(), user.Email, "hunter22")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	id, err := service.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestLoginWrongPassword(t *testing.T) {
	service, user := seededService(t, "hunter22")

	_, _, err := service.Login(context.Background(), user.Email, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	service, _ := seededService(t, "hunter22")

	_, _, err := service.Login(context.Background(), "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	service, user := seededService(t, "hunter22")
	other := NewService(&stubUserRepo{user: user}, "other-secret", time.Hour)

	token, err := other.IssueToken(user)
	require.NoError(t, err)

	_, err = service.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	user := &users.User{ID: uuid.New(), Email: "otieno@example.com", Role: users.RoleEmployee}
	service := NewService(&stubUserRepo{user: user}, "test-secret", time.Nanosecond)

	token, err := service.IssueToken(user)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = service.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
