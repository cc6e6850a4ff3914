package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/config"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*AuthService, *repository.MemoryUserRepository) {
	t.Helper()
	users := repository.NewMemoryUserRepository()
	clk := clock.Fixed(time.Now())
	svc := NewAuthService(users, config.JWTConfig{Secret: "test-secret", AccessTokenExpiry: time.Hour}, clk, nil)

	_, err := svc.CreateUser(context.Background(), UserInput{
		Name:     "Administrator",
		Username: "admin",
		Password: "admin123",
		Role:     domain.RoleAdmin,
	})
	require.NoError(t, err)
	return svc, users
}

func TestAuth_Login(t *testing.T) {
	ctx := context.Background()
	svc, users := newAuthFixture(t)

	resp, err := svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.NotNil(t, resp.User.LastLogin)

	claims := &domain.StaffClaims{}
	_, err = jwt.ParseWithClaims(resp.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, "admin", claims.Username)

	stored, err := users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestAuth_LoginFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody", "admin123")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	tech, err := svc.CreateUser(ctx, UserInput{Name: "Budi", Username: "budi", Password: "tech123", Role: domain.RoleTechnician, Status: "INACTIVE"})
	require.NoError(t, err)
	assert.Equal(t, "INACTIVE", tech.Status)
	_, err = svc.Login(ctx, "budi", "tech123")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuth_CreateAndUpdateUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthFixture(t)

	_, err := svc.CreateUser(ctx, UserInput{Name: "No Password", Username: "nopass", Role: domain.RoleTechnician})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateUser(ctx, UserInput{Name: "Bad Role", Username: "bad", Password: "secret1", Role: "OWNER"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	u, err := svc.CreateUser(ctx, UserInput{Name: "Budi", Username: "budi", Password: "tech123", Role: domain.RoleTechnician})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", u.Status)

	updated, err := svc.UpdateUser(ctx, u.ID, UserInput{Name: "Budi T", Username: "budi", Role: domain.RoleTechnician})
	require.NoError(t, err)
	assert.Equal(t, "Budi T", updated.Name)

	// empty password on update keeps the old one
	_, err = svc.Login(ctx, "budi", "tech123")
	require.NoError(t, err)
}
