package domain

import (
	"context"
	"time"
)

// Role constants
const (
	RoleAdmin      = "ADMIN"
	RoleTechnician = "TECHNICIAN"
)

// SystemUser is a staff account of the admin dashboard
type SystemUser struct {
	ID           string     `bson:"_id" json:"id"`
	Name         string     `bson:"name" json:"name" validate:"required"`
	Username     string     `bson:"username" json:"username" validate:"required"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	Role         string     `bson:"role" json:"role" validate:"oneof=ADMIN TECHNICIAN"`
	Email        string     `bson:"email" json:"email" validate:"omitempty,email"`
	Phone        string     `bson:"phone" json:"phone"`
	Address      string     `bson:"address,omitempty" json:"address,omitempty"`
	Status       string     `bson:"status" json:"status" validate:"oneof=ACTIVE INACTIVE"`
	LastLogin    *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	JoinDate     time.Time  `bson:"join_date" json:"join_date"`
	AvatarURL    string     `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
}

// IsActive reports whether the account may log in
func (u *SystemUser) IsActive() bool {
	return u.Status == "ACTIVE"
}

// UserRepository defines operations for managing staff accounts
type UserRepository interface {
	List(ctx context.Context) ([]*SystemUser, error)
	GetByID(ctx context.Context, id string) (*SystemUser, error)
	GetByUsername(ctx context.Context, username string) (*SystemUser, error)
	Create(ctx context.Context, user *SystemUser) error
	Update(ctx context.Context, user *SystemUser) error
}
