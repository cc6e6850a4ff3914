package domain

import (
	"context"
	"time"
)

// InternetPackage is a named service tier. Customers reference it by Name.
type InternetPackage struct {
	ID               string    `bson:"_id" json:"id"`
	Name             string    `bson:"name" json:"name" validate:"required"`
	Speed            string    `bson:"speed" json:"speed" validate:"required"`
	Price            int64     `bson:"price" json:"price" validate:"gte=0"` // whole rupiah
	Description      string    `bson:"description" json:"description"`
	Type             string    `bson:"type" json:"type"`
	IsMikrotikSynced bool      `bson:"is_mikrotik_synced" json:"is_mikrotik_synced"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

// PackageRepository defines operations for managing packages.
// Deletion is intentionally absent.
type PackageRepository interface {
	List(ctx context.Context) ([]*InternetPackage, error)
	GetByID(ctx context.Context, id string) (*InternetPackage, error)
	GetByName(ctx context.Context, name string) (*InternetPackage, error)
	Create(ctx context.Context, pkg *InternetPackage) error
	Update(ctx context.Context, pkg *InternetPackage) error
}
