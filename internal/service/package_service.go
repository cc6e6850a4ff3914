package service

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/phbiling/isp-billing/internal/domain"
)

// PackageInput is the create/update payload for service tiers
type PackageInput struct {
	Name        string `json:"name" validate:"required"`
	Speed       string `json:"speed" validate:"required"`
	Price       int64  `json:"price" validate:"gt=0"`
	Description string `json:"description"`
}

// PackageService manages the package catalogue. Packages are never deleted
// because customers reference them by name.
type PackageService struct {
	packages domain.PackageRepository
	activity *ActivityLog
}

// NewPackageService creates a new PackageService
func NewPackageService(packages domain.PackageRepository, activity *ActivityLog) *PackageService {
	return &PackageService{packages: packages, activity: activity}
}

func (s *PackageService) List(ctx context.Context) ([]*domain.InternetPackage, error) {
	return s.packages.List(ctx)
}

func (s *PackageService) Create(ctx context.Context, in PackageInput) (*domain.InternetPackage, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	pkg := &domain.InternetPackage{
		ID:          "PKG-" + ulid.Make().String(),
		Name:        strings.ToUpper(strings.TrimSpace(in.Name)),
		Speed:       in.Speed,
		Price:       in.Price,
		Description: in.Description,
		Type:        domain.ServiceTypePPPoE,
	}
	if err := s.packages.Create(ctx, pkg); err != nil {
		return nil, err
	}
	s.activity.Info(ctx, "Packages", "Added package %s (Rp %s)", pkg.Name, domain.FormatRupiah(pkg.Price))
	return pkg, nil
}

// Update edits a package. Customer fees and issued invoices are not touched.
func (s *PackageService) Update(ctx context.Context, id string, in PackageInput) (*domain.InternetPackage, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pkg.Name = strings.ToUpper(strings.TrimSpace(in.Name))
	pkg.Speed = in.Speed
	pkg.Price = in.Price
	pkg.Description = in.Description
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}
