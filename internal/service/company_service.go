package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"github.com/phbiling/isp-billing/internal/domain"
)

const systemLogPageSize = 50

var logoContentTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// CompanyService manages the company profile and the read-only network views
type CompanyService struct {
	company  domain.CompanyRepository
	files    domain.FileRepository
	routers  domain.RouterRepository
	logs     domain.SystemLogRepository
	activity *ActivityLog
	maxLogo  int64
}

// NewCompanyService creates a new CompanyService. maxLogoBytes of zero disables the size check.
func NewCompanyService(
	company domain.CompanyRepository,
	files domain.FileRepository,
	routers domain.RouterRepository,
	logs domain.SystemLogRepository,
	activity *ActivityLog,
	maxLogoBytes int64,
) *CompanyService {
	return &CompanyService{
		company:  company,
		files:    files,
		routers:  routers,
		logs:     logs,
		activity: activity,
		maxLogo:  maxLogoBytes,
	}
}

func (s *CompanyService) Get(ctx context.Context) (*domain.CompanyConfig, error) {
	return s.company.Get(ctx)
}

// Update replaces the profile. An empty LogoURL keeps the current logo.
func (s *CompanyService) Update(ctx context.Context, cfg domain.CompanyConfig) (*domain.CompanyConfig, error) {
	if err := validateStruct(cfg); err != nil {
		return nil, err
	}
	if cfg.LogoURL == "" {
		current, err := s.company.Get(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "load company profile")
		}
		cfg.LogoURL = current.LogoURL
	}
	if err := s.company.Update(ctx, &cfg); err != nil {
		return nil, errors.Wrap(err, "update company profile")
	}
	s.activity.Info(ctx, "Settings", "Company profile updated")
	return &cfg, nil
}

// UploadLogo stores an image and points the profile at it
func (s *CompanyService) UploadLogo(ctx context.Context, data []byte, filename, contentType string) (*domain.CompanyConfig, error) {
	if s.files == nil {
		return nil, errors.New("file storage is not configured")
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := logoContentTypes[contentType]
	if !ok {
		return nil, errors.Mark(errors.Newf("unsupported logo type %q", contentType), domain.ErrValidation)
	}
	if len(data) == 0 {
		return nil, errors.Mark(errors.New("logo file is empty"), domain.ErrValidation)
	}
	if s.maxLogo > 0 && int64(len(data)) > s.maxLogo {
		return nil, errors.Mark(errors.Newf("logo exceeds %d bytes", s.maxLogo), domain.ErrValidation)
	}
	if e := strings.ToLower(filepath.Ext(filename)); e != "" {
		ext = e
	}

	url, err := s.files.Upload(ctx, data, fmt.Sprintf("company/logo-%s%s", ulid.Make().String(), ext), contentType)
	if err != nil {
		return nil, errors.Wrap(err, "upload logo")
	}

	cfg, err := s.company.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load company profile")
	}
	cfg.LogoURL = url
	if err := s.company.Update(ctx, cfg); err != nil {
		return nil, errors.Wrap(err, "update company profile")
	}
	s.activity.Info(ctx, "Settings", "Company logo updated")
	return cfg, nil
}

// Routers lists the router inventory
func (s *CompanyService) Routers(ctx context.Context) ([]*domain.Router, error) {
	return s.routers.List(ctx)
}

// Logs lists recent system log entries, newest first
func (s *CompanyService) Logs(ctx context.Context, limit int) ([]*domain.SystemLog, error) {
	if limit <= 0 || limit > systemLogPageSize {
		limit = systemLogPageSize
	}
	return s.logs.ListRecent(ctx, limit)
}
