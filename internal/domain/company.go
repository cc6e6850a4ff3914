package domain

import "context"

// CompanyConfig is the ISP's public profile, printed on invoice documents
type CompanyConfig struct {
	Name    string `bson:"name" json:"name" validate:"required"`
	Address string `bson:"address" json:"address"`
	Phone   string `bson:"phone" json:"phone"`
	Email   string `bson:"email" json:"email" validate:"omitempty,email"`
	LogoURL string `bson:"logo_url" json:"logo_url"`
	Slogan  string `bson:"slogan" json:"slogan"`
}

// CompanyRepository holds the single company profile
type CompanyRepository interface {
	Get(ctx context.Context) (*CompanyConfig, error)
	Update(ctx context.Context, cfg *CompanyConfig) error
}

// FileRepository stores binary artifacts (logos, archived invoice documents)
type FileRepository interface {
	Upload(ctx context.Context, file []byte, filename string, contentType string) (string, error)
}
