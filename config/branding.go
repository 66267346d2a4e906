package config

import "strings"

// BrandingConfig is the product naming shown in notifications and CLI output.
type BrandingConfig struct {
	AppName      string `env:"BRANDING_APP_NAME"     envDefault:"NRE Infusion OneHub Suite"`
	ShortName    string `env:"BRANDING_SHORT_NAME"   envDefault:"OneHub Suite"`
	CompanyName  string `env:"BRANDING_COMPANY_NAME" envDefault:"NRE Infusion"`
	AppURL       string `env:"APP_URL"               envDefault:"http://localhost:3000"`
	SupportEmail string `env:"SUPPORT_EMAIL"         envDefault:"support@example.com"`
	Version      string `env:"BRANDING_VERSION"      envDefault:"1.0.0"`
}

// Sanitize fills empty names from the other fields.
func (b *BrandingConfig) Sanitize() {
	b.AppName = strings.TrimSpace(b.AppName)
	b.ShortName = strings.TrimSpace(b.ShortName)
	if b.AppName == "" {
		b.AppName = "NRE Infusion OneHub Suite"
	}
	if b.ShortName == "" {
		b.ShortName = b.AppName
	}
}

// Subject prefixes topic with the short product name, e.g. "[OneHub Suite] Session expired".
func (b BrandingConfig) Subject(topic string) string {
	return "[" + b.ShortName + "] " + topic
}
