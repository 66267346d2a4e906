package authroles

import (
	"slices"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper maps groups by simple string membership rules.
// Admin wins over marketing; everyone else is a plain user.
type StaticRoleMapper struct {
	AdminGroup     string
	MarketingGroup string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	if m.AdminGroup != "" && slices.Contains(groups, m.AdminGroup) {
		return domainauth.RoleAdmin
	}
	if m.MarketingGroup != "" && slices.Contains(groups, m.MarketingGroup) {
		return domainauth.RoleMarketing
	}
	return domainauth.RoleUser
}
