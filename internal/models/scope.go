package models

// Scope identifies the organization a request acts on behalf of.
// Every org-scoped repository and service call receives one explicitly.
type Scope struct {
	OrgID string
}

// NewScope returns a Scope for the given organization id.
func NewScope(orgID string) Scope {
	return Scope{OrgID: orgID}
}

// Valid reports whether the scope names an organization.
func (s Scope) Valid() bool {
	return s.OrgID != ""
}
