package auth

import (
	"fmt"
	"strings"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Permit
)

// String returns "permit" or "deny".
func (d Decision) String() string {
	if d == Permit {
		return "permit"
	}
	return "deny"
}

// Requirement is what a protected operation demands of a principal.
// Use RequireAuthority, RequireAnyAuthority or RequireRole to build one.
type Requirement interface {
	satisfiedBy(p *Principal) bool
	String() string
}

type authorityRequirement struct {
	name string
}

func (r authorityRequirement) satisfiedBy(p *Principal) bool {
	return p.HasAuthority(r.name)
}

func (r authorityRequirement) String() string {
	return fmt.Sprintf("hasAuthority('%s')", r.name)
}

type anyAuthorityRequirement struct {
	names []string
}

func (r anyAuthorityRequirement) satisfiedBy(p *Principal) bool {
	for _, name := range r.names {
		if p.HasAuthority(name) {
			return true
		}
	}
	return false
}

func (r anyAuthorityRequirement) String() string {
	quoted := make([]string, len(r.names))
	for i, name := range r.names {
		quoted[i] = "'" + name + "'"
	}
	return fmt.Sprintf("hasAnyAuthority(%s)", strings.Join(quoted, ","))
}

type roleRequirement struct {
	role string
}

func (r roleRequirement) satisfiedBy(p *Principal) bool {
	return p.HasRole(r.role)
}

func (r roleRequirement) String() string {
	return fmt.Sprintf("hasRole('%s')", r.role)
}

// RequireAuthority permits principals holding name.
func RequireAuthority(name string) Requirement {
	return authorityRequirement{name: name}
}

// RequireAnyAuthority permits principals holding at least one of names.
// An empty list permits nobody.
func RequireAnyAuthority(names ...string) Requirement {
	return anyAuthorityRequirement{names: append([]string(nil), names...)}
}

// RequireRole permits principals holding role. The comparison is exact;
// any naming prefix must already be applied by the caller.
func RequireRole(role string) Requirement {
	return roleRequirement{role: role}
}

// Authorizer evaluates requirements. It holds no state and is safe for
// concurrent use.
type Authorizer struct{}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// Authorize decides whether p satisfies req. A nil principal or requirement
// is denied.
func (a *Authorizer) Authorize(p *Principal, req Requirement) Decision {
	if p == nil || req == nil {
		return Deny
	}
	if req.satisfiedBy(p) {
		return Permit
	}
	return Deny
}
