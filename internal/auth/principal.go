package auth

import (
	"encoding/json"
	"sort"
)

// Principal is an identity with its granted authorities and roles.
// Fields are unexported so the identifier and credential hash cannot be
// changed or read once the principal has been built.
type Principal struct {
	id          string
	hash        []byte
	authorities map[string]struct{}
	roles       map[string]struct{}
	enabled     bool
	locked      bool
}

// PrincipalOption configures a Principal built by NewPrincipal.
type PrincipalOption func(*Principal)

// WithAuthorities grants fine-grained authorities such as "read" or "write".
func WithAuthorities(names ...string) PrincipalOption {
	return func(p *Principal) {
		addAll(p.authorities, names)
	}
}

// WithRoles grants roles. Names are stored exactly as given.
func WithRoles(roles ...string) PrincipalOption {
	return func(p *Principal) {
		addAll(p.roles, roles)
	}
}

// WithEnabled sets the account-enabled flag. Principals are enabled by default.
func WithEnabled(enabled bool) PrincipalOption {
	return func(p *Principal) {
		p.enabled = enabled
	}
}

// WithLocked sets the account-locked flag.
func WithLocked(locked bool) PrincipalOption {
	return func(p *Principal) {
		p.locked = locked
	}
}

// NewPrincipal builds a principal record as held by a CredentialStore.
func NewPrincipal(id string, passwordHash []byte, opts ...PrincipalOption) *Principal {
	p := &Principal{
		id:          id,
		hash:        append([]byte(nil), passwordHash...),
		authorities: make(map[string]struct{}),
		roles:       make(map[string]struct{}),
		enabled:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the principal identifier.
func (p *Principal) ID() string {
	return p.id
}

// Authorities returns the granted authorities in sorted order.
func (p *Principal) Authorities() []string {
	return sortedKeys(p.authorities)
}

// Roles returns the granted roles in sorted order.
func (p *Principal) Roles() []string {
	return sortedKeys(p.roles)
}

// HasAuthority reports whether name is one of the principal's authorities.
func (p *Principal) HasAuthority(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.authorities[name]
	return ok
}

// HasRole reports whether role is one of the principal's roles.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	_, ok := p.roles[role]
	return ok
}

// Enabled reports whether the account is enabled.
func (p *Principal) Enabled() bool {
	return p.enabled
}

// Locked reports whether the account is locked.
func (p *Principal) Locked() bool {
	return p.locked
}

// MarshalJSON renders the public view of the principal. The credential hash
// is never included.
func (p *Principal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string   `json:"id"`
		Authorities []string `json:"authorities"`
		Roles       []string `json:"roles"`
		Enabled     bool     `json:"enabled"`
		Locked      bool     `json:"locked"`
	}{
		ID:          p.id,
		Authorities: p.Authorities(),
		Roles:       p.Roles(),
		Enabled:     p.enabled,
		Locked:      p.locked,
	})
}

// withoutCredential returns a copy with the credential hash erased.
func (p *Principal) withoutCredential() *Principal {
	c := p.clone()
	c.hash = nil
	return c
}

func (p *Principal) clone() *Principal {
	c := &Principal{
		id:          p.id,
		hash:        append([]byte(nil), p.hash...),
		authorities: make(map[string]struct{}, len(p.authorities)),
		roles:       make(map[string]struct{}, len(p.roles)),
		enabled:     p.enabled,
		locked:      p.locked,
	}
	for k := range p.authorities {
		c.authorities[k] = struct{}{}
	}
	for k := range p.roles {
		c.roles[k] = struct{}{}
	}
	return c
}

func addAll(set map[string]struct{}, names []string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
