package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	authorizer := NewAuthorizer()
	p := NewPrincipal("lind", nil, WithAuthorities("read"), WithRoles("ROLE_USER"))

	tests := []struct {
		name string
		req  Requirement
		want Decision
	}{
		{"held authority", RequireAuthority("read"), Permit},
		{"missing authority", RequireAuthority("write"), Deny},
		{"authority names are case sensitive", RequireAuthority("READ"), Deny},
		{"empty authority name", RequireAuthority(""), Deny},
		{"any authority with one match", RequireAnyAuthority("write", "read"), Permit},
		{"any authority with no match", RequireAnyAuthority("write", "delete"), Deny},
		{"any authority with empty list", RequireAnyAuthority(), Deny},
		{"exact role", RequireRole("ROLE_USER"), Permit},
		{"role without prefix is not matched", RequireRole("USER"), Deny},
		{"role is not an authority", RequireAuthority("ROLE_USER"), Deny},
		{"authority is not a role", RequireRole("read"), Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, authorizer.Authorize(p, tt.req))
		})
	}
}

func TestAuthorize_NilInputs(t *testing.T) {
	authorizer := NewAuthorizer()

	assert.Equal(t, Deny, authorizer.Authorize(nil, RequireAuthority("read")))
	assert.Equal(t, Deny, authorizer.Authorize(NewPrincipal("lind", nil, WithAuthorities("read")), nil))
}

func TestAuthorize_Pure(t *testing.T) {
	authorizer := NewAuthorizer()
	p := NewPrincipal("lind", nil, WithAuthorities("read"), WithRoles("USER"))
	reqs := []Requirement{
		RequireAuthority("read"),
		RequireAuthority("write"),
		RequireAnyAuthority("read", "write"),
		RequireRole("USER"),
		RequireRole("admin"),
	}

	for _, req := range reqs {
		first := authorizer.Authorize(p, req)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, authorizer.Authorize(p, req), req.String())
		}
	}
}

func TestAuthorize_MonotonicInAuthorities(t *testing.T) {
	authorizer := NewAuthorizer()
	base := NewPrincipal("lind", nil, WithAuthorities("read"))
	reqs := []Requirement{
		RequireAuthority("read"),
		RequireAuthority("write"),
		RequireAuthority("delete"),
		RequireAnyAuthority("write", "delete"),
		RequireAnyAuthority("read"),
		RequireAnyAuthority(),
	}

	for _, extra := range []string{"write", "delete", "read", "admin"} {
		grown := NewPrincipal("lind", nil, WithAuthorities(append(base.Authorities(), extra)...))
		for _, req := range reqs {
			before := authorizer.Authorize(base, req)
			after := authorizer.Authorize(grown, req)
			if before == Permit {
				assert.Equal(t, Permit, after, "adding %q flipped %s to deny", extra, req)
			}
		}
	}
}

func TestRequirementString(t *testing.T) {
	assert.Equal(t, "hasAuthority('write')", RequireAuthority("write").String())
	assert.Equal(t, "hasAnyAuthority('read','write')", RequireAnyAuthority("read", "write").String())
	assert.Equal(t, "hasRole('ROLE_admin')", RequireRole("ROLE_admin").String())
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "permit", Permit.String())
	assert.Equal(t, "deny", Deny.String())
}
