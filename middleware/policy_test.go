package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		expr       string
		prefix     string
		permitAll  bool
		wantString string // "" means no requirement
	}{
		{"permitAll", "ROLE_", true, ""},
		{"authenticated", "ROLE_", false, ""},
		{"hasAuthority('read')", "ROLE_", false, "hasAuthority('read')"},
		{`hasAuthority("read")`, "ROLE_", false, "hasAuthority('read')"},
		{"hasAnyAuthority('read','write')", "ROLE_", false, "hasAnyAuthority('read','write')"},
		{"hasAnyAuthority('read', 'write')", "ROLE_", false, "hasAnyAuthority('read','write')"},
		{"hasRole('admin')", "ROLE_", false, "hasRole('ROLE_admin')"},
		{"hasRole('ROLE_admin')", "ROLE_", false, "hasRole('ROLE_admin')"},
		{"hasRole('admin')", "", false, "hasRole('admin')"},
		{"  hasRole('USER')  ", "ROLE_", false, "hasRole('ROLE_USER')"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := ParsePolicy(tt.expr, tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.permitAll, p.PermitAll)
			if tt.wantString == "" {
				assert.Nil(t, p.Requirement)
				return
			}
			require.NotNil(t, p.Requirement)
			assert.Equal(t, tt.wantString, p.Requirement.String())
		})
	}
}

func TestParsePolicy_Errors(t *testing.T) {
	for _, expr := range []string{
		"",
		"denyAll",
		"hasAuthority",
		"hasAuthority(read)",
		"hasAuthority('read'",
		"hasAuthority('')",
		"hasAuthority('a','b')",
		"hasAuthority()",
		"hasAnyAuthority()",
		"hasRole('a','b')",
		"hasPermission('read')",
		"hasAuthority('read\")",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParsePolicy(expr, "ROLE_")
			assert.Error(t, err)
		})
	}
}
