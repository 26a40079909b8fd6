package middleware

import (
	"fmt"
	"strings"

	"github.com/bfyxzls/webSecurity/internal/auth"
)

// Policy is a parsed route access expression.
type Policy struct {
	Expression  string
	PermitAll   bool
	Requirement auth.Requirement // nil means any authenticated principal
}

// ParsePolicy parses an access expression:
//
//	permitAll
//	authenticated
//	hasAuthority('read')
//	hasAnyAuthority('read','write')
//	hasRole('admin')
//
// rolePrefix is prepended to hasRole arguments that do not already carry it.
func ParsePolicy(expr, rolePrefix string) (Policy, error) {
	expr = strings.TrimSpace(expr)
	policy := Policy{Expression: expr}

	switch expr {
	case "permitAll":
		policy.PermitAll = true
		return policy, nil
	case "authenticated":
		return policy, nil
	}

	open := strings.IndexByte(expr, '(')
	if open <= 0 || !strings.HasSuffix(expr, ")") {
		return Policy{}, fmt.Errorf("unsupported policy expression %q", expr)
	}
	name := expr[:open]
	args, err := parseArgs(expr[open+1 : len(expr)-1])
	if err != nil {
		return Policy{}, fmt.Errorf("policy %q: %w", expr, err)
	}

	switch name {
	case "hasAuthority":
		if len(args) != 1 {
			return Policy{}, fmt.Errorf("policy %q: hasAuthority takes exactly one argument", expr)
		}
		policy.Requirement = auth.RequireAuthority(args[0])
	case "hasAnyAuthority":
		if len(args) == 0 {
			return Policy{}, fmt.Errorf("policy %q: hasAnyAuthority needs at least one argument", expr)
		}
		policy.Requirement = auth.RequireAnyAuthority(args...)
	case "hasRole":
		if len(args) != 1 {
			return Policy{}, fmt.Errorf("policy %q: hasRole takes exactly one argument", expr)
		}
		role := args[0]
		if !strings.HasPrefix(role, rolePrefix) {
			role = rolePrefix + role
		}
		policy.Requirement = auth.RequireRole(role)
	default:
		return Policy{}, fmt.Errorf("unsupported policy function %q", name)
	}

	return policy, nil
}

func parseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	args := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if len(part) < 2 {
			return nil, fmt.Errorf("argument %q must be quoted", part)
		}
		quote := part[0]
		if (quote != '\'' && quote != '"') || part[len(part)-1] != quote {
			return nil, fmt.Errorf("argument %q must be quoted", part)
		}
		value := part[1 : len(part)-1]
		if value == "" {
			return nil, fmt.Errorf("empty argument")
		}
		args = append(args, value)
	}
	return args, nil
}
