package permission

import (
	"context"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"staff-auth-core/internal/staff/domain"
)

const policyQuery = "data.staffauth.permissions.grants"

// Default Rego policy mapping staff roles to permission grants. Super admins
// are granted by capability, never by matching a display name.
const defaultRegoPolicy = `package staffauth.permissions

default grants = []

role_grants := {
	"support": {
		"bookings.read",
		"customers.read",
	},
	"guide": {
		"bookings.read",
		"tours.read",
		"tours.checkin",
	},
	"agent": {
		"bookings.read",
		"bookings.write",
		"customers.read",
		"customers.write",
		"tours.read",
	},
	"manager": {
		"bookings.read",
		"bookings.write",
		"bookings.cancel",
		"customers.read",
		"customers.write",
		"tours.read",
		"tours.write",
		"reports.read",
	},
	"admin": {
		"bookings.read",
		"bookings.write",
		"bookings.cancel",
		"customers.read",
		"customers.write",
		"tours.read",
		"tours.write",
		"reports.read",
		"staff.read",
		"staff.manage",
		"audit.read",
	},
}

all_grants contains p if {
	some role
	p := role_grants[role][_]
}

grants := all_grants if {
	input.super_admin == true
}

grants := role_grants[input.role] if {
	input.super_admin != true
	role_grants[input.role]
}
`

// StaffGetter is the slice of the staff repository the source needs.
type StaffGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Staff, error)
}

// OPASource resolves permissions by evaluating a Rego policy against the
// principal's role and super-admin capability. The policy compiles once at
// construction; evaluation is per call.
type OPASource struct {
	staff    StaffGetter
	compiler *ast.Compiler
}

// NewOPASource returns a Source backed by the default role policy.
func NewOPASource(staff StaffGetter) (*OPASource, error) {
	return NewOPASourceWithPolicy(staff, defaultRegoPolicy)
}

// NewOPASourceWithPolicy returns a Source backed by the given Rego module.
// The module must define data.staffauth.permissions.grants as a set or array
// of permission strings.
func NewOPASourceWithPolicy(staff StaffGetter, policy string) (*OPASource, error) {
	compiler, err := ast.CompileModules(map[string]string{"permissions.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile permission policy: %w", err)
	}
	return &OPASource{staff: staff, compiler: compiler}, nil
}

// Permissions loads the principal and evaluates the policy. An unknown
// principal or unmapped role resolves to the empty set, not an error.
func (s *OPASource) Permissions(ctx context.Context, principalID string) ([]string, error) {
	member, err := s.staff.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, nil
	}

	input := map[string]interface{}{
		"role":        member.Role,
		"super_admin": member.SuperAdmin,
	}
	q := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(s.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("eval permission policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	raw, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("permission policy returned %T, want list", rs[0].Expressions[0].Value)
	}
	perms := make([]string, 0, len(raw))
	for _, v := range raw {
		p, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("permission policy returned %T element, want string", v)
		}
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms, nil
}

// HealthCheck verifies the compiled policy evaluates against a minimal input.
func (s *OPASource) HealthCheck(ctx context.Context) error {
	q := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(s.compiler),
		rego.Input(map[string]interface{}{"role": "support", "super_admin": false}),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval permission policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("permission policy returned no result")
	}
	return nil
}
