package filter

import "github.com/nexconsult/cnpj-analytics/internal/utils"

// Industrial extraction and manufacturing divisions (CNAE sections B and C)
const (
	IndustrialLow  = 5
	IndustrialHigh = 33
)

// ScopePolicy restricts queries to an inclusive range of CNAE divisions.
// The zero value is disabled.
type ScopePolicy struct {
	Low  int
	High int
}

// IndustrialScope is the default policy, divisions 05 through 33
func IndustrialScope() ScopePolicy {
	return ScopePolicy{Low: IndustrialLow, High: IndustrialHigh}
}

// Unscoped returns a disabled policy
func Unscoped() ScopePolicy {
	return ScopePolicy{}
}

// NewScopePolicy builds a policy from a configured range; a non-positive or
// inverted range disables it.
func NewScopePolicy(low, high int) ScopePolicy {
	if low <= 0 || high < low {
		return Unscoped()
	}
	return ScopePolicy{Low: low, High: high}
}

// Enabled reports whether the policy restricts anything
func (p ScopePolicy) Enabled() bool {
	return p.Low > 0 && p.High >= p.Low
}

// InScope reports whether a classification code belongs to the policy range
func (p ScopePolicy) InScope(classificationCode string) bool {
	if !p.Enabled() {
		return true
	}
	division, ok := utils.DivisionOf(classificationCode)
	if !ok {
		return false
	}
	return division >= p.Low && division <= p.High
}

// Clause returns the predicate clause enforcing the policy
func (p ScopePolicy) Clause() Clause {
	return Clause{
		Field: FieldDivision,
		Op:    OpBetween,
		Params: []Param{
			{Name: "scope_low", Type: TypeInt, Value: p.Low},
			{Name: "scope_high", Type: TypeInt, Value: p.High},
		},
	}
}
