package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrScopeViolation is returned when a predicate that should be scoped lacks
// the scope clause in last position.
var ErrScopeViolation = errors.New("predicate is missing the industrial scope clause")

// Field is a logical column understood by the warehouse renderer
type Field string

const (
	FieldRootID         Field = "root_id"
	FieldCompanyName    Field = "company_name"
	FieldCapital        Field = "capital"
	FieldSizeClass      Field = "size_class"
	FieldStatus         Field = "status"
	FieldState          Field = "state"
	FieldMunicipality   Field = "municipality"
	FieldLegalNature    Field = "legal_nature"
	FieldClassification Field = "classification"
	FieldDivision       Field = "division"
	FieldStartDate      Field = "start_date"
)

// Op is a comparison operator
type Op string

const (
	OpEq      Op = "eq"
	OpIn      Op = "in"
	OpGte     Op = "gte"
	OpLte     Op = "lte"
	OpBetween Op = "between"
	// OpContains is a case-insensitive substring match; the param holds the raw term.
	OpContains Op = "contains"
	// OpPrefix matches values starting with the param.
	OpPrefix Op = "prefix"
)

// ParamType is the type a parameter is bound as
type ParamType string

const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeDate   ParamType = "date"
)

// Param is a named, typed bind value
type Param struct {
	Name  string    `json:"name"`
	Type  ParamType `json:"type"`
	Value any       `json:"value"`
}

// Clause is one ANDed condition
type Clause struct {
	Field  Field   `json:"field"`
	Op     Op      `json:"op"`
	Params []Param `json:"params"`
}

// Dropped records a filter element rejected during compilation
type Dropped struct {
	Field  Field  `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Predicate is the compiled, order-stable form of a Request
type Predicate struct {
	Clauses []Clause   `json:"clauses"`
	Mode    BranchMode `json:"branch_mode"`
	// Scoped is false when a search term suspended the scope policy.
	Scoped  bool      `json:"scoped"`
	Dropped []Dropped `json:"dropped,omitempty"`
}

// Params flattens clause parameters in clause order
func (p Predicate) Params() []Param {
	var out []Param
	for _, c := range p.Clauses {
		out = append(out, c.Params...)
	}
	return out
}

// Has reports whether a clause on field exists
func (p Predicate) Has(field Field) bool {
	for _, c := range p.Clauses {
		if c.Field == field {
			return true
		}
	}
	return false
}

// Without returns a copy of the predicate minus clauses on field. The
// trailing scope clause on FieldDivision is never removed.
func (p Predicate) Without(field Field) Predicate {
	out := p
	out.Clauses = make([]Clause, 0, len(p.Clauses))
	for i, c := range p.Clauses {
		if c.Field == field && !(p.Scoped && i == len(p.Clauses)-1) {
			continue
		}
		out.Clauses = append(out.Clauses, c)
	}
	return out
}

// CheckScope asserts that a scoped predicate ends with the policy clause
func (p Predicate) CheckScope(policy ScopePolicy) error {
	if !policy.Enabled() {
		return nil
	}
	if !p.Scoped {
		// only a search may lift the scope
		if p.Has(FieldRootID) || p.Has(FieldCompanyName) {
			return nil
		}
		return ErrScopeViolation
	}
	if len(p.Clauses) == 0 {
		return ErrScopeViolation
	}
	last := p.Clauses[len(p.Clauses)-1]
	if last.Field != FieldDivision || last.Op != OpBetween || len(last.Params) != 2 {
		return ErrScopeViolation
	}
	if last.Params[0].Value != policy.Low || last.Params[1].Value != policy.High {
		return ErrScopeViolation
	}
	return nil
}

// Key returns a stable digest of the predicate, usable as a cache or log key
func (p Predicate) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode=%s;scoped=%t", p.Mode, p.Scoped)
	for _, c := range p.Clauses {
		fmt.Fprintf(&b, ";%s:%s", c.Field, c.Op)
		for _, param := range c.Params {
			fmt.Fprintf(&b, ",%s=%v", param.Name, param.Value)
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}
