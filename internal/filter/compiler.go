package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nexconsult/cnpj-analytics/internal/utils"
)

// Compiler turns filter requests into predicates under a scope policy.
// It is pure and safe for concurrent use.
type Compiler struct {
	policy ScopePolicy
}

// NewCompiler creates a compiler applying policy to every unsearched request
func NewCompiler(policy ScopePolicy) *Compiler {
	return &Compiler{policy: policy}
}

// Policy returns the scope policy in use
func (c *Compiler) Policy() ScopePolicy {
	return c.policy
}

var codePunctuation = strings.NewReplacer(".", "", "/", "", "-", "", " ", "")

// Compile validates every element of req independently and emits the
// predicate. It never fails: rejected elements are reported in Dropped.
func (c *Compiler) Compile(req Request) Predicate {
	b := &builder{}

	search := utils.ParseSearchTerm(req.SearchTerm)
	switch search.Kind {
	case utils.SearchRoot:
		root := search.Value
		if len(root) > 8 {
			root = root[:8]
		}
		if len(root) == 8 {
			b.add(FieldRootID, OpEq, Param{Name: "search_root", Type: TypeString, Value: root})
		} else {
			b.add(FieldRootID, OpPrefix, Param{Name: "search_root", Type: TypeString, Value: root})
		}
	case utils.SearchName:
		b.add(FieldCompanyName, OpContains, Param{Name: "search_name", Type: TypeString, Value: search.Value})
	}

	if v, ok := b.amount("min_capital", req.MinCapital); ok {
		b.add(FieldCapital, OpGte, Param{Name: "min_capital", Type: TypeFloat, Value: v})
	}
	if v, ok := b.amount("max_capital", req.MaxCapital); ok {
		b.add(FieldCapital, OpLte, Param{Name: "max_capital", Type: TypeFloat, Value: v})
	}

	b.in(FieldSizeClass, "size_class", TypeString, req.SizeClasses, func(s string) (string, bool) {
		s = strings.TrimSpace(s)
		return s, len(s) == 2 && utils.IsSizeClass(s)
	})

	if req.ActiveOnly {
		b.add(FieldStatus, OpEq, Param{Name: "status", Type: TypeString, Value: utils.StatusActive})
	}

	b.in(FieldState, "state", TypeString, req.States, func(s string) (string, bool) {
		s = strings.ToUpper(strings.TrimSpace(s))
		return s, utils.IsState(s)
	})
	b.in(FieldMunicipality, "municipality", TypeString, req.MunicipalityCodes, func(s string) (string, bool) {
		s = strings.TrimSpace(s)
		if !utils.IsDigits(s) || len(s) > 7 {
			return s, false
		}
		return utils.PadCode(s, 4), true
	})
	b.in(FieldLegalNature, "legal_nature", TypeString, req.LegalNatureCodes, func(s string) (string, bool) {
		s = codePunctuation.Replace(s)
		return s, len(s) == 4 && utils.IsDigits(s)
	})
	b.in(FieldClassification, "classification", TypeString, req.ClassificationCodes, func(s string) (string, bool) {
		s = codePunctuation.Replace(s)
		return s, len(s) == 7 && utils.IsDigits(s)
	})
	b.in(FieldDivision, "division", TypeInt, req.SectorDivisionCodes, func(s string) (string, bool) {
		s = utils.PadCode(s, 2)
		return s, len(s) == 2 && utils.IsDigits(s)
	})

	if d, ok := b.date("date_start", req.DateStart); ok {
		b.add(FieldStartDate, OpGte, Param{Name: "date_start", Type: TypeDate, Value: d})
	}
	if d, ok := b.date("date_end", req.DateEnd); ok {
		b.add(FieldStartDate, OpLte, Param{Name: "date_end", Type: TypeDate, Value: d})
	}

	scoped := c.policy.Enabled() && search.Kind == utils.SearchNone
	if scoped {
		b.clauses = append(b.clauses, c.policy.Clause())
	}

	return Predicate{
		Clauses: b.clauses,
		Mode:    req.BranchMode.Resolved(),
		Scoped:  scoped,
		Dropped: b.dropped,
	}
}

type builder struct {
	clauses []Clause
	dropped []Dropped
}

func (b *builder) add(field Field, op Op, params ...Param) {
	b.clauses = append(b.clauses, Clause{Field: field, Op: op, Params: params})
}

func (b *builder) drop(field Field, value, reason string) {
	b.dropped = append(b.dropped, Dropped{Field: field, Value: value, Reason: reason})
}

// amount returns a positive bound; zero, negative and absent bounds emit nothing
func (b *builder) amount(name string, a *Amount) (float64, bool) {
	if a == nil {
		return 0, false
	}
	if a.invalid {
		b.drop(FieldCapital, a.raw, name+" is not a number")
		return 0, false
	}
	if !a.Valid || !a.Decimal.IsPositive() {
		return 0, false
	}
	return a.Decimal.InexactFloat64(), true
}

func (b *builder) date(name, raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	d := utils.NormalizeDate(raw)
	if d == "" {
		b.drop(FieldStartDate, raw, name+" is not a valid date")
		return "", false
	}
	return d, true
}

// in validates each element on its own, then sorts and deduplicates the
// survivors into a single IN clause. An empty result adds nothing.
func (b *builder) in(field Field, name string, typ ParamType, values []string, valid func(string) (string, bool)) {
	if len(values) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(values))
	codes := make([]string, 0, len(values))
	for _, raw := range values {
		code, ok := valid(raw)
		if !ok {
			b.drop(field, raw, "malformed code")
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return
	}
	sort.Strings(codes)

	params := make([]Param, len(codes))
	for i, code := range codes {
		var value any = code
		if typ == TypeInt {
			n, _ := strconv.Atoi(code)
			value = n
		}
		params[i] = Param{Name: fmt.Sprintf("%s_%d", name, i), Type: typ, Value: value}
	}
	b.add(field, OpIn, params...)
}
