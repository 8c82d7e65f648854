package warehouse

import (
	"fmt"
	"strings"

	"github.com/nexconsult/cnpj-analytics/internal/filter"
)

// FromPopulation joins every establishment to its company. All query shapes
// select from this fragment so the population is defined in one place.
const FromPopulation = "FROM estabelecimentos st JOIN empresas e ON e.cnpj_basico = st.cnpj_basico"

// Headquarters flag value of identificador_matriz_filial
const HeadquartersFlag = "1"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Builder accumulates bind arguments while a statement is rendered, so
// placeholders are numbered in the order they appear in the SQL text.
type Builder struct {
	dialect Dialect
	args    []any
}

// NewBuilder creates a statement builder for dialect
func NewBuilder(d Dialect) *Builder {
	return &Builder{dialect: d}
}

// Bind registers a value and returns its placeholder
func (b *Builder) Bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// Args returns the bound values in placeholder order
func (b *Builder) Args() []any {
	return b.args
}

// Dialect returns the dialect the builder renders for
func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// Capital is the normalized capital expression of the joined company
func (b *Builder) Capital() string {
	return b.dialect.Capital("e.capital_social")
}

// Division is the CNAE division expression of the establishment
func (b *Builder) Division() string {
	return b.dialect.Division("st.cnae_fiscal_principal")
}

// Column maps a logical field to its SQL expression
func (b *Builder) Column(f filter.Field) string {
	switch f {
	case filter.FieldRootID:
		return "st.cnpj_basico"
	case filter.FieldCompanyName:
		return b.dialect.Upper("e.razao_social")
	case filter.FieldCapital:
		return b.Capital()
	case filter.FieldSizeClass:
		return "e.porte_empresa"
	case filter.FieldStatus:
		return "st.situacao_cadastral"
	case filter.FieldState:
		return "st.uf"
	case filter.FieldMunicipality:
		return "st.municipio"
	case filter.FieldLegalNature:
		return "e.natureza_juridica"
	case filter.FieldClassification:
		return "st.cnae_fiscal_principal"
	case filter.FieldDivision:
		return b.Division()
	case filter.FieldStartDate:
		return "st.data_inicio_atividade"
	default:
		panic(fmt.Sprintf("warehouse: unknown filter field %q", f))
	}
}

// Population renders the branch-mode restriction, or "" for BranchAll.
// Headquarters and branches are complementary on the flag so together they
// cover every establishment exactly once.
func (b *Builder) Population(mode filter.BranchMode) string {
	switch mode.Resolved() {
	case filter.BranchHeadquartersOnly:
		return "st.identificador_matriz_filial = " + b.Bind(HeadquartersFlag)
	case filter.BranchBranchesOnly:
		return "COALESCE(st.identificador_matriz_filial, '') <> " + b.Bind(HeadquartersFlag)
	default:
		return ""
	}
}

// Conditions renders the population fragment followed by every clause of p
func (b *Builder) Conditions(p filter.Predicate) []string {
	var conds []string
	if pop := b.Population(p.Mode); pop != "" {
		conds = append(conds, pop)
	}
	for _, c := range p.Clauses {
		conds = append(conds, b.clause(c))
	}
	return conds
}

// Where renders a WHERE clause for p plus any extra conditions, which are
// appended after the predicate.
func (b *Builder) Where(p filter.Predicate, extra ...string) string {
	conds := append(b.Conditions(p), extra...)
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func (b *Builder) clause(c filter.Clause) string {
	col := b.Column(c.Field)
	switch c.Op {
	case filter.OpEq:
		return col + " = " + b.bindParam(c.Params[0])
	case filter.OpGte:
		return col + " >= " + b.bindParam(c.Params[0])
	case filter.OpLte:
		return col + " <= " + b.bindParam(c.Params[0])
	case filter.OpBetween:
		return col + " BETWEEN " + b.bindParam(c.Params[0]) + " AND " + b.bindParam(c.Params[1])
	case filter.OpIn:
		marks := make([]string, len(c.Params))
		for i, p := range c.Params {
			marks[i] = b.bindParam(p)
		}
		return col + " IN (" + strings.Join(marks, ", ") + ")"
	case filter.OpContains:
		term := fmt.Sprint(c.Params[0].Value)
		return col + " LIKE " + b.Bind("%"+likeEscaper.Replace(term)+"%") + ` ESCAPE '\'`
	case filter.OpPrefix:
		term := fmt.Sprint(c.Params[0].Value)
		return col + " LIKE " + b.Bind(likeEscaper.Replace(term)+"%") + ` ESCAPE '\'`
	default:
		panic(fmt.Sprintf("warehouse: unknown operator %q", c.Op))
	}
}

func (b *Builder) bindParam(p filter.Param) string {
	switch p.Type {
	case filter.TypeInt:
		switch v := p.Value.(type) {
		case int:
			return b.Bind(int64(v))
		case int64:
			return b.Bind(v)
		}
	case filter.TypeFloat:
		if v, ok := p.Value.(float64); ok {
			return b.Bind(v)
		}
	}
	return b.Bind(fmt.Sprint(p.Value))
}
