package aggregate

import (
	"strings"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/utils"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
)

// Query shape identifiers
const (
	ShapeSummary        = "count_and_average_capital"
	ShapeSectors        = "sector_distribution"
	ShapeStates         = "geographic_distribution"
	ShapeMunicipalities = "locality_distribution"
	ShapeOpening        = "opening_trend"
	ShapeOpeningSamples = "opening_trend_samples"
	ShapeClosing        = "closing_trend"
	ShapeClosingSamples = "closing_trend_samples"
	ShapeMaturity       = "maturity_profile"
	ShapeLegalNature    = "legal_nature_profile"
	ShapeListing        = "filtered_listing"
)

const (
	startDateCol  = "st.data_inicio_atividade"
	statusDateCol = "st.data_situacao_cadastral"
)

// QuerySet renders every query shape from a compiled predicate. Each shape
// selects from warehouse.FromPopulation and filters through Builder.Where,
// so branch mode and scope are applied identically everywhere.
type QuerySet struct {
	dialect warehouse.Dialect
}

// NewQuerySet creates a query set for dialect
func NewQuerySet(d warehouse.Dialect) *QuerySet {
	return &QuerySet{dialect: d}
}

func (q *QuerySet) statement(shape string, p filter.Predicate, b *warehouse.Builder, parts ...string) warehouse.Statement {
	return warehouse.Statement{
		Shape: shape,
		SQL:   strings.Join(parts, " "),
		Args:  b.Args(),
		Mode:  p.Mode,
	}
}

// Summary counts rows and averages normalized capital, without any limit
func (q *QuerySet) Summary(p filter.Predicate) warehouse.Statement {
	b := warehouse.NewBuilder(q.dialect)
	capital := b.Capital()
	return q.statement(ShapeSummary, p, b,
		"SELECT COUNT(*) AS total, AVG("+capital+") AS avg_capital, COUNT("+capital+") AS capital_rows",
		warehouse.FromPopulation,
		b.Where(p),
	)
}

// Sectors groups rows by CNAE division
func (q *QuerySet) Sectors(p filter.Predicate) warehouse.Statement {
	b := warehouse.NewBuilder(q.dialect)
	return q.statement(ShapeSectors, p, b,
		"SELECT "+b.Division()+" AS division, COUNT(*) AS total",
		warehouse.FromPopulation,
		b.Where(p),
		"GROUP BY 1 ORDER BY total DESC, division",
	)
}

// States groups rows by federative unit
func (q *QuerySet) States(p filter.Predicate) warehouse.Statement {
	b := warehouse.NewBuilder(q.dialect)
	return q.statement(ShapeStates, p, b,
		"SELECT st.uf AS state, COUNT(*) AS total",
		warehouse.FromPopulation,
		b.Where(p),
		"GROUP BY st.uf ORDER BY total DESC, state",
	)
}

// Municipalities groups rows by municipality. The grouping is exact; the
// top-N cut happens when materializing.
func (q *QuerySet) Municipalities(p filter.Predicate) warehouse.Statement {
	b := warehouse.NewBuilder(q.dialect)
	return q.statement(ShapeMunicipalities, p, b,
		"SELECT st.municipio AS code, MAX(m.descricao) AS name, COUNT(*) AS total",
		warehouse.FromPopulation,
		"LEFT JOIN municipios m ON m.codigo = st.municipio",
		b.Where(p),
		"GROUP BY st.municipio ORDER BY total DESC, code",
	)
}

// OpeningTrend counts rows per year-month of activity start
func (q *QuerySet) OpeningTrend(p filter.Predicate) warehouse.Statement {
	return q.trend(ShapeOpening, p, startDateCol)
}

// OpeningSamples lists up to n company names per opening month
func (q *QuerySet) OpeningSamples(p filter.Predicate, n int) warehouse.Statement {
	return q.samples(ShapeOpeningSamples, p, startDateCol, n)
}

// ClosingTrend counts closed establishments per year-month of the status
// change. The shape defines its own status, so an active-only clause is
// removed rather than contradicting it.
func (q *QuerySet) ClosingTrend(p filter.Predicate) warehouse.Statement {
	return q.trend(ShapeClosing, closed(p), statusDateCol)
}

// ClosingSamples lists up to n closed company names per month
func (q *QuerySet) ClosingSamples(p filter.Predicate, n int) warehouse.Statement {
	return q.samples(ShapeClosingSamples, closed(p), statusDateCol, n)
}

func closed(p filter.Predicate) filter.Predicate {
	out := p.Without(filter.FieldStatus)
	clause := filter.Clause{
		Field:  filter.FieldStatus,
		Op:     filter.OpEq,
		Params: []filter.Param{{Name: "status", Type: filter.TypeString, Value: utils.StatusClosed}},
	}
	// keep the scope clause last
	if out.Scoped && len(out.Clauses) > 0 {
		n := len(out.Clauses)
		out.Clauses = append(out.Clauses[:n-1:n-1], clause, out.Clauses[n-1])
	} else {
		out.Clauses = append(out.Clauses, clause)
	}
	return out
}

func monthExpr(col string) string {
	return "SUBSTR(" + col + ", 1, 6)"
}

func (q *QuerySet) trend(shape string, p filter.Predicate, dateCol string) warehouse.Statement {
	b := warehouse.NewBuilder(q.dialect)
	return q.statement(shape, p, b,
		"SELECT "+monthExpr(dateCol)+" AS month, COUNT(*) AS total",
		warehouse.FromPopulation,
		b.Where(p, "LENGTH("+dateCol+") = 8"),
		"GROUP BY 1 ORDER BY 1",
	)
}

func (q *QuerySet) samples(shape string, p filter.Predicate, dateCol string, n int) warehouse.Statement {
	b := warehouse.NewBuilder(q.dialect)
	month := monthExpr(dateCol)
	inner := strings.Join([]string{
		"SELECT " + month + " AS month, e.razao_social AS name,",
		"ROW_NUMBER() OVER (PARTITION BY " + month + " ORDER BY e.razao_social, st.cnpj_basico, st.cnpj_ordem) AS rn",
		warehouse.FromPopulation,
		b.Where(p, "LENGTH("+dateCol+") = 8"),
	}, " ")
	return q.statement(shape, p, b,
		"SELECT month, name FROM ("+inner+") ranked",
		"WHERE rn <= "+b.Bind(int64(n)),
		"ORDER BY month, rn",
	)
}

// Maturity buckets rows into the fixed age bands relative to now
func (q *QuerySet) Maturity(p filter.Predicate, now time.Time) warehouse.Statement {
	b := warehouse.NewBuilder(q.dialect)

	var sb strings.Builder
	sb.WriteString("SELECT CASE")
	for _, band := range maturityBands[:len(maturityBands)-1] {
		sb.WriteString(" WHEN " + startDateCol + " > " + b.Bind(band.cutoff(now)) + " THEN '" + band.Key + "'")
	}
	sb.WriteString(" ELSE '" + maturityBands[len(maturityBands)-1].Key + "' END AS band, COUNT(*) AS total")

	return q.statement(ShapeMaturity, p, b,
		sb.String(),
		warehouse.FromPopulation,
		b.Where(p, "LENGTH("+startDateCol+") = 8"),
		"GROUP BY 1",
	)
}

// LegalNature buckets rows by legal-nature code prefix; the first matching
// category wins and unmatched codes fall into "other".
func (q *QuerySet) LegalNature(p filter.Predicate) warehouse.Statement {
	b := warehouse.NewBuilder(q.dialect)

	var sb strings.Builder
	sb.WriteString("SELECT CASE")
	for _, cat := range legalNatureTaxonomy {
		for _, prefix := range cat.Prefixes {
			sb.WriteString(" WHEN e.natureza_juridica LIKE " + b.Bind(prefix+"%") + " THEN '" + cat.Key + "'")
		}
	}
	sb.WriteString(" ELSE '" + otherLegalNature.Key + "' END AS category, COUNT(*) AS total")

	return q.statement(ShapeLegalNature, p, b,
		sb.String(),
		warehouse.FromPopulation,
		b.Where(p),
		"GROUP BY 1",
	)
}

// Listing returns at most limit rows ordered by capital, highest first, with
// descriptions joined from the reference tables.
func (q *QuerySet) Listing(p filter.Predicate, limit int) warehouse.Statement {
	b := warehouse.NewBuilder(q.dialect)
	capital := b.Capital()
	where := b.Where(p)

	stmt := q.statement(ShapeListing, p, b,
		"SELECT st.cnpj_basico AS root, st.cnpj_ordem AS ord, st.cnpj_dv AS dv,",
		"st.identificador_matriz_filial AS flag, e.razao_social AS name, st.nome_fantasia AS trade_name,",
		"st.situacao_cadastral AS status, st.data_inicio_atividade AS start_date,",
		capital+" AS capital, e.porte_empresa AS size_class,",
		"e.natureza_juridica AS legal_nature, n.descricao AS legal_nature_description,",
		"st.cnae_fiscal_principal AS classification, c.descricao AS classification_description,",
		"st.uf AS state, st.municipio AS municipality, m.descricao AS municipality_name",
		warehouse.FromPopulation,
		"LEFT JOIN naturezas n ON n.codigo = e.natureza_juridica",
		"LEFT JOIN cnaes c ON c.codigo = st.cnae_fiscal_principal",
		"LEFT JOIN municipios m ON m.codigo = st.municipio",
		where,
		"ORDER BY CASE WHEN "+capital+" IS NULL THEN 1 ELSE 0 END, "+capital+" DESC, st.cnpj_basico, st.cnpj_ordem",
		"LIMIT "+b.Bind(int64(limit)),
	)
	stmt.Args = b.Args()
	stmt.Limit = limit
	return stmt
}
