package warehouse_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhereUsesPlaceholdersOnly(t *testing.T) {
	p := filter.NewCompiler(filter.IndustrialScope()).Compile(filter.Request{
		States:     []string{"SP", "RJ"},
		ActiveOnly: true,
		BranchMode: filter.BranchHeadquartersOnly,
		MinCapital: filter.NewAmount(1000),
	})

	b := warehouse.NewBuilder(warehouse.SQLite)
	where := b.Where(p)

	assert.Equal(t, "WHERE st.identificador_matriz_filial = ? AND parse_capital(e.capital_social) >= ? AND "+
		"st.situacao_cadastral = ? AND st.uf IN (?, ?) AND cnae_division(st.cnae_fiscal_principal) BETWEEN ? AND ?", where)
	assert.Equal(t, []any{"1", 1000.0, "02", "RJ", "SP", int64(5), int64(33)}, b.Args())
}

func TestWherePostgresNumbersPlaceholders(t *testing.T) {
	p := filter.NewCompiler(filter.IndustrialScope()).Compile(filter.Request{
		States:     []string{"SP"},
		BranchMode: filter.BranchBranchesOnly,
	})

	b := warehouse.NewBuilder(warehouse.Postgres)
	where := b.Where(p, "st.data_inicio_atividade IS NOT NULL")

	assert.Contains(t, where, "COALESCE(st.identificador_matriz_filial, '') <> $1")
	assert.Contains(t, where, "st.uf IN ($2)")
	assert.Contains(t, where, "BETWEEN $3 AND $4")
	assert.True(t, strings.HasSuffix(where, "AND st.data_inicio_atividade IS NOT NULL"))
	assert.Len(t, b.Args(), 4)
}

func TestSearchTermIsNeverInterpolated(t *testing.T) {
	hostile := "x'; DROP TABLE empresas; -- 100%_"
	p := filter.NewCompiler(filter.IndustrialScope()).Compile(filter.Request{SearchTerm: hostile})

	b := warehouse.NewBuilder(warehouse.SQLite)
	where := b.Where(p)

	assert.NotContains(t, where, "DROP")
	assert.Equal(t, `WHERE upper_text(e.razao_social) LIKE ? ESCAPE '\'`, where)
	assert.Equal(t, []any{`%X'; DROP TABLE EMPRESAS; -- 100\%\_%`}, b.Args())
}

func TestEmptyPredicateRendersNoWhere(t *testing.T) {
	p := filter.NewCompiler(filter.Unscoped()).Compile(filter.Request{})
	assert.Equal(t, "", warehouse.NewBuilder(warehouse.SQLite).Where(p))
}

func TestDialectFor(t *testing.T) {
	d, err := warehouse.DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, "$3", d.Placeholder(3))
	assert.Equal(t, "pgx", d.DriverName())

	_, err = warehouse.DialectFor("mysql")
	assert.Error(t, err)
}

func TestSQLiteScalarFunctions(t *testing.T) {
	w := warehousetest.New(t)

	rows, err := w.Execute(context.Background(), warehouse.Statement{
		Shape: "scalar_functions",
		SQL: `SELECT parse_capital('1.234,56') AS a, parse_capital('1234.56') AS b, parse_capital('abc') AS c,
			cnae_division('10.11-2/01') AS d, cnae_division('9') AS e, upper_text('laticínios ação') AS f`,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	a, ok := rows[0].Float64("a")
	require.True(t, ok)
	b, _ := rows[0].Float64("b")
	assert.Equal(t, a, b)
	assert.Nil(t, rows[0]["c"])

	d, ok := rows[0].Int64("d")
	require.True(t, ok)
	assert.Equal(t, int64(10), d)
	assert.Nil(t, rows[0]["e"])
	assert.Equal(t, "LATICÍNIOS AÇÃO", rows[0]["f"])
}

func TestNameSearchFoldsAccents(t *testing.T) {
	w := warehousetest.New(t)
	w.AddCompanies(warehousetest.Company{Root: "12345678", Name: "Laticínios São João", Capital: "1,00"})
	w.AddEstablishments(warehousetest.HQ("12345678", "1052000", "MG", "02", "20200101"))

	p := filter.NewCompiler(filter.IndustrialScope()).Compile(filter.Request{SearchTerm: "laticínios são"})
	b := warehouse.NewBuilder(warehouse.SQLite)
	where := b.Where(p)

	rows, err := w.Execute(context.Background(), warehouse.Statement{
		Shape: "name_search",
		SQL:   "SELECT COUNT(*) AS total FROM empresas e " + where,
		Args:  b.Args(),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	total, ok := rows[0].Int64("total")
	require.True(t, ok)
	assert.Equal(t, int64(1), total)
}

func TestExecuteHonorsLimit(t *testing.T) {
	w := warehousetest.New(t)
	w.AddReference("naturezas", [2]string{"2062", "Sociedade Empresária Limitada"}, [2]string{"2135", "Empresário (Individual)"}, [2]string{"2046", "Sociedade Anônima Aberta"})

	rows, err := w.Execute(context.Background(), warehouse.Statement{
		Shape: "ref",
		SQL:   "SELECT codigo, descricao FROM naturezas ORDER BY codigo",
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2046", rows[0].String("codigo"))
	assert.Equal(t, int64(2), w.Stats().Rows)
	assert.Equal(t, int64(1), w.Stats().Executed)
}

func TestExecuteWrapsFailures(t *testing.T) {
	w := warehousetest.New(t)

	_, err := w.Execute(context.Background(), warehouse.Statement{Shape: "broken", SQL: "SELECT * FROM nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, warehouse.ErrUnavailable))

	var gwErr *warehouse.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "broken", gwErr.Shape)
	assert.Equal(t, int64(1), w.Stats().Failed)
}

func TestExecuteCancelledContext(t *testing.T) {
	w := warehousetest.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Execute(ctx, warehouse.Statement{Shape: "cancelled", SQL: "SELECT 1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, warehouse.ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}
