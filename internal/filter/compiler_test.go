package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileEmptyRequestOnlyScope(t *testing.T) {
	p := NewCompiler(IndustrialScope()).Compile(Request{})

	require.Len(t, p.Clauses, 1)
	assert.Equal(t, IndustrialScope().Clause(), p.Clauses[0])
	assert.True(t, p.Scoped)
	assert.Equal(t, BranchAll, p.Mode)
	assert.NoError(t, p.CheckScope(IndustrialScope()))
}

func TestCompileScopeClauseIsLast(t *testing.T) {
	req := Request{
		MinCapital:          NewAmount(1000),
		SizeClasses:         []string{"01"},
		ActiveOnly:          true,
		States:              []string{"SP"},
		SectorDivisionCodes: []string{"10"},
		DateStart:           "2010-01-01",
	}
	p := NewCompiler(IndustrialScope()).Compile(req)

	last := p.Clauses[len(p.Clauses)-1]
	assert.Equal(t, FieldDivision, last.Field)
	assert.Equal(t, OpBetween, last.Op)
	assert.NoError(t, p.CheckScope(IndustrialScope()))
}

func TestCompileSearchSuspendsScope(t *testing.T) {
	c := NewCompiler(IndustrialScope())

	byRoot := c.Compile(Request{SearchTerm: "33000167"})
	assert.False(t, byRoot.Scoped)
	require.Len(t, byRoot.Clauses, 1)
	assert.Equal(t, FieldRootID, byRoot.Clauses[0].Field)
	assert.Equal(t, OpEq, byRoot.Clauses[0].Op)
	assert.Equal(t, "33000167", byRoot.Clauses[0].Params[0].Value)
	assert.NoError(t, byRoot.CheckScope(IndustrialScope()))

	full := c.Compile(Request{SearchTerm: "33.000.167/0001-01"})
	assert.Equal(t, byRoot.Clauses, full.Clauses)

	partial := c.Compile(Request{SearchTerm: "3300"})
	assert.Equal(t, OpPrefix, partial.Clauses[0].Op)

	byName := c.Compile(Request{SearchTerm: "petrobras"})
	assert.False(t, byName.Scoped)
	assert.Equal(t, FieldCompanyName, byName.Clauses[0].Field)
	assert.Equal(t, "PETROBRAS", byName.Clauses[0].Params[0].Value)
}

func TestCompileZeroMinCapitalAddsNoClause(t *testing.T) {
	c := NewCompiler(Unscoped())

	assert.Empty(t, c.Compile(Request{MinCapital: NewAmount(0)}).Clauses)
	assert.Empty(t, c.Compile(Request{}).Clauses)
	assert.Empty(t, c.Compile(Request{MaxCapital: NewAmount(0)}).Clauses)

	p := c.Compile(Request{MinCapital: ParseAmount("1.500,50"), MaxCapital: NewAmount(20000)})
	require.Len(t, p.Clauses, 2)
	assert.Equal(t, OpGte, p.Clauses[0].Op)
	assert.Equal(t, 1500.5, p.Clauses[0].Params[0].Value)
	assert.Equal(t, OpLte, p.Clauses[1].Op)
}

func TestCompileInvalidCapitalIsDropped(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"min_capital":"lots","max_capital":"2.000,00"}`), &req))

	p := NewCompiler(Unscoped()).Compile(req)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, OpLte, p.Clauses[0].Op)
	assert.Equal(t, 2000.0, p.Clauses[0].Params[0].Value)
	require.Len(t, p.Dropped, 1)
	assert.Equal(t, FieldCapital, p.Dropped[0].Field)
}

func TestCompileMalformedSizeClassTolerance(t *testing.T) {
	c := NewCompiler(IndustrialScope())

	mixed := c.Compile(Request{SizeClasses: []string{"05", "abc"}})
	clean := c.Compile(Request{SizeClasses: []string{"05"}})

	assert.Equal(t, clean.Clauses, mixed.Clauses)
	assert.Equal(t, clean.Key(), mixed.Key())
	assert.Len(t, mixed.Dropped, 1)
}

func TestCompileEmptyAfterDropIsNoFilter(t *testing.T) {
	c := NewCompiler(Unscoped())

	p := c.Compile(Request{
		SizeClasses:         []string{"abc", "7"},
		States:              []string{"XX"},
		LegalNatureCodes:    []string{"20A2"},
		ClassificationCodes: []string{"12"},
		SectorDivisionCodes: []string{"abc"},
		MunicipalityCodes:   []string{"12345678"},
	})
	assert.Empty(t, p.Clauses)
	assert.Len(t, p.Dropped, 7)
}

func TestCompileCodeSetsAreSortedAndDeduplicated(t *testing.T) {
	c := NewCompiler(Unscoped())

	a := c.Compile(Request{States: []string{"sp", "MG", "SP", " rj "}})
	b := c.Compile(Request{States: []string{"RJ", "MG", "SP"}})
	assert.Equal(t, a.Clauses, b.Clauses)

	require.Len(t, a.Clauses, 1)
	values := make([]any, 0)
	for _, p := range a.Clauses[0].Params {
		values = append(values, p.Value)
	}
	assert.Equal(t, []any{"MG", "RJ", "SP"}, values)
	assert.Equal(t, "state_0", a.Clauses[0].Params[0].Name)
}

func TestCompileCodeNormalization(t *testing.T) {
	p := NewCompiler(Unscoped()).Compile(Request{
		LegalNatureCodes:    []string{"206-2"},
		ClassificationCodes: []string{"1011-2/01"},
		SectorDivisionCodes: []string{"5", "10"},
		MunicipalityCodes:   []string{"71"},
	})

	require.Len(t, p.Clauses, 4)
	assert.Equal(t, "0071", p.Clauses[0].Params[0].Value)
	assert.Equal(t, "2062", p.Clauses[1].Params[0].Value)
	assert.Equal(t, "1011201", p.Clauses[2].Params[0].Value)
	assert.Equal(t, TypeInt, p.Clauses[3].Params[0].Type)
	assert.Equal(t, 5, p.Clauses[3].Params[0].Value)
	assert.Equal(t, 10, p.Clauses[3].Params[1].Value)
}

func TestCompileDates(t *testing.T) {
	c := NewCompiler(Unscoped())

	p := c.Compile(Request{DateStart: "2015-01-01", DateEnd: "31/12/2020"})
	require.Len(t, p.Clauses, 2)
	assert.Equal(t, "20150101", p.Clauses[0].Params[0].Value)
	assert.Equal(t, "20201231", p.Clauses[1].Params[0].Value)

	onlyEnd := c.Compile(Request{DateStart: "not a date", DateEnd: "20201231"})
	require.Len(t, onlyEnd.Clauses, 1)
	assert.Equal(t, OpLte, onlyEnd.Clauses[0].Op)
	assert.Len(t, onlyEnd.Dropped, 1)
}

func TestCompileActiveOnlyComposesWithBranchMode(t *testing.T) {
	p := NewCompiler(IndustrialScope()).Compile(Request{ActiveOnly: true, BranchMode: BranchHeadquartersOnly})

	assert.True(t, p.Has(FieldStatus))
	assert.Equal(t, BranchHeadquartersOnly, p.Mode)
}

func TestCompileIsDeterministic(t *testing.T) {
	c := NewCompiler(IndustrialScope())
	req := Request{
		SearchTerm:  "",
		States:      []string{"SP", "RJ", "MG"},
		SizeClasses: []string{"05", "01", "03"},
		MinCapital:  NewAmount(50000),
	}

	first := c.Compile(req)
	for i := 0; i < 20; i++ {
		again := c.Compile(req)
		assert.Equal(t, first, again)
		assert.Equal(t, first.Key(), again.Key())
	}
}

func TestPredicateWithoutKeepsScope(t *testing.T) {
	p := NewCompiler(IndustrialScope()).Compile(Request{ActiveOnly: true, SectorDivisionCodes: []string{"10"}})

	stripped := p.Without(FieldStatus)
	assert.False(t, stripped.Has(FieldStatus))
	assert.NoError(t, stripped.CheckScope(IndustrialScope()))

	noDivision := p.Without(FieldDivision)
	require.Len(t, noDivision.Clauses, 2)
	assert.NoError(t, noDivision.CheckScope(IndustrialScope()))
}

func TestCheckScopeDetectsViolation(t *testing.T) {
	p := NewCompiler(Unscoped()).Compile(Request{States: []string{"SP"}})
	assert.ErrorIs(t, p.CheckScope(IndustrialScope()), ErrScopeViolation)

	p.Scoped = true
	assert.ErrorIs(t, p.CheckScope(IndustrialScope()), ErrScopeViolation)

	narrow := NewCompiler(NewScopePolicy(10, 12)).Compile(Request{})
	assert.ErrorIs(t, narrow.CheckScope(IndustrialScope()), ErrScopeViolation)
	assert.NoError(t, narrow.CheckScope(Unscoped()))
}

func TestBranchModeDecoding(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"branch_mode":"Somente Matrizes"}`), &req))
	assert.Equal(t, BranchHeadquartersOnly, req.BranchMode)

	require.NoError(t, json.Unmarshal([]byte(`{"branch_mode":"branches"}`), &req))
	assert.Equal(t, BranchBranchesOnly, req.BranchMode)

	require.NoError(t, json.Unmarshal([]byte(`{"branch_mode":"whatever"}`), &req))
	assert.Equal(t, BranchAll, req.BranchMode)

	assert.Equal(t, BranchAll, BranchMode("").Resolved())
}

func TestBranchModeDecodesNumbers(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"branch_mode":1}`), &req))
	assert.Equal(t, BranchHeadquartersOnly, req.BranchMode)

	require.NoError(t, json.Unmarshal([]byte(`{"branch_mode":2}`), &req))
	assert.Equal(t, BranchBranchesOnly, req.BranchMode)

	require.NoError(t, json.Unmarshal([]byte(`{"branch_mode":false}`), &req))
	assert.Equal(t, BranchAll, req.BranchMode.Resolved())
}

func TestCodesDecoding(t *testing.T) {
	var req Request
	body := `{
		"sector_division_codes": [10, "20", 5],
		"size_classes": ["01", 5],
		"states": "SP",
		"municipality_codes": 7107,
		"legal_nature_codes": ["2062", true, {"code": "2046"}, null],
		"classification_codes": null
	}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, Codes{"10", "20", "5"}, req.SectorDivisionCodes)
	assert.Equal(t, Codes{"01", "5"}, req.SizeClasses)
	assert.Equal(t, Codes{"SP"}, req.States)
	assert.Equal(t, Codes{"7107"}, req.MunicipalityCodes)
	assert.Equal(t, Codes{"2062", "true", `{"code": "2046"}`}, req.LegalNatureCodes)
	assert.Nil(t, req.ClassificationCodes)

	p := NewCompiler(Unscoped()).Compile(req)
	fields := map[Field]int{}
	for _, d := range p.Dropped {
		fields[d.Field]++
	}
	assert.Equal(t, map[Field]int{FieldSizeClass: 1, FieldLegalNature: 2}, fields)

	numeric := NewCompiler(IndustrialScope()).Compile(Request{SectorDivisionCodes: Codes{"10"}})
	var decoded Request
	require.NoError(t, json.Unmarshal([]byte(`{"sector_division_codes":[10]}`), &decoded))
	assert.Equal(t, numeric.Key(), NewCompiler(IndustrialScope()).Compile(decoded).Key())
}

func TestAmountDecoding(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"min_capital":1234.56,"max_capital":"1.234,56"}`), &req))
	require.NotNil(t, req.MinCapital)
	require.NotNil(t, req.MaxCapital)
	assert.True(t, req.MinCapital.Decimal.Equal(req.MaxCapital.Decimal))

	out, err := json.Marshal(req.MinCapital)
	require.NoError(t, err)
	assert.Equal(t, "1234.56", string(out))
}

func FuzzCompile(f *testing.F) {
	f.Add("33000167", "05", "SP", "10", "2020-01-01", "1.000,00", "all")
	f.Add("", "abc", "zz", "9999", "x", "-1", "hq")
	f.Add("petro'; DROP TABLE empresas; --", "", "", "", "", "", "")

	c := NewCompiler(IndustrialScope())
	f.Fuzz(func(t *testing.T, search, size, state, division, date, capital, mode string) {
		p := c.Compile(Request{
			SearchTerm:          search,
			SizeClasses:         []string{size},
			States:              []string{state},
			SectorDivisionCodes: []string{division},
			DateStart:           date,
			DateEnd:             date,
			MinCapital:          ParseAmount(capital),
			BranchMode:          BranchMode(mode),
		})
		if err := p.CheckScope(c.Policy()); err != nil {
			t.Fatalf("scope invariant broken for %+v: %v", p, err)
		}
		if p.Scoped && p.Clauses[len(p.Clauses)-1].Field != FieldDivision {
			t.Fatalf("scope clause not last: %+v", p.Clauses)
		}
	})
}
