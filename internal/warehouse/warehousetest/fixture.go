// Package warehousetest builds in-memory SQLite warehouses for tests.
package warehousetest

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
	"github.com/sirupsen/logrus"
)

// Company is a row of empresas
type Company struct {
	Root        string
	Name        string
	LegalNature string
	Capital     string
	Size        string
}

// Establishment is a row of estabelecimentos
type Establishment struct {
	Root         string
	Order        string
	DV           string
	Flag         string
	TradeName    string
	Status       string
	StatusDate   string
	StartDate    string
	CNAE         string
	State        string
	Municipality string
}

// HQ returns a headquarters establishment for root
func HQ(root, cnae, state, status, startDate string) Establishment {
	return Establishment{
		Root: root, Order: "0001", DV: "00", Flag: "1",
		Status: status, StartDate: startDate, CNAE: cnae, State: state, Municipality: "7107",
	}
}

// Branch returns a branch establishment for root
func Branch(root, order, cnae, state, status, startDate string) Establishment {
	return Establishment{
		Root: root, Order: order, DV: "00", Flag: "2",
		Status: status, StartDate: startDate, CNAE: cnae, State: state, Municipality: "7107",
	}
}

// Warehouse is a migrated in-memory database plus its gateway
type Warehouse struct {
	*warehouse.SQLGateway
	t testing.TB
}

// New opens an empty warehouse closed at test cleanup
func New(t testing.TB) *Warehouse {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := warehouse.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &Warehouse{
		SQLGateway: warehouse.NewSQLGateway(db, warehouse.SQLite, 5*time.Second, Logger()),
		t:          t,
	}
}

// Logger returns a logger that discards output
func Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// AddCompanies inserts companies
func (w *Warehouse) AddCompanies(companies ...Company) *Warehouse {
	w.t.Helper()
	for _, c := range companies {
		w.exec(`INSERT INTO empresas (cnpj_basico, razao_social, natureza_juridica, capital_social, porte_empresa)
			VALUES (?, ?, ?, ?, ?)`, c.Root, c.Name, c.LegalNature, c.Capital, c.Size)
	}
	return w
}

// AddEstablishments inserts establishments
func (w *Warehouse) AddEstablishments(establishments ...Establishment) *Warehouse {
	w.t.Helper()
	for _, e := range establishments {
		w.exec(`INSERT INTO estabelecimentos (cnpj_basico, cnpj_ordem, cnpj_dv, identificador_matriz_filial,
				nome_fantasia, situacao_cadastral, data_situacao_cadastral, data_inicio_atividade,
				cnae_fiscal_principal, uf, municipio)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Root, e.Order, e.DV, e.Flag, e.TradeName, e.Status, e.StatusDate, e.StartDate,
			e.CNAE, e.State, e.Municipality)
	}
	return w
}

// AddReference inserts (codigo, descricao) pairs into a reference table
func (w *Warehouse) AddReference(table string, pairs ...[2]string) *Warehouse {
	w.t.Helper()
	switch table {
	case "naturezas", "municipios", "cnaes", "paises", "motivos", "qualificacoes":
	default:
		w.t.Fatalf("unknown reference table %s", table)
	}
	for _, p := range pairs {
		w.exec("INSERT INTO "+table+" (codigo, descricao) VALUES (?, ?)", p[0], p[1])
	}
	return w
}

func (w *Warehouse) exec(query string, args ...any) {
	w.t.Helper()
	if _, err := w.DB().Exec(query, args...); err != nil {
		w.t.Fatalf("exec %q: %v", query, err)
	}
}

// FailingGateway fails every statement with a GatewayError
type FailingGateway struct {
	Err   error
	Calls atomic.Int64
}

// Execute implements warehouse.Gateway
func (f *FailingGateway) Execute(_ context.Context, stmt warehouse.Statement) ([]warehouse.Row, error) {
	f.Calls.Add(1)
	err := f.Err
	if err == nil {
		err = errors.New("connection refused")
	}
	return nil, &warehouse.GatewayError{Shape: stmt.Shape, Err: err}
}

// Dialect implements warehouse.Gateway
func (f *FailingGateway) Dialect() warehouse.Dialect { return warehouse.SQLite }

// Ping implements warehouse.Gateway
func (f *FailingGateway) Ping(context.Context) error { return f.Err }

// Close implements warehouse.Gateway
func (f *FailingGateway) Close() error { return nil }
