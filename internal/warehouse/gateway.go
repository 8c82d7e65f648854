package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nexconsult/cnpj-analytics/internal/config"
	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable marks any failure to execute a statement: connectivity,
// authentication, timeouts, cancellation or an unreadable result set.
var ErrUnavailable = errors.New("warehouse unavailable")

// GatewayError wraps the underlying driver error of a failed statement
type GatewayError struct {
	Shape string
	Err   error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("warehouse query %s failed: %v", e.Shape, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is makes every GatewayError match ErrUnavailable
func (e *GatewayError) Is(target error) bool { return target == ErrUnavailable }

// Statement is a rendered, parameterized query
type Statement struct {
	Shape string
	SQL   string
	Args  []any
	Mode  filter.BranchMode
	// Limit bounds the rows read; zero reads everything.
	Limit int
}

// Gateway executes statements against the warehouse
type Gateway interface {
	Execute(ctx context.Context, stmt Statement) ([]Row, error)
	Dialect() Dialect
	Ping(ctx context.Context) error
	Close() error
}

// Stats are cumulative gateway counters
type Stats struct {
	Executed int64 `json:"executed"`
	Failed   int64 `json:"failed"`
	Rows     int64 `json:"rows"`
}

// SQLGateway is a Gateway over database/sql
type SQLGateway struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
	logger  *logrus.Logger

	executed atomic.Int64
	failed   atomic.Int64
	rows     atomic.Int64
}

// NewSQLGateway wraps an open database handle
func NewSQLGateway(db *sql.DB, dialect Dialect, timeout time.Duration, logger *logrus.Logger) *SQLGateway {
	return &SQLGateway{
		db:      db,
		dialect: dialect,
		timeout: timeout,
		logger:  logger,
	}
}

// Open connects to the configured warehouse and applies the schema when asked
func Open(ctx context.Context, cfg config.WarehouseConfig, logger *logrus.Logger) (*SQLGateway, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}

	if dialect == SQLite {
		// one writer, and in-memory databases are per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach warehouse: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.WithFields(logrus.Fields{
		"driver":  dialect.Name(),
		"timeout": cfg.QueryTimeout,
	}).Info("Warehouse connection established")

	return NewSQLGateway(db, dialect, cfg.QueryTimeout, logger), nil
}

// Execute runs a statement and returns its rows
func (g *SQLGateway) Execute(ctx context.Context, stmt Statement) ([]Row, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	g.executed.Add(1)

	rows, err := g.query(ctx, stmt)
	if err != nil {
		g.failed.Add(1)
		g.logger.WithFields(logrus.Fields{
			"shape":    stmt.Shape,
			"mode":     stmt.Mode,
			"duration": time.Since(start),
			"error":    err.Error(),
		}).Error("Warehouse query failed")
		return nil, &GatewayError{Shape: stmt.Shape, Err: err}
	}

	g.rows.Add(int64(len(rows)))
	g.logger.WithFields(logrus.Fields{
		"shape":    stmt.Shape,
		"mode":     stmt.Mode,
		"rows":     len(rows),
		"duration": time.Since(start),
	}).Debug("Warehouse query executed")

	return rows, nil
}

func (g *SQLGateway) query(ctx context.Context, stmt Statement) ([]Row, error) {
	rs, err := g.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for rs.Next() {
		if stmt.Limit > 0 && len(out) >= stmt.Limit {
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Dialect returns the gateway's SQL dialect
func (g *SQLGateway) Dialect() Dialect {
	return g.dialect
}

// Ping checks warehouse connectivity
func (g *SQLGateway) Ping(ctx context.Context) error {
	if err := g.db.PingContext(ctx); err != nil {
		return &GatewayError{Shape: "ping", Err: err}
	}
	return nil
}

// DB exposes the underlying handle for schema management and fixtures
func (g *SQLGateway) DB() *sql.DB {
	return g.db
}

// Stats returns cumulative counters
func (g *SQLGateway) Stats() Stats {
	return Stats{
		Executed: g.executed.Load(),
		Failed:   g.failed.Load(),
		Rows:     g.rows.Load(),
	}
}

// Close closes the database handle
func (g *SQLGateway) Close() error {
	return g.db.Close()
}
