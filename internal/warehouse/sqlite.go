package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"fmt"
	"strings"

	"github.com/nexconsult/cnpj-analytics/internal/utils"
	"modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("parse_capital", 1, parseCapitalFunc)
	sqlite.MustRegisterDeterministicScalarFunction("cnae_division", 1, cnaeDivisionFunc)
	sqlite.MustRegisterDeterministicScalarFunction("upper_text", 1, upperTextFunc)
}

// parse_capital(text) runs the shared capital normalizer inside SQLite
func parseCapitalFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	v, ok := utils.ParseCapital(textArg(args[0]))
	if !ok {
		return nil, nil
	}
	return v, nil
}

// cnae_division(text) returns the 2-digit division or NULL
func cnaeDivisionFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	d, ok := utils.DivisionOf(textArg(args[0]))
	if !ok {
		return nil, nil
	}
	return int64(d), nil
}

// upper_text(text) upper-cases with Unicode rules
func upperTextFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil {
		return nil, nil
	}
	return strings.ToUpper(textArg(args[0])), nil
}

func textArg(v driver.Value) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

// Migrate creates the warehouse tables when they do not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
