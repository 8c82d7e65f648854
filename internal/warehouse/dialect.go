package warehouse

import (
	"fmt"
	"strconv"
)

// Dialect captures the SQL differences between supported warehouses.
// Everything else in rendered statements is portable SQL.
type Dialect interface {
	Name() string
	DriverName() string
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string
	// Capital converts a comma-decimal capital column into a nullable float.
	Capital(col string) string
	// Division extracts the 2-digit CNAE division as a nullable integer.
	Division(col string) string
	// Upper folds a text column to upper case, accented letters included.
	Upper(col string) string
}

// DialectFor returns the dialect for a configured driver
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "pgx", "postgresql":
		return Postgres, nil
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", driver)
	}
}

var (
	SQLite   Dialect = sqliteDialect{}
	Postgres Dialect = postgresDialect{}
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) Capital(col string) string { return "parse_capital(" + col + ")" }
func (sqliteDialect) Division(col string) string {
	return "cnae_division(" + col + ")"
}

// SQLite's UPPER only folds ASCII
func (sqliteDialect) Upper(col string) string { return "upper_text(" + col + ")" }

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }
func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// Capital mirrors utils.ParseCapitalDecimal: dotted thousands, comma decimals,
// then plain dot decimals. Anything else is NULL.
func (postgresDialect) Capital(col string) string {
	t := "TRIM(" + col + ")"
	return fmt.Sprintf(`(CASE`+
		` WHEN %[1]s ~ '^-?[0-9]{1,3}(\.[0-9]{3})+(,[0-9]+)?$' THEN CAST(REPLACE(REPLACE(%[1]s, '.', ''), ',', '.') AS DOUBLE PRECISION)`+
		` WHEN %[1]s ~ '^-?[0-9]+(,[0-9]+)?$' THEN CAST(REPLACE(%[1]s, ',', '.') AS DOUBLE PRECISION)`+
		` WHEN %[1]s ~ '^-?[0-9]+\.[0-9]+$' THEN CAST(%[1]s AS DOUBLE PRECISION)`+
		` END)`, t)
}

func (postgresDialect) Upper(col string) string { return "UPPER(" + col + ")" }

func (postgresDialect) Division(col string) string {
	digits := "REGEXP_REPLACE(" + col + ", '[^0-9]', '', 'g')"
	return fmt.Sprintf("(CASE WHEN LENGTH(%[1]s) >= 2 THEN CAST(SUBSTR(%[1]s, 1, 2) AS INTEGER) END)", digits)
}
