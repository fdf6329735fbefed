package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/parth0774/Sales-AI-Agent/pkg/duck"
)

// TableName is the fixed name the subscription table is bound under. Query
// snippets produced by the model reference this name.
const TableName = "subscriptions"

// maxSampleValues caps the number of distinct values recorded per column.
const maxSampleValues = 10

// Column describes one column of the loaded table.
type Column struct {
	Name    string
	Type    string
	Samples []string // up to maxSampleValues distinct non-null values, ordered
	More    int      // distinct values beyond the sample
}

// SchemaSummary is the derived metadata other components see instead of raw
// rows. It is recomputed only on load/reload.
type SchemaSummary struct {
	Table   string
	Rows    int
	Columns []Column
}

// Dataset owns the subscription table. It is loaded once from a CSV file and
// immutable for the session.
type Dataset struct {
	log     *slog.Logger
	db      *duck.DB
	path    string
	summary SchemaSummary
}

// Load reads the CSV file at path into an in-memory table and derives the
// schema summary. A missing file is a construction error.
func Load(ctx context.Context, log *slog.Logger, db *duck.DB, path string) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("dataset file not found: %w", err)
	}
	d := &Dataset{log: log, db: db, path: path}
	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-ingests the CSV file and re-derives the schema summary.
func (d *Dataset) Reload(ctx context.Context) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ingest := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s)`,
		TableName, quoteLiteral(d.path))
	if _, err := conn.ExecContext(ctx, ingest); err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	if err := d.normalize(ctx, conn); err != nil {
		return err
	}

	summary, err := d.introspect(ctx, conn)
	if err != nil {
		return err
	}
	d.summary = summary

	if d.log != nil {
		d.log.Info("dataset: loaded", "path", d.path, "rows", summary.Rows, "columns", len(summary.Columns))
	}
	return nil
}

// Summary returns the schema summary derived at load time.
func (d *Dataset) Summary() SchemaSummary {
	return d.summary
}

// DB returns the database holding the table.
func (d *Dataset) DB() *duck.DB {
	return d.db
}

// normalize applies the column coercions the model is told to expect: columns
// named like dates become TIMESTAMP, and text columns whose whole non-null
// value set is exactly {true, false} become BOOLEAN.
func (d *Dataset) normalize(ctx context.Context, conn *duck.Connection) error {
	cols, err := describe(ctx, conn)
	if err != nil {
		return err
	}

	for _, col := range cols {
		typ := strings.ToUpper(col.Type)
		// CSV sniffing may infer DATE; those are widened to TIMESTAMP too so
		// every date-like column carries one uniform type.
		if strings.Contains(strings.ToLower(col.Name), "date") && !strings.HasPrefix(typ, "TIMESTAMP") {
			alter := fmt.Sprintf(
				`ALTER TABLE %s ALTER COLUMN %s SET DATA TYPE TIMESTAMP USING TRY_CAST(%s AS TIMESTAMP)`,
				TableName, quoteIdent(col.Name), quoteIdent(col.Name))
			if _, err := conn.ExecContext(ctx, alter); err != nil {
				return fmt.Errorf("failed to coerce date column %q: %w", col.Name, err)
			}
			continue
		}

		if typ != "VARCHAR" {
			continue
		}
		boolish, err := d.isBooleanColumn(ctx, conn, col.Name)
		if err != nil {
			return err
		}
		if boolish {
			alter := fmt.Sprintf(
				`ALTER TABLE %s ALTER COLUMN %s SET DATA TYPE BOOLEAN USING CAST(lower(trim(%s)) AS BOOLEAN)`,
				TableName, quoteIdent(col.Name), quoteIdent(col.Name))
			if _, err := conn.ExecContext(ctx, alter); err != nil {
				return fmt.Errorf("failed to coerce boolean column %q: %w", col.Name, err)
			}
		}
	}
	return nil
}

// isBooleanColumn reports whether every distinct non-null value of the column
// is one of "true"/"false" and both appear.
func (d *Dataset) isBooleanColumn(ctx context.Context, conn *duck.Connection, name string) (bool, error) {
	q := fmt.Sprintf(
		`SELECT count(DISTINCT lower(trim(%s))) = 2 AND bool_and(lower(trim(%s)) IN ('true', 'false'))
		 FROM %s WHERE %s IS NOT NULL`,
		quoteIdent(name), quoteIdent(name), TableName, quoteIdent(name))

	var ok *bool
	if err := conn.QueryRowContext(ctx, q).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to inspect column %q: %w", name, err)
	}
	return ok != nil && *ok, nil
}

func (d *Dataset) introspect(ctx context.Context, conn *duck.Connection) (SchemaSummary, error) {
	summary := SchemaSummary{Table: TableName}

	if err := conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, TableName)).Scan(&summary.Rows); err != nil {
		return SchemaSummary{}, fmt.Errorf("failed to count rows: %w", err)
	}

	cols, err := describe(ctx, conn)
	if err != nil {
		return SchemaSummary{}, err
	}

	for _, col := range cols {
		samples, distinct, err := sampleColumn(ctx, conn, col.Name)
		if err != nil {
			return SchemaSummary{}, err
		}
		col.Samples = samples
		if distinct > len(samples) {
			col.More = distinct - len(samples)
		}
		summary.Columns = append(summary.Columns, col)
	}
	return summary, nil
}

func describe(ctx context.Context, conn *duck.Connection) ([]Column, error) {
	rows, err := conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT column_name, column_type FROM (DESCRIBE %s)`, TableName))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column description: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column descriptions: %w", err)
	}
	return cols, nil
}

func sampleColumn(ctx context.Context, conn *duck.Connection, name string) ([]string, int, error) {
	var distinct int
	countQ := fmt.Sprintf(`SELECT count(DISTINCT %s) FROM %s WHERE %s IS NOT NULL`,
		quoteIdent(name), TableName, quoteIdent(name))
	if err := conn.QueryRowContext(ctx, countQ).Scan(&distinct); err != nil {
		return nil, 0, fmt.Errorf("failed to count distinct values for %q: %w", name, err)
	}

	sampleQ := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY 1 LIMIT %d`,
		quoteIdent(name), TableName, quoteIdent(name), maxSampleValues)
	rows, err := conn.QueryContext(ctx, sampleQ)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to sample column %q: %w", name, err)
	}
	defer rows.Close()

	var samples []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, 0, fmt.Errorf("failed to scan sample value for %q: %w", name, err)
		}
		switch val := v.(type) {
		case []byte:
			samples = append(samples, string(val))
		default:
			samples = append(samples, fmt.Sprintf("%v", val))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating samples for %q: %w", name, err)
	}
	return samples, distinct, nil
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a SQL string literal.
func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
