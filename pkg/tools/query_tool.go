package tools

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/parth0774/Sales-AI-Agent/pkg/dataset"
	"github.com/parth0774/Sales-AI-Agent/pkg/react"
)

// ToolName is the name the query tool is advertised under.
const ToolName = "query_subscription_data"

const (
	maxResultRows  = 50  // maximum rows included in a result
	maxValueLength = 100 // maximum length for individual cell values
)

// SubscriptionQueryTool implements react.ToolClient by running SQL snippets
// against the pre-loaded subscription dataset. It is a trusted-operator
// convenience, not a security boundary: it does not sandbox the SQL, but it
// isolates execution failures so a bad snippet never crashes the caller.
type SubscriptionQueryTool struct {
	log *slog.Logger
	ds  *dataset.Dataset
}

// NewSubscriptionQueryTool creates a new SubscriptionQueryTool.
func NewSubscriptionQueryTool(ds *dataset.Dataset, log *slog.Logger) *SubscriptionQueryTool {
	return &SubscriptionQueryTool{log: log, ds: ds}
}

// ListTools returns the available tools. The description is derived from the
// current schema summary, so it stays consistent across dataset reloads.
func (q *SubscriptionQueryTool) ListTools(ctx context.Context) ([]react.Tool, error) {
	sum := q.ds.Summary()

	names := make([]string, len(sum.Columns))
	for i, col := range sum.Columns {
		names[i] = col.Name
	}
	description := fmt.Sprintf(
		"Execute a SQL query against the %s table (%d rows). Available columns: %s. "+
			"Returns results in compact text format (max %d rows displayed).",
		sum.Table, sum.Rows, strings.Join(names, ", "), maxResultRows)

	return []react.Tool{
		{
			Name:        ToolName,
			Description: description,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sql": map[string]any{
						"type":        "string",
						"description": "The SQL query to execute against the " + sum.Table + " table",
					},
				},
				"required": []string{"sql"},
			},
		},
	}, nil
}

// CallToolText calls a tool and returns the result as text. Query failures
// are returned as error-flagged text, never as Go errors, so the model always
// receives something it can reason about.
func (q *SubscriptionQueryTool) CallToolText(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	if name != ToolName {
		return "", true, fmt.Errorf("unknown tool: %s", name)
	}

	sql, ok := args["sql"].(string)
	if !ok {
		return "", true, fmt.Errorf("sql parameter is required and must be a string")
	}

	if q.log != nil {
		q.log.Info("executing query", "sql", sql)
	}

	conn, err := q.ds.DB().Conn(ctx)
	if err != nil {
		return fmt.Sprintf("Error connecting to database: %v", err), true, nil
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, sql)
	if err != nil {
		return formatQueryError(err), true, nil
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return formatQueryError(err), true, nil
	}

	var resultRows [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return formatQueryError(err), true, nil
		}

		row := make([]string, len(columns))
		for i, val := range values {
			switch v := val.(type) {
			case nil:
				row[i] = "NULL"
			case []byte:
				row[i] = string(v)
			default:
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return formatQueryError(err), true, nil
	}

	return formatCompactResult(columns, resultRows), false, nil
}

// Binder errors quote the identifier; catalog errors name it after
// "with name".
var (
	quotedIdentRe   = regexp.MustCompile(`"([^"]+)"`)
	catalogIdentRe  = regexp.MustCompile(`(?i)with name\s+(\S+?)\s+does not exist`)
	functionIdentRe = regexp.MustCompile(`(?i)function\s+"?([a-zA-Z_][a-zA-Z0-9_]*)"?\s+(?:does not exist|not found)`)
)

// formatQueryError turns a query failure into a structured error string. A
// missing table or column is identified by name where the engine reports one;
// anything else gets a syntax hint.
func formatQueryError(err error) string {
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "does not exist") ||
		strings.Contains(lowered, "not found") ||
		strings.Contains(lowered, "catalog error") ||
		strings.Contains(lowered, "binder error") {
		if name := missingResourceName(msg); name != "" {
			return fmt.Sprintf("Error: unknown table or column %q referenced by the query. Original error: %s", name, msg)
		}
		return fmt.Sprintf("Error: unknown table or column referenced by the query. Original error: %s", msg)
	}
	return fmt.Sprintf("Error executing query: %s. Check your SQL syntax and column names.", msg)
}

func missingResourceName(msg string) string {
	if m := quotedIdentRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := catalogIdentRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := functionIdentRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

// formatCompactResult formats query results in a compact text format to keep
// the model's context small.
func formatCompactResult(columns []string, rows [][]string) string {
	count := len(rows)
	if count == 0 {
		return "Query returned no results."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(columns, ", ")))

	displayRows := count
	if displayRows > maxResultRows {
		displayRows = maxResultRows
	}
	sb.WriteString(fmt.Sprintf("Rows (%d total, showing %d):\n", count, displayRows))

	for i := 0; i < displayRows; i++ {
		values := make([]string, len(rows[i]))
		for j, s := range rows[i] {
			if len(s) > maxValueLength {
				s = s[:maxValueLength-3] + "..."
			}
			values[j] = s
		}
		sb.WriteString(strings.Join(values, " | ") + "\n")
	}

	if count > maxResultRows {
		sb.WriteString(fmt.Sprintf("... and %d more rows\n", count-maxResultRows))
	}

	return sb.String()
}
