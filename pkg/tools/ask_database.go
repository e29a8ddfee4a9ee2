package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type askDatabase struct {
	db        *sql.DB
	schemaXML string
}

// NewAskDatabase builds the read-only SQL tool. The schema of the listed
// tables is captured once at startup and embedded in the parameter
// description so the model can write valid queries.
func NewAskDatabase(ctx context.Context, db *sql.DB, tables []string) (*askDatabase, error) {
	schemaXML, err := formatDatabaseToXML(ctx, db, tables)
	if err != nil {
		return nil, fmt.Errorf("describing database schema: %w", err)
	}

	return &askDatabase{db: db, schemaXML: schemaXML}, nil
}

func (a *askDatabase) Register(registry *Registry) error {
	description := fmt.Sprintf(`SQL query extracting info to answer the user's question.
SQL should be written using this database schema:

%s

The results should be returned in plain text, not in JSON.
Data should be presentable to business folks; please format it nicely.`, a.schemaXML)

	return registry.Register(
		"ask_database",
		"Use this function to answer user questions about the service's data. Output should be a fully formed SQL query.",
		[]Param{{
			Name:        "query",
			Type:        jsonschema.String,
			Description: description,
			Required:    true,
		}},
		a.invoke,
	)
}

// invoke runs the model-written query. Query failures are returned as tool
// output so the model can correct itself on the follow-up completion.
func (a *askDatabase) invoke(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Sprintf("query failed: %v", err), nil
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return fmt.Sprintf("reading results failed: %v", err), nil
	}

	encoded, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	return string(encoded), nil
}

func scanRecords(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		for i := range values {
			values[i] = new(any)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			record[col] = normalizeValue(*values[i].(*any))
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return v
	}
}

func formatDatabaseToXML(ctx context.Context, db *sql.DB, tables []string) (string, error) {
	const query = `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position
	`

	var sb strings.Builder
	for _, table := range tables {
		rows, err := db.QueryContext(ctx, query, table)
		if err != nil {
			return "", fmt.Errorf("describing table %q: %w", table, err)
		}

		sb.WriteString("<table><name>" + table + "</name><rows>")
		for rows.Next() {
			var name, dataType string
			if err := rows.Scan(&name, &dataType); err != nil {
				rows.Close()
				return "", fmt.Errorf("scanning column of %q: %w", table, err)
			}
			sb.WriteString("<row><field>" + name + "</field><type>" + dataType + "</type></row>")
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return "", fmt.Errorf("iterating columns of %q: %w", table, err)
		}
		rows.Close()
		sb.WriteString("</rows></table>")
	}
	return sb.String(), nil
}
