package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	"telemetry/internal/types"
)

// column is one named value in a parameterized INSERT. Text columns accept
// any value: non-string values are JSON-encoded by bindString before binding.
type column struct {
	name  string
	value any
	text  bool
}

// insert is one pending INSERT statement.
type insert struct {
	table string
	cols  []column
}

func textCol(name string, value any) column { return column{name: name, value: value, text: true} }
func col(name string, value any) column     { return column{name: name, value: value} }

// insertStatement renders INSERT INTO table (a, b) VALUES ($1, $2) and the
// matching argument list.
func insertStatement(table string, cols []column) (string, []any, error) {
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))

	for i, c := range cols {
		names[i] = c.name
		params[i] = fmt.Sprintf("$%d", i+1)

		v := c.value
		if c.text {
			bound, err := bindString(v)
			if err != nil {
				return "", nil, types.NewAppErrorWithDetails(types.ErrCodeInternalSerialization,
					fmt.Sprintf("failed to encode %s.%s", table, c.name), err,
					map[string]any{"column": c.name},
				)
			}
			v = bound
		}
		args[i] = v
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(params, ", "))
	return sql, args, nil
}

// bindString prepares a value for a text column. Strings and nil pass
// through, Valuers are asked for their text form, anything else becomes
// JSON.
func bindString(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case *string:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return nil, err
		}
		switch t := dv.(type) {
		case nil:
			return nil, nil
		case string:
			return t, nil
		}
		return types.MarshalJSONText(dv)
	}
	return types.MarshalJSONText(v)
}

// execInsert runs one INSERT under the statement timeout.
func execInsert(ctx context.Context, db DBTX, settings Settings, stmt insert) error {
	sql, args, err := insertStatement(stmt.table, stmt.cols)
	if err != nil {
		return err
	}

	stmtCtx, cancel := settings.statementContext(ctx)
	defer cancel()

	if _, err := db.Exec(stmtCtx, sql, args...); err != nil {
		return classifyError("failed to insert into "+stmt.table, err)
	}
	return nil
}
