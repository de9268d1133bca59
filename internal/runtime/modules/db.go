package modules

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/funvibe/quill/internal/runtime"

	_ "modernc.org/sqlite"
)

// Db constructs the `std::db` module: a minimal SQLite surface for scripts.
// Handles are integers issued by open and resolved through a process-wide
// table; the single-threaded VM discipline makes the mutex cheap.
var (
	dbMu      sync.Mutex
	dbHandles = make(map[int64]*sql.DB)
	dbNext    int64 = 1
)

func Db() *runtime.Module {
	m := runtime.NewModule("std", "db")

	m.Function("open", func(args []runtime.Value) (runtime.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("db::open expects 1 argument, got %d", len(args))
		}
		path, ok := args[0].(*runtime.Str)
		if !ok {
			return nil, fmt.Errorf("db::open expects a string path")
		}
		conn, err := sql.Open("sqlite", path.Value)
		if err != nil {
			return nil, fmt.Errorf("db::open: %w", err)
		}
		dbMu.Lock()
		handle := dbNext
		dbNext++
		dbHandles[handle] = conn
		dbMu.Unlock()
		return &runtime.Integer{Value: handle}, nil
	})

	m.Function("close", func(args []runtime.Value) (runtime.Value, error) {
		conn, err := dbConn(args)
		if err != nil {
			return nil, err
		}
		handle := args[0].(*runtime.Integer).Value
		dbMu.Lock()
		delete(dbHandles, handle)
		dbMu.Unlock()
		if err := conn.Close(); err != nil {
			return nil, fmt.Errorf("db::close: %w", err)
		}
		return &runtime.Unit{}, nil
	})

	m.Function("exec", func(args []runtime.Value) (runtime.Value, error) {
		conn, err := dbConn(args)
		if err != nil {
			return nil, err
		}
		query, params, err := dbQueryArgs(args)
		if err != nil {
			return nil, err
		}
		result, err := conn.Exec(query, params...)
		if err != nil {
			return nil, fmt.Errorf("db::exec: %w", err)
		}
		affected, _ := result.RowsAffected()
		return &runtime.Integer{Value: affected}, nil
	})

	m.Function("query", func(args []runtime.Value) (runtime.Value, error) {
		conn, err := dbConn(args)
		if err != nil {
			return nil, err
		}
		query, params, err := dbQueryArgs(args)
		if err != nil {
			return nil, err
		}
		rows, err := conn.Query(query, params...)
		if err != nil {
			return nil, fmt.Errorf("db::query: %w", err)
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("db::query: %w", err)
		}

		var out []runtime.Value
		for rows.Next() {
			cells := make([]interface{}, len(columns))
			ptrs := make([]interface{}, len(columns))
			for i := range cells {
				ptrs[i] = &cells[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return nil, fmt.Errorf("db::query: %w", err)
			}
			fields := make(map[string]runtime.Value, len(columns))
			for i, column := range columns {
				fields[column] = sqlValue(cells[i])
			}
			out = append(out, &runtime.ObjectValue{Fields: fields})
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("db::query: %w", err)
		}
		return &runtime.VecValue{Items: out}, nil
	})

	return m
}

func dbConn(args []runtime.Value) (*sql.DB, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expected a database handle")
	}
	handle, ok := args[0].(*runtime.Integer)
	if !ok {
		return nil, fmt.Errorf("expected a database handle, got %s", args[0].Inspect())
	}
	dbMu.Lock()
	conn, ok := dbHandles[handle.Value]
	dbMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown database handle %d", handle.Value)
	}
	return conn, nil
}

func dbQueryArgs(args []runtime.Value) (string, []interface{}, error) {
	if len(args) < 2 {
		return "", nil, fmt.Errorf("expected a query string")
	}
	query, ok := args[1].(*runtime.Str)
	if !ok {
		return "", nil, fmt.Errorf("expected a query string, got %s", args[1].Inspect())
	}
	params := make([]interface{}, 0, len(args)-2)
	for _, arg := range args[2:] {
		switch v := arg.(type) {
		case *runtime.Integer:
			params = append(params, v.Value)
		case *runtime.Float:
			params = append(params, v.Value)
		case *runtime.Str:
			params = append(params, v.Value)
		case *runtime.Bool:
			params = append(params, v.Value)
		case *runtime.Unit:
			params = append(params, nil)
		default:
			return "", nil, fmt.Errorf("unsupported query parameter %s", arg.Inspect())
		}
	}
	return query.Value, params, nil
}

func sqlValue(cell interface{}) runtime.Value {
	switch v := cell.(type) {
	case nil:
		return &runtime.Unit{}
	case int64:
		return &runtime.Integer{Value: v}
	case float64:
		return &runtime.Float{Value: v}
	case bool:
		return &runtime.Bool{Value: v}
	case string:
		return &runtime.Str{Value: v}
	case []byte:
		return &runtime.Str{Value: string(v)}
	}
	return &runtime.Str{Value: fmt.Sprintf("%v", cell)}
}
