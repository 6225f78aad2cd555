package remote

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// allowedColumns whitelists filter columns so a Query can never inject SQL.
var allowedColumns = map[string]bool{
	"user_id":   true,
	"task_id":   true,
	"task_date": true,
	"completed": true,
}

// LibSQLStore is a Store backed by a Turso (libSQL) database table.
// It speaks the same logical schema as the REST backend.
type LibSQLStore struct {
	conn  *sql.DB
	table string
}

// OpenLibSQL connects to a libSQL database. The URL is a
// libsql://host?authToken=... connection string, or file: for embedded use.
//
// The caller MUST call Close() when done.
func OpenLibSQL(url, table string) (*LibSQLStore, error) {
	conn, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrUnavailable, err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &LibSQLStore{conn: conn, table: table}
	if err := s.ensureSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *LibSQLStore) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *LibSQLStore) ensureSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		user_id      TEXT NOT NULL,
		task_id      INTEGER NOT NULL,
		text         TEXT NOT NULL,
		completed    INTEGER NOT NULL DEFAULT 0,
		date_created TEXT NOT NULL,
		task_date    TEXT NOT NULL,
		PRIMARY KEY (user_id, task_date, task_id)
	);
	CREATE INDEX IF NOT EXISTS idx_%s_user_date ON %s(user_id, task_date);
	`, s.table, s.table, s.table)

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("%w: init schema: %v", ErrUnavailable, err)
	}
	return nil
}

// Insert implements Store.Insert as an upsert, so re-running an
// interrupted cycle converges instead of failing on the primary key.
func (s *LibSQLStore) Insert(ctx context.Context, rec Record) error {
	query := fmt.Sprintf(`
	INSERT INTO %s (user_id, task_id, text, completed, date_created, task_date)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, task_date, task_id) DO UPDATE SET
		text = excluded.text,
		completed = excluded.completed,
		date_created = excluded.date_created
	`, s.table)

	_, err := s.conn.ExecContext(ctx, query,
		rec.UserID,
		rec.TaskID,
		rec.Text,
		boolToInt(rec.Completed),
		rec.DateCreated.Format(time.RFC3339),
		rec.TaskDate,
	)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrUnavailable, err)
	}
	return nil
}

// Select implements Store.Select.
func (s *LibSQLStore) Select(ctx context.Context, q Query) ([]Record, error) {
	where, args, err := buildWhere(q)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT user_id, task_id, text, completed, date_created, task_date FROM %s", s.table)
	if where != "" {
		query += " WHERE " + where
	}
	if q.OrderBy != "" {
		if !allowedColumns[q.OrderBy] && q.OrderBy != "date_created" {
			return nil, fmt.Errorf("unsupported order column %q", q.OrderBy)
		}
		query += " ORDER BY " + q.OrderBy
		if q.Descending {
			query += " DESC"
		}
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var completed int
		var created string
		if err := rows.Scan(&rec.UserID, &rec.TaskID, &rec.Text, &completed, &created, &rec.TaskDate); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		rec.Completed = completed != 0
		if ts, err := time.Parse(time.RFC3339, created); err == nil {
			rec.DateCreated = ts
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrUnavailable, err)
	}
	return recs, nil
}

// Update implements Store.Update.
func (s *LibSQLStore) Update(ctx context.Context, p Patch, q Query) error {
	var sets []string
	var args []interface{}
	if p.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *p.Text)
	}
	if p.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*p.Completed))
	}
	if len(sets) == 0 {
		return nil
	}

	where, whereArgs, err := buildWhere(q)
	if err != nil {
		return err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s", s.table, strings.Join(sets, ", "))
	if where != "" {
		query += " WHERE " + where
	}

	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: update: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete implements Store.Delete.
func (s *LibSQLStore) Delete(ctx context.Context, q Query) error {
	where, args, err := buildWhere(q)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s", s.table)
	if where != "" {
		query += " WHERE " + where
	}

	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}
	return nil
}

func buildWhere(q Query) (string, []interface{}, error) {
	cols := make([]string, 0, len(q.Eq))
	for col := range q.Eq {
		if !allowedColumns[col] {
			return "", nil, fmt.Errorf("unsupported filter column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var conditions []string
	var args []interface{}
	for _, col := range cols {
		conditions = append(conditions, col+" = ?")
		args = append(args, q.Eq[col])
	}
	return strings.Join(conditions, " AND "), args, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
