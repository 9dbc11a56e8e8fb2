package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The scripted driver answers each query from an ordered list of expected
// statements, so MySQL-only SQL can be exercised without a server.

type scriptedQuery struct {
	pattern *regexp.Regexp
	args    []driver.Value
	columns []string
	rows    [][]driver.Value
	err     error
}

type scriptedDB struct {
	mu      sync.Mutex
	queries []*scriptedQuery
}

func (db *scriptedDB) next(query string, args []driver.NamedValue) (*scriptedQuery, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.queries) == 0 {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	expected := db.queries[0]
	if !expected.pattern.MatchString(query) {
		return nil, fmt.Errorf("unexpected query: %s (want %s)", query, expected.pattern)
	}
	if len(expected.args) != len(args) {
		return nil, fmt.Errorf("unexpected arg count for %s: got %d want %d", query, len(args), len(expected.args))
	}
	for i := range args {
		if args[i].Value != expected.args[i] {
			return nil, fmt.Errorf("unexpected arg %d for %s: got %v want %v", i, query, args[i].Value, expected.args[i])
		}
	}
	db.queries = db.queries[1:]
	return expected, nil
}

func (db *scriptedDB) verifyComplete() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.queries) != 0 {
		return fmt.Errorf("unmet expectations: %d", len(db.queries))
	}
	return nil
}

type scriptedDriver struct{ db *scriptedDB }

func (d *scriptedDriver) Open(string) (driver.Conn, error) { return &scriptedConn{db: d.db}, nil }

type scriptedConn struct{ db *scriptedDB }

func (c *scriptedConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *scriptedConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	expected, err := c.db.next(query, args)
	if err != nil {
		return nil, err
	}
	if expected.err != nil {
		return nil, expected.err
	}
	return &scriptedRows{columns: expected.columns, rows: expected.rows}, nil
}

type scriptedRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
}

func (r *scriptedRows) Columns() []string { return r.columns }

func (r *scriptedRows) Close() error { return nil }

func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

var scriptedDriverSeq atomic.Int64

func newScriptedGormDB(t *testing.T, queries []*scriptedQuery) (*gorm.DB, *scriptedDB) {
	t.Helper()
	state := &scriptedDB{queries: queries}
	driverName := fmt.Sprintf("scripted_review_%d", scriptedDriverSeq.Add(1))
	sql.Register(driverName, &scriptedDriver{db: state})

	sqlDB, err := sql.Open(driverName, "")
	if err != nil {
		t.Fatalf("failed to open sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to create gorm db: %v", err)
	}
	return gormDB, state
}
