package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/enviro_monitor/internal/reading"
)

const timeColumnFormat = "2006-01-02 15:04:05.999999"

// Column is one entry of the store's schema descriptor.
type Column struct {
	Name string
	Type string
}

// SQLite persists readings to an embedded database, one row per reading
// keyed by timestamp. The schema descriptor is handed over once at
// construction and never changes afterwards: each run writes to a fresh
// table whose column set mirrors exactly the measurements enabled at
// process start. Both the CREATE TABLE and the INSERT are generated from
// the descriptor, and row values travel as bind parameters only.
type SQLite struct {
	db        *sql.DB
	table     string
	columns   []Column
	insertSQL string
	logger    *zap.Logger
}

func NewSQLite(logger *zap.Logger, path string, columns []Column, start time.Time) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// Single writer; the loop thread owns this connection.
	db.SetMaxOpenConns(1)

	table := "data_" + start.Format("2006_01_02_15_04_05")

	ddl := make([]string, 0, len(columns)+1)
	ddl = append(ddl, "time TEXT")
	for _, c := range columns {
		ddl = append(ddl, c.Name+" "+c.Type)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(ddl, ", "))
	if _, err := db.Exec(createSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}

	names := make([]string, 0, len(columns)+1)
	names = append(names, "time")
	for _, c := range columns {
		names = append(names, c.Name)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(names, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))

	logger.Info("local store ready",
		zap.String("path", path),
		zap.String("table", table),
		zap.Int("columns", len(columns)))

	return &SQLite{
		db:        db,
		table:     table,
		columns:   columns,
		insertSQL: insertSQL,
		logger:    logger,
	}, nil
}

func (s *SQLite) Name() string {
	return "sqlite"
}

// Store appends r as one row. The write is synchronous: when Store returns
// nil the row is committed.
func (s *SQLite) Store(ctx context.Context, r reading.Reading) error {
	byColumn := make(map[string]float64, 9)
	for _, f := range r.Fields() {
		byColumn[f.Column] = f.Value
	}

	args := make([]any, 0, len(s.columns)+1)
	args = append(args, r.Timestamp.Format(timeColumnFormat))
	for _, c := range s.columns {
		if v, ok := byColumn[c.Name]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}

	if _, err := s.db.ExecContext(ctx, s.insertSQL, args...); err != nil {
		return Fail(ClassTransient, fmt.Errorf("insert into %s: %w", s.table, err))
	}
	return nil
}

// Table returns the name of this run's table.
func (s *SQLite) Table() string {
	return s.table
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
