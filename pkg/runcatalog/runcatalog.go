// Package runcatalog keeps a small SQLite catalog of measured runs: which
// IPTS a run belongs to, where its raw file lives and how far processing
// has come.
package runcatalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Catalog struct {
	db *sql.DB
}

type Run struct {
	RunNumber    int
	IPTS         int
	RawPath      string // acquisition output the run was ingested from
	ProjectPath  string // set once reduction has produced a project file
	RegisteredAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_number INTEGER PRIMARY KEY,
	ipts INTEGER NOT NULL,
	raw_path TEXT NOT NULL,
	project_path TEXT NOT NULL DEFAULT '',
	registered_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_ipts ON runs (ipts);
`

func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("runcatalog: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runcatalog: schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// re-registering a run updates its IPTS and raw path
func (c *Catalog) Register(ctx context.Context, runNumber int, ipts int, rawPath string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (run_number, ipts, raw_path, registered_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (run_number) DO UPDATE SET ipts = excluded.ipts, raw_path = excluded.raw_path`,
		runNumber, ipts, rawPath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("runcatalog: register run %d: %w", runNumber, err)
	}

	return nil
}

func (c *Catalog) SetProjectPath(ctx context.Context, runNumber int, projectPath string) error {
	result, err := c.db.ExecContext(ctx,
		`UPDATE runs SET project_path = ? WHERE run_number = ?`, projectPath, runNumber)
	if err != nil {
		return fmt.Errorf("runcatalog: run %d: %w", runNumber, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("runcatalog: run %d is not registered", runNumber)
	}

	return nil
}

func (c *Catalog) Run(ctx context.Context, runNumber int) (*Run, error) {
	run := &Run{}
	err := c.db.QueryRowContext(ctx, `
		SELECT run_number, ipts, raw_path, project_path, registered_at
		FROM runs WHERE run_number = ?`, runNumber).Scan(
		&run.RunNumber, &run.IPTS, &run.RawPath, &run.ProjectPath, &run.RegisteredAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("runcatalog: run %d is not registered", runNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("runcatalog: run %d: %w", runNumber, err)
	}

	return run, nil
}

func (c *Catalog) RunsForIPTS(ctx context.Context, ipts int) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_number, ipts, raw_path, project_path, registered_at
		FROM runs WHERE ipts = ? ORDER BY run_number`, ipts)
	if err != nil {
		return nil, fmt.Errorf("runcatalog: ipts %d: %w", ipts, err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run := Run{}
		if err := rows.Scan(&run.RunNumber, &run.IPTS, &run.RawPath, &run.ProjectPath, &run.RegisteredAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
