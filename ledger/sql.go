package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/oarkflow/aegis/errs"
)

// Dialect selects the SQL backend's driver and placeholder style.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// SQLBackend persists records through database/sql, using the driver
// registered under its Dialect. The same schema and queries, modulo
// placeholder syntax, serve all three dialects.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLiteBackend opens (creating if necessary) a SQLite-backed ledger
// store at path. Use ":memory:" for an ephemeral database.
func OpenSQLiteBackend(path string) (*SQLBackend, error) {
	return openSQLBackend(SQLite, path)
}

// OpenPostgresBackend opens a PostgreSQL-backed ledger store. dsn is a
// standard libpq connection string.
func OpenPostgresBackend(dsn string) (*SQLBackend, error) {
	return openSQLBackend(Postgres, dsn)
}

// OpenMySQLBackend opens a MySQL-backed ledger store. dsn follows
// go-sql-driver/mysql's DSN format (user:pass@tcp(host:port)/dbname).
func OpenMySQLBackend(dsn string) (*SQLBackend, error) {
	return openSQLBackend(MySQL, dsn)
}

func openSQLBackend(dialect Dialect, dsn string) (*SQLBackend, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, errs.Wrap(errs.BackendFailure, "open sql backend", err)
	}
	if err := db.Ping(); err != nil {
		return nil, errs.Wrap(errs.BackendFailure, "ping sql backend", err)
	}

	b := &SQLBackend{db: db, dialect: dialect}
	if err := b.createSchema(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *SQLBackend) createSchema() error {
	ddl := `
CREATE TABLE IF NOT EXISTS ledger_records (
	sequence INTEGER NOT NULL,
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	operation TEXT NOT NULL,
	inputs TEXT NOT NULL,
	output TEXT NOT NULL,
	coverage DOUBLE PRECISION NOT NULL,
	invariant_passed BOOLEAN NOT NULL,
	signature TEXT NOT NULL
)`
	if _, err := b.db.Exec(ddl); err != nil {
		return errs.Wrap(errs.BackendFailure, "create schema", err)
	}
	if _, err := b.db.Exec(`CREATE INDEX IF NOT EXISTS idx_ledger_parent_id ON ledger_records(parent_id)`); err != nil {
		return errs.Wrap(errs.BackendFailure, "create parent index", err)
	}
	if _, err := b.db.Exec(`CREATE INDEX IF NOT EXISTS idx_ledger_sequence ON ledger_records(sequence)`); err != nil {
		return errs.Wrap(errs.BackendFailure, "create sequence index", err)
	}
	return nil
}

// placeholder returns the dialect-appropriate bind placeholder for the
// n-th (1-indexed) parameter.
func (b *SQLBackend) placeholder(n int) string {
	if b.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (b *SQLBackend) Append(r Record) error {
	inputsJSON, err := json.Marshal(r.Inputs)
	if err != nil {
		return errs.Wrap(errs.BackendFailure, "marshal inputs", err)
	}
	outputJSON, err := json.Marshal(r.Output)
	if err != nil {
		return errs.Wrap(errs.BackendFailure, "marshal output", err)
	}

	query := fmt.Sprintf(`
INSERT INTO ledger_records
	(sequence, id, parent_id, operation, inputs, output, coverage, invariant_passed, signature)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		b.placeholder(1), b.placeholder(2), b.placeholder(3), b.placeholder(4),
		b.placeholder(5), b.placeholder(6), b.placeholder(7), b.placeholder(8), b.placeholder(9))

	var parentID any
	if r.ParentID != "" {
		parentID = r.ParentID
	}

	_, err = b.db.Exec(query, r.Sequence, r.ID, parentID, r.Operation,
		string(inputsJSON), string(outputJSON), r.Coverage, r.InvariantPassed, r.Signature)
	if err != nil {
		return errs.Wrap(errs.BackendFailure, "insert record", err)
	}
	return nil
}

func (b *SQLBackend) Get(id string) (Record, bool, error) {
	query := fmt.Sprintf(`
SELECT sequence, id, parent_id, operation, inputs, output, coverage, invariant_passed, signature
FROM ledger_records WHERE id = %s`, b.placeholder(1))

	row := b.db.QueryRow(query, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, errs.Wrap(errs.BackendFailure, "get record", err)
	}
	return rec, true, nil
}

func (b *SQLBackend) GetAll() ([]Record, error) {
	query := `
SELECT sequence, id, parent_id, operation, inputs, output, coverage, invariant_passed, signature
FROM ledger_records ORDER BY sequence ASC`

	rows, err := b.db.Query(query)
	if err != nil {
		return nil, errs.Wrap(errs.BackendFailure, "query all records", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errs.Wrap(errs.BackendFailure, "scan record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.BackendFailure, "iterate records", err)
	}
	return out, nil
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which expose
// Scan with the same signature.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (Record, error) {
	var (
		rec        Record
		parentID   sql.NullString
		inputsJSON string
		outputJSON string
	)
	if err := s.Scan(&rec.Sequence, &rec.ID, &parentID, &rec.Operation,
		&inputsJSON, &outputJSON, &rec.Coverage, &rec.InvariantPassed, &rec.Signature); err != nil {
		return Record{}, err
	}
	rec.ParentID = parentID.String

	if err := json.Unmarshal([]byte(inputsJSON), &rec.Inputs); err != nil {
		return Record{}, fmt.Errorf("unmarshal inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(outputJSON), &rec.Output); err != nil {
		return Record{}, fmt.Errorf("unmarshal output: %w", err)
	}
	return rec, nil
}
