package recordstore

import (
	"context"
	"database/sql"
	"fmt"
)

// TableName is the table imported rows are written to.
const TableName = "csv_import"

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS csv_import (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		surname TEXT NOT NULL,
		initials TEXT,
		age INTEGER,
		dateOfBirth TEXT NOT NULL,
		UNIQUE(name, surname, dateOfBirth)
	)
`

// The first row for a key wins; later rows with the same key affect zero rows.
const insertSQL = `
	INSERT INTO csv_import (name, surname, initials, age, dateOfBirth)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(name, surname, dateOfBirth) DO NOTHING
`

// ImportedRow is one persisted row.
type ImportedRow struct {
	ID          int64
	Name        string
	Surname     string
	Initials    string
	Age         sql.NullInt64
	DateOfBirth string
}

// ReadRows returns every imported row ordered by id. It opens its own
// connection and must not be called while a session holds the file.
func ReadRows(ctx context.Context, dbPath string) ([]ImportedRow, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT id, name, surname, COALESCE(initials, ''), age, dateOfBirth
		FROM csv_import ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query imported rows: %w", err)
	}
	defer rows.Close()

	var out []ImportedRow
	for rows.Next() {
		var r ImportedRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Surname, &r.Initials, &r.Age, &r.DateOfBirth); err != nil {
			return nil, fmt.Errorf("scan imported row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate imported rows: %w", err)
	}
	return out, nil
}
