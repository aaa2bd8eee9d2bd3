package tradelog

import (
	"database/sql"
	"fmt"

	"github.com/bytedance/sonic"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	agent TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	mode TEXT NOT NULL,
	time DATETIME NOT NULL,
	payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_time ON entries(time);
CREATE INDEX IF NOT EXISTS idx_entries_agent ON entries(agent);
`

// SQLiteLog stores entries in SQLite, one row per entry with the agent
// payload as JSON. Capacity is enforced by deleting the oldest rows.
type SQLiteLog struct {
	db         *sql.DB
	maxEntries int
}

// NewSQLite opens (or creates) the log database at path.
func NewSQLite(path string, maxEntries int) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trade log db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init trade log schema: %w", err)
	}
	return &SQLiteLog{db: db, maxEntries: maxEntries}, nil
}

func (l *SQLiteLog) Append(e Entry) error {
	payload, err := sonic.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode trade log entry: %w", err)
	}

	if _, err := l.db.Exec(`
		INSERT INTO entries (id, agent, agent_type, mode, time, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Agent, string(e.AgentType), string(e.Mode), e.Time, string(payload),
	); err != nil {
		return fmt.Errorf("append trade log entry: %w", err)
	}

	if l.maxEntries > 0 {
		// ULIDs sort by creation time, so id order is append order.
		if _, err := l.db.Exec(`
			DELETE FROM entries WHERE id NOT IN (
				SELECT id FROM entries ORDER BY id DESC LIMIT ?
			)`, l.maxEntries,
		); err != nil {
			return fmt.Errorf("rotate trade log: %w", err)
		}
	}
	return nil
}

// Entries returns all stored entries in append order.
func (l *SQLiteLog) Entries() ([]Entry, error) {
	rows, err := l.db.Query(`SELECT payload FROM entries ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query trade log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e Entry
		if err := sonic.UnmarshalString(payload, &e); err != nil {
			return nil, fmt.Errorf("decode trade log entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
