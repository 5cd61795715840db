package convo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Archive persists conversation turns, executed calls, and user preferences
// to a local SQLite database so that history and usage statistics survive
// restarts. The working pipeline never reads the archive on the hot path;
// it exists for `voxos stats` style offline inspection and for the
// set_model preference that is restored at startup.
//
// All methods are safe for concurrent use (database/sql serialises access).
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (and if necessary initialises) the archive at path.
// Use ":memory:" for an ephemeral archive in tests.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("convo: open archive %q: %w", path, err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at        TEXT NOT NULL,
	role      TEXT NOT NULL,
	text      TEXT NOT NULL,
	call_json TEXT,
	result    TEXT
);
CREATE TABLE IF NOT EXISTS calls (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT NOT NULL,
	capability TEXT NOT NULL,
	args_json  TEXT NOT NULL,
	ok         INTEGER NOT NULL,
	detail     TEXT
);
CREATE TABLE IF NOT EXISTS preferences (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_at ON turns(at);
CREATE INDEX IF NOT EXISTS idx_calls_capability ON calls(capability);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("convo: initialise archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// RecordTurn appends one conversation turn.
func (a *Archive) RecordTurn(turn Turn) error {
	var callJSON any
	if turn.Call != nil {
		b, err := json.Marshal(map[string]any{
			"name":       turn.Call.Name,
			"args":       turn.Call.Args,
			"confidence": turn.Call.Confidence,
		})
		if err != nil {
			return fmt.Errorf("convo: marshal call: %w", err)
		}
		callJSON = string(b)
	}
	_, err := a.db.Exec(
		`INSERT INTO turns (at, role, text, call_json, result) VALUES (?, ?, ?, ?, ?)`,
		turn.Time.UTC().Format(time.RFC3339Nano), string(turn.Role), turn.Text, callJSON, turn.Result,
	)
	if err != nil {
		return fmt.Errorf("convo: record turn: %w", err)
	}
	return nil
}

// RecordCall appends one executed (or failed) capability call.
func (a *Archive) RecordCall(capName string, args map[string]any, ok bool, detail string) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("convo: marshal args: %w", err)
	}
	okInt := 0
	if ok {
		okInt = 1
	}
	_, err = a.db.Exec(
		`INSERT INTO calls (at, capability, args_json, ok, detail) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), capName, string(argsJSON), okInt, detail,
	)
	if err != nil {
		return fmt.Errorf("convo: record call: %w", err)
	}
	return nil
}

// CallStats aggregates execution counts from the calls table.
type CallStats struct {
	Total         int
	Succeeded     int
	Failed        int
	PerCapability map[string]int
}

// Stats returns aggregate call statistics.
func (a *Archive) Stats() (CallStats, error) {
	stats := CallStats{PerCapability: make(map[string]int)}

	row := a.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(ok), 0) FROM calls`)
	if err := row.Scan(&stats.Total, &stats.Succeeded); err != nil {
		return CallStats{}, fmt.Errorf("convo: stats totals: %w", err)
	}
	stats.Failed = stats.Total - stats.Succeeded

	rows, err := a.db.Query(`SELECT capability, COUNT(*) FROM calls GROUP BY capability`)
	if err != nil {
		return CallStats{}, fmt.Errorf("convo: stats per capability: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return CallStats{}, fmt.Errorf("convo: stats scan: %w", err)
		}
		stats.PerCapability[name] = n
	}
	return stats, rows.Err()
}

// Prune deletes turns and calls recorded before cutoff and returns the
// number of rows removed.
func (a *Archive) Prune(cutoff time.Time) (int64, error) {
	at := cutoff.UTC().Format(time.RFC3339Nano)
	var total int64
	for _, table := range []string{"turns", "calls"} {
		res, err := a.db.Exec(`DELETE FROM `+table+` WHERE at < ?`, at)
		if err != nil {
			return total, fmt.Errorf("convo: prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// SetPreference stores a key/value preference, replacing any existing value.
func (a *Archive) SetPreference(key, value string) error {
	_, err := a.db.Exec(
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("convo: set preference %q: %w", key, err)
	}
	return nil
}

// Preference returns the stored value for key, or "" when unset.
func (a *Archive) Preference(key string) (string, error) {
	var value string
	err := a.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("convo: get preference %q: %w", key, err)
	}
	return value, nil
}

// TurnCount returns the number of archived turns.
func (a *Archive) TurnCount() (int, error) {
	var n int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&n); err != nil {
		return 0, fmt.Errorf("convo: turn count: %w", err)
	}
	return n, nil
}
