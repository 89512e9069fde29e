package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	HuntID    string                 `json:"hunt_id"`
}

// MatchRow represents a discovered match stored in Postgres.
type MatchRow struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"ts"`
	Payload     string    `json:"payload"`
	PatternName string    `json:"pattern"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Artifact    string    `json:"artifact"`
	IsSelfTest  bool      `json:"is_self_test"`
	HuntID      string    `json:"hunt_id"`
}

// Client manages the Postgres connection for event and match storage.
type Client struct {
	db     *sql.DB
	huntID string
}

// New creates a new Postgres client using environment variables.
// Returns an error if the connection cannot be established; callers treat
// persistence as optional and degrade gracefully.
func New(huntID string) (*Client, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "patternhunt")
	dbname := getEnv("PGDATABASE", "patternhunt")
	password := os.Getenv("PGPASSWORD")

	var connStr string
	if password != "" {
		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	} else {
		connStr = fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
			host, port, user, dbname)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:     db,
		huntID: huntID,
	}

	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id BIGSERIAL PRIMARY KEY,
			ts       TIMESTAMPTZ NOT NULL,
			level    TEXT NOT NULL,
			event    TEXT NOT NULL,
			msg      TEXT,
			fields   JSONB,
			hunt_id  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_hunt_id ON events(hunt_id);

		CREATE TABLE IF NOT EXISTS matches (
			id           TEXT PRIMARY KEY,
			ts           TIMESTAMPTZ NOT NULL,
			payload      TEXT NOT NULL,
			pattern_name TEXT NOT NULL,
			x            INT NOT NULL,
			y            INT NOT NULL,
			artifact     TEXT NOT NULL,
			is_self_test BOOLEAN NOT NULL,
			hunt_id      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_matches_ts ON matches(ts DESC);
	`
	_, err := c.db.Exec(query)
	return err
}

// AppendEvent inserts an event into the database.
func (c *Client) AppendEvent(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, hunt_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.huntID)
	return err
}

// InsertMatch persists a discovered match.
func (c *Client) InsertMatch(m MatchRow) error {
	query := `
		INSERT INTO matches (id, ts, payload, pattern_name, x, y, artifact, is_self_test, hunt_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := c.db.Exec(query, m.ID, m.Timestamp, m.Payload, m.PatternName, m.X, m.Y, m.Artifact, m.IsSelfTest, c.huntID)
	return err
}

// QueryEvents returns the last N events in descending timestamp order.
func (c *Client) QueryEvents(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, hunt_id
		FROM events
		WHERE hunt_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.huntID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.HuntID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		out = append(out, e)
	}

	return out, rows.Err()
}

// QueryMatches returns the last N matches in descending timestamp order.
func (c *Client) QueryMatches(limit int) ([]MatchRow, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, ts, payload, pattern_name, x, y, artifact, is_self_test, hunt_id
		FROM matches
		WHERE hunt_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.huntID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var m MatchRow
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Payload, &m.PatternName, &m.X, &m.Y, &m.Artifact, &m.IsSelfTest, &m.HuntID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

// Ping checks that the database connection is still alive.
func (c *Client) Ping() error {
	return c.db.Ping()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
