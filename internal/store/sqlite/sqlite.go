package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/pollchat/internal/store"
)

// SQLiteStore implements store.MessageLog for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, nil)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to seed legacy tables before the schema bootstrap.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates chat_messages and adds the room column to legacy tables.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chat_messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			username   TEXT NOT NULL,
			room       TEXT NOT NULL DEFAULT '%s',
			text       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, store.DefaultRoom)
	if _, err := tx.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	hasRoom, err := hasColumn(ctx, tx, store.TableName, "room")
	if err != nil {
		return err
	}
	if !hasRoom {
		// SQLite has no ADD COLUMN IF NOT EXISTS.
		addRoom := fmt.Sprintf(`ALTER TABLE chat_messages ADD COLUMN room TEXT NOT NULL DEFAULT '%s'`, store.DefaultRoom)
		if _, err := tx.ExecContext(ctx, addRoom); err != nil {
			return fmt.Errorf("add room column: %w", err)
		}
	}

	createIndex := `CREATE INDEX IF NOT EXISTS idx_chat_messages_room_id ON chat_messages(room, id)`
	if _, err := tx.ExecContext(ctx, createIndex); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, fmt.Errorf("query table info: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("scan table info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Insert persists a message and fills in its ID and CreatedAt.
func (s *SQLiteStore) Insert(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO chat_messages (username, room, text, created_at)
		VALUES (?, ?, ?, ?)
	`
	createdAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query, msg.Username, msg.Room, msg.Text, createdAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt
	return nil
}

// Since streams messages of a room newer than sinceID, oldest first.
func (s *SQLiteStore) Since(ctx context.Context, room string, sinceID int64) iter.Seq2[*store.Message, error] {
	return func(yield func(*store.Message, error) bool) {
		query := `
			SELECT id, username, room, text, created_at
			FROM chat_messages
			WHERE room = ? AND id > ?
			ORDER BY id ASC
		`
		rows, err := s.db.QueryContext(ctx, query, room, sinceID)
		if err != nil {
			yield(nil, fmt.Errorf("query messages: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var msg store.Message
			if err := rows.Scan(&msg.ID, &msg.Username, &msg.Room, &msg.Text, &msg.CreatedAt); err != nil {
				yield(nil, fmt.Errorf("scan message: %w", err))
				return
			}
			if !yield(&msg, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate messages: %w", err))
		}
	}
}
