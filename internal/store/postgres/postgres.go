package postgres

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vovakirdan/pollchat/internal/store"
)

// appendLockKey identifies the advisory lock serializing inserts across server processes.
const appendLockKey int64 = 0x706f6c6c63686174

// Config holds PostgreSQL connection settings.
type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN renders the keyword/value connection string understood by pgx.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode,
	)
}

// messageRow maps chat_messages for gorm.
type messageRow struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Username  string    `gorm:"column:username"`
	Room      string    `gorm:"column:room"`
	Text      string    `gorm:"column:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (messageRow) TableName() string {
	return store.TableName
}

// PostgresStore implements store.MessageLog on PostgreSQL via gorm.
type PostgresStore struct {
	db *gorm.DB
}

// gormWriter sends gorm's slow-query and error lines to zerolog at warn level.
type gormWriter struct {
	log *zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn().Msgf(format, args...)
}

// New opens a PostgreSQL connection using the given config.
func New(cfg Config, log *zerolog.Logger) (*PostgresStore, error) {
	return Open(cfg.DSN(), cfg.MaxOpenConns, cfg.MaxIdleConns, log)
}

// Open connects using a raw DSN. Pool limits of zero keep the driver defaults.
func Open(dsn string, maxOpen, maxIdle int, log *zerolog.Logger) (*PostgresStore, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}
	if log != nil {
		gormCfg.Logger = logger.New(gormWriter{log: log}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureSchema creates chat_messages and adds the room column for deployments that predate rooms.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chat_messages (
			id         SERIAL PRIMARY KEY,
			username   TEXT NOT NULL,
			room       TEXT NOT NULL DEFAULT '%s',
			text       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, store.DefaultRoom),
		fmt.Sprintf(`ALTER TABLE chat_messages ADD COLUMN IF NOT EXISTS room TEXT NOT NULL DEFAULT '%s'`, store.DefaultRoom),
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room_id ON chat_messages (room, id)`,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range statements {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}

// Insert writes msg inside a transaction holding the append advisory lock.
// The id and created_at come from the database defaults.
func (s *PostgresStore) Insert(ctx context.Context, msg *store.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", appendLockKey).Error; err != nil {
			return fmt.Errorf("acquire append lock: %w", err)
		}

		row := tx.Raw(
			`INSERT INTO chat_messages (username, room, text) VALUES (?, ?, ?) RETURNING id, created_at`,
			msg.Username, msg.Room, msg.Text,
		).Row()

		var id int64
		var createdAt time.Time
		if err := row.Scan(&id, &createdAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		msg.ID = id
		msg.CreatedAt = createdAt
		return nil
	})
}

// Since streams messages of a room newer than sinceID, oldest first.
func (s *PostgresStore) Since(ctx context.Context, room string, sinceID int64) iter.Seq2[*store.Message, error] {
	return func(yield func(*store.Message, error) bool) {
		db := s.db.WithContext(ctx)
		rows, err := db.Model(&messageRow{}).
			Where("room = ? AND id > ?", room, sinceID).
			Order("id ASC").
			Rows()
		if err != nil {
			yield(nil, fmt.Errorf("query messages: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row messageRow
			if err := db.ScanRows(rows, &row); err != nil {
				yield(nil, fmt.Errorf("scan message: %w", err))
				return
			}
			msg := &store.Message{
				ID:        row.ID,
				Username:  row.Username,
				Room:      row.Room,
				Text:      row.Text,
				CreatedAt: row.CreatedAt,
			}
			if !yield(msg, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate messages: %w", err))
		}
	}
}
