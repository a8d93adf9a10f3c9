package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mossy-p/stranger-signaling/internal/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type DB struct {
	*bun.DB
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// InitSchema creates the session history table if it doesn't exist
func (db *DB) InitSchema(ctx context.Context) error {
	_, err := db.NewCreateTable().
		Model((*models.SessionRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.SessionRecord)(nil)).
		Index("session_history_ended_at_idx").
		IfNotExists().
		Column("ended_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (db *DB) InsertSession(ctx context.Context, record *models.SessionRecord) error {
	_, err := db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error inserting session %s: %w", record.ID, err)
	}
	return nil
}

// RecentSessions returns the newest finished sessions first.
func (db *DB) RecentSessions(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	records := make([]models.SessionRecord, 0, limit)
	err := db.NewSelect().
		Model(&records).
		OrderExpr("ended_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting recent sessions: %w", err)
	}
	return records, nil
}
