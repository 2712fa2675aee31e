package archive

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/felipemacedo1/go-msg-wss-app/internal/models"
)

// Store persists a transcript of every room this client synchronizes.
// Snapshots and applied events both land in the same upsert path, so the
// archive converges on the server state regardless of replays.
type Store interface {
	SaveSnapshot(ctx context.Context, roomID string, msgs []models.Message) error
	SaveMessage(ctx context.Context, msg models.Message) error
	Close() error
}

// NewStore connects the archive, or returns a noop store when no DSN is
// configured.
func NewStore(dsn string) (Store, error) {
	if dsn == "" {
		log.Printf("archive disabled, using noop: empty dsn")
		return noopStore{}, nil
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect archive db: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run archive migrations: %w", err)
	}
	log.Printf("archive connected")
	return &sqlStore{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS archived_messages (
            room_id TEXT NOT NULL,
            id TEXT NOT NULL,
            body TEXT NOT NULL,
            author_id TEXT NOT NULL DEFAULT '',
            author_name TEXT NOT NULL DEFAULT '',
            reaction_count BIGINT NOT NULL DEFAULT 0,
            answered BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL,
            archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (room_id, id)
        );`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

type sqlStore struct {
	db *sqlx.DB
}

const upsertMessage = `INSERT INTO archived_messages
        (room_id, id, body, author_id, author_name, reaction_count, answered, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    ON CONFLICT (room_id, id) DO UPDATE SET
        body = EXCLUDED.body,
        reaction_count = EXCLUDED.reaction_count,
        answered = archived_messages.answered OR EXCLUDED.answered`

func (s *sqlStore) SaveSnapshot(ctx context.Context, roomID string, msgs []models.Message) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if _, err := tx.ExecContext(ctx, upsertMessage,
			roomID, msg.ID, msg.Body, msg.AuthorID, msg.AuthorName, msg.ReactionCount, msg.Answered, msg.CreatedAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqlStore) SaveMessage(ctx context.Context, msg models.Message) error {
	_, err := s.db.ExecContext(ctx, upsertMessage,
		msg.RoomID, msg.ID, msg.Body, msg.AuthorID, msg.AuthorName, msg.ReactionCount, msg.Answered, msg.CreatedAt)
	return err
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type noopStore struct{}

func (noopStore) SaveSnapshot(ctx context.Context, roomID string, msgs []models.Message) error {
	return nil
}

func (noopStore) SaveMessage(ctx context.Context, msg models.Message) error {
	return nil
}

func (noopStore) Close() error {
	return nil
}
