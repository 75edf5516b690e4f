package karaoke

import (
	"context"
)

func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS documents (
          collection  TEXT NOT NULL,
          id          TEXT NOT NULL,
          doc         JSONB NOT NULL,
          updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (collection, id)
      )
    `); err != nil {
		return err
	}

	// Equality queries filter sessions by owner and status.
	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_documents_owner
      ON documents (collection, (doc->>'ownerId'))
    `); err != nil {
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_documents_status
      ON documents (collection, (doc->>'status'))
    `); err != nil {
		return err
	}

	return nil
}
