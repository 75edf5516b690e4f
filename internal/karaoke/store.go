package karaoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDocNotFound is returned by Store implementations when no document has
// the requested id.
var ErrDocNotFound = errors.New("document not found")

// Store is the persistence collaborator: a document store addressed by
// collection and id. The core never sees SQL or storage internals.
type Store interface {
	GetDoc(ctx context.Context, collection, id string, out any) error
	SetDoc(ctx context.Context, collection, id string, doc any) error
	// UpdateDoc merges the given top-level fields into an existing document.
	UpdateDoc(ctx context.Context, collection, id string, fields map[string]any) error
	// QueryEquals returns all documents whose top-level field equals value.
	QueryEquals(ctx context.Context, collection, field, value string) ([]json.RawMessage, error)
	// ListDocs returns every document in a collection. Used only by the
	// admin metrics endpoint; collections here are small.
	ListDocs(ctx context.Context, collection string) ([]json.RawMessage, error)
}

// ArrayAppender is an optional Store capability: append one element to a
// top-level array field in a single atomic statement. Stores that support it
// make concurrent enqueues safe against lost updates; the service falls back
// to read-modify-write when the capability is absent.
type ArrayAppender interface {
	AppendToArray(ctx context.Context, collection, id, field string, value any) error
}

// DB is the subset of pgxpool.Pool the store needs. Narrowed so tests can
// substitute pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps each document as a JSONB row in a single table.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetDoc(ctx context.Context, collection, id string, out any) error {
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT doc FROM documents WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDocNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(raw, out)
}

func (s *PostgresStore) SetDoc(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (collection, id, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateDoc(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal update %s/%s: %w", collection, id, err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE documents SET doc = doc || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocNotFound
	}
	return nil
}

// AppendToArray concatenates one element onto a JSONB array field in a single
// UPDATE, so two concurrent appends can never drop each other.
func (s *PostgresStore) AppendToArray(ctx context.Context, collection, id, field string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal append %s/%s: %w", collection, id, err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE documents
		SET doc = jsonb_set(doc, ARRAY[$3], COALESCE(doc->$3, '[]'::jsonb) || $4::jsonb),
		    updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, field, raw)
	if err != nil {
		return fmt.Errorf("append %s/%s.%s: %w", collection, id, field, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocNotFound
	}
	return nil
}

func (s *PostgresStore) QueryEquals(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT doc FROM documents WHERE collection = $1 AND doc->>$2 = $3
	`, collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", collection, field, err)
	}
	defer rows.Close()
	return collectDocs(rows)
}

func (s *PostgresStore) ListDocs(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT doc FROM documents WHERE collection = $1
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()
	return collectDocs(rows)
}

func collectDocs(rows pgx.Rows) ([]json.RawMessage, error) {
	docs := []json.RawMessage{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		docs = append(docs, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
