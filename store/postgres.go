package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const (
	selectNodeQuery   = `SELECT body #> $2 FROM documents WHERE collection = $1`
	lockDocumentQuery = `SELECT body FROM documents WHERE collection = $1 FOR UPDATE`
	upsertDocumentSQL = `INSERT INTO documents (collection, body, updated_at) VALUES ($1, $2, now())
ON CONFLICT (collection) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`
	deleteDocumentSQL = `DELETE FROM documents WHERE collection = $1`
)

// PostgresStore keeps each top-level collection as one JSONB document. Writes
// lock the collection row for the duration of the change.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ReadAll(ctx context.Context, path string) (Snapshot, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	rest := append([]string{}, segments[1:]...)

	var raw []byte
	err = s.db.QueryRowContext(ctx, selectNodeQuery, segments[0], pq.Array(rest)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshotOf(nil, false)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}
	return decodeSnapshot(raw)
}

func (s *PostgresStore) ReadFiltered(ctx context.Context, path, field string, value any) ([]Child, error) {
	snapshot, err := s.ReadAll(ctx, path)
	if err != nil {
		return nil, err
	}
	return filterChildren(snapshot.Children, field, value)
}

func (s *PostgresStore) PushNew(ctx context.Context, path string, value any) (string, error) {
	if _, err := SplitPath(path); err != nil {
		return "", err
	}
	key := newPushKey()
	if err := s.SetAt(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *PostgresStore) SetAt(ctx context.Context, path string, value any) error {
	segments, err := SplitPath(path)
	if err != nil {
		return err
	}
	normalized, err := normalize(value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, segments[0], func(tree map[string]any) {
		setNode(tree, segments, normalized)
	})
}

func (s *PostgresStore) UpdateAt(ctx context.Context, path string, fields map[string]any) error {
	segments, err := SplitPath(path)
	if err != nil {
		return err
	}
	updates, err := planUpdate(segments, fields)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}
	return s.mutate(ctx, segments[0], func(tree map[string]any) {
		applyUpdate(tree, updates)
	})
}

func (s *PostgresStore) DeleteAt(ctx context.Context, path string) error {
	return s.SetAt(ctx, path, nil)
}

// mutate loads the collection document under a row lock, applies change to a
// tree rooted above the collection, and writes the result back.
func (s *PostgresStore) mutate(ctx context.Context, collection string, change func(tree map[string]any)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tree := make(map[string]any)
	existed := true
	var raw []byte
	err = tx.QueryRowContext(ctx, lockDocumentQuery, collection).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existed = false
	case err != nil:
		_ = tx.Rollback()
		return fmt.Errorf("lock %s: %w", collection, err)
	default:
		var body any
		if err := json.Unmarshal(raw, &body); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("decode %s: %w", collection, err)
		}
		if body = prune(body); body != nil {
			tree[collection] = body
		}
	}

	change(tree)

	body, ok := tree[collection]
	switch {
	case ok:
		data, err := json.Marshal(body)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode %s: %w", collection, err)
		}
		if _, err := tx.ExecContext(ctx, upsertDocumentSQL, collection, string(data)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write %s: %w", collection, err)
		}
	case existed:
		if _, err := tx.ExecContext(ctx, deleteDocumentSQL, collection); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete %s: %w", collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", collection, err)
	}
	return nil
}
