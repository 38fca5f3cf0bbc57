package options

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-enqueue/layering"
)

//go:embed schema.sql
var schemaSQL string

var (
	payloadEnc cbor.EncMode
	payloadDec cbor.DecMode
)

func init() {
	var err error
	payloadEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("options: CBOR encoder initialization failed: " + err.Error())
	}
	payloadDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("options: CBOR decoder initialization failed: " + err.Error())
	}
}

// SQLiteStore persists option groups in one SQLite table with CBOR encoded
// payloads. Integers decode as int64.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("options: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("options: connect database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("options: %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("options: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, ref Ref) (map[string]any, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}
	var (
		payload []byte
		meta    Meta
		updated int64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, snapshot_id, etag, updated_at FROM option_groups WHERE identifier = ?`, key)
	if err := row.Scan(&payload, &meta.SnapshotID, &meta.ETag, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Meta{}, false, nil
		}
		return nil, Meta{}, false, fmt.Errorf("options: load %s: %w", key, err)
	}
	meta.UpdatedAt = time.Unix(0, updated).UTC()
	values := map[string]any{}
	if err := payloadDec.Unmarshal(payload, &values); err != nil {
		return nil, Meta{}, false, fmt.Errorf("options: decode %s: %w", key, err)
	}
	return values, meta, true, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, ref Ref, values map[string]any, expected Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	if values == nil {
		values = map[string]any{}
	}
	payload, err := payloadEnc.Marshal(values)
	if err != nil {
		return Meta{}, fmt.Errorf("options: encode %s: %w", key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("options: begin: %w", err)
	}
	defer tx.Rollback()

	current, err := currentMeta(ctx, tx, key)
	if err != nil {
		return Meta{}, err
	}
	if err := checkETag(expected, current); err != nil {
		return current, err
	}
	meta := nextMeta()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO option_groups (identifier, option_name, scope_level, scope_id, payload, snapshot_id, etag, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			payload = excluded.payload,
			snapshot_id = excluded.snapshot_id,
			etag = excluded.etag,
			updated_at = excluded.updated_at`,
		key, ref.Option, ref.Scope.Level.String(), scopeID(ref.Scope), payload, meta.SnapshotID, meta.ETag, meta.UpdatedAt.UnixNano())
	if err != nil {
		return Meta{}, fmt.Errorf("options: save %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("options: commit %s: %w", key, err)
	}
	return meta, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, ref Ref, expected Meta) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("options: begin: %w", err)
	}
	defer tx.Rollback()

	current, err := currentMeta(ctx, tx, key)
	if err != nil {
		return err
	}
	if err := checkETag(expected, current); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM option_groups WHERE identifier = ?`, key); err != nil {
		return fmt.Errorf("options: delete %s: %w", key, err)
	}
	return tx.Commit()
}

// Identifiers lists stored groups for a scope level, sorted.
func (s *SQLiteStore) Identifiers(ctx context.Context, level layering.Level) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identifier FROM option_groups WHERE scope_level = ? ORDER BY identifier`, level.String())
	if err != nil {
		return nil, fmt.Errorf("options: list %s: %w", level, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func currentMeta(ctx context.Context, tx *sql.Tx, key string) (Meta, error) {
	var meta Meta
	err := tx.QueryRowContext(ctx, `SELECT snapshot_id, etag FROM option_groups WHERE identifier = ?`, key).
		Scan(&meta.SnapshotID, &meta.ETag)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, nil
	}
	if err != nil {
		return Meta{}, fmt.Errorf("options: read meta %s: %w", key, err)
	}
	return meta, nil
}

func scopeID(scope layering.Scope) string {
	switch scope.Level {
	case layering.LevelBlog:
		return scope.BlogID
	case layering.LevelUser:
		return scope.UserID
	default:
		return ""
	}
}
