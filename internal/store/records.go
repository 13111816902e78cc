package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/johnwards/notforce/internal/domain"
)

// RecordStore defines persistence for sObject records. All reads return
// records in insertion order.
type RecordStore interface {
	Insert(ctx context.Context, objectType string, rec domain.Record) error
	Get(ctx context.Context, objectType, id string) (domain.Record, error)
	FindByField(ctx context.Context, objectType, field, value string) (domain.Record, error)
	Update(ctx context.Context, objectType, id string, rec domain.Record) error
	Delete(ctx context.Context, objectType, id string) error
	All(ctx context.Context, objectType string) ([]domain.Record, error)
	Dump(ctx context.Context) (map[string][]domain.Record, error)
	Clear(ctx context.Context) error
}

// SQLiteRecordStore implements RecordStore backed by SQLite. The rowid
// sequence preserves insertion order and the fields column holds the full
// record as one JSON document.
type SQLiteRecordStore struct {
	db *sql.DB
}

// NewSQLiteRecordStore creates a new SQLiteRecordStore.
func NewSQLiteRecordStore(db *sql.DB) *SQLiteRecordStore {
	return &SQLiteRecordStore{db: db}
}

// Insert stores a new record. The record must already carry its Id field.
func (s *SQLiteRecordStore) Insert(ctx context.Context, objectType string, rec domain.Record) error {
	fields, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	ts := now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (object_type, id, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		objectType, rec.ID(), string(fields), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *SQLiteRecordStore) Get(ctx context.Context, objectType, id string) (domain.Record, error) {
	var fields string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM records WHERE object_type = ? AND id = ?`,
		objectType, id,
	).Scan(&fields)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return unmarshalRecord(fields)
}

// FindByField returns the first record, in insertion order, whose field
// string-compares equal to value. Comparison happens in Go because record
// values keep their JSON types and the platform compares them as strings.
func (s *SQLiteRecordStore) FindByField(ctx context.Context, objectType, field, value string) (domain.Record, error) {
	records, err := s.All(ctx, objectType)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if v, ok := rec[field]; ok && domain.Stringify(v) == value {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

// Update replaces a record's fields and bumps its updated timestamp.
func (s *SQLiteRecordStore) Update(ctx context.Context, objectType, id string, rec domain.Record) error {
	fields, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET fields = ?, updated_at = ? WHERE object_type = ? AND id = ?`,
		string(fields), now(), objectType, id,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record.
func (s *SQLiteRecordStore) Delete(ctx context.Context, objectType, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE object_type = ? AND id = ?`,
		objectType, id,
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// All returns every record of the given type in insertion order.
func (s *SQLiteRecordStore) All(ctx context.Context, objectType string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fields FROM records WHERE object_type = ? ORDER BY seq ASC`,
		objectType,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Record
	for rows.Next() {
		var fields string
		if err := rows.Scan(&fields); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := unmarshalRecord(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Dump returns all records grouped by object type, each group in insertion
// order.
func (s *SQLiteRecordStore) Dump(ctx context.Context) (map[string][]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT object_type, fields FROM records ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("dump records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]domain.Record)
	for rows.Next() {
		var objectType, fields string
		if err := rows.Scan(&objectType, &fields); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := unmarshalRecord(fields)
		if err != nil {
			return nil, err
		}
		out[objectType] = append(out[objectType], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Clear removes all records.
func (s *SQLiteRecordStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func unmarshalRecord(fields string) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal([]byte(fields), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}
