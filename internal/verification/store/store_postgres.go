package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"kycproxy/internal/verification/models"
	"kycproxy/pkg/domain"
	"kycproxy/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists records in the verification_records table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert writes the record. A duplicate handle surfaces as sentinel.ErrConflict.
func (s *PostgresStore) Insert(ctx context.Context, record models.Record) (models.Record, error) {
	if record.ID.IsNil() {
		record.ID = domain.NewRecordID()
	}
	query := `
		INSERT INTO verification_records (id, age, handle)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(record.ID), record.Age, record.Handle.String()).Scan(&createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Record{}, fmt.Errorf("insert verification record: %w", sentinel.ErrConflict)
		}
		return models.Record{}, fmt.Errorf("insert verification record: %w", err)
	}
	record.CreatedAt = createdAt.UTC()
	return record, nil
}

// FindByHandle returns matching records, oldest first.
func (s *PostgresStore) FindByHandle(ctx context.Context, handle domain.Handle) ([]models.Record, error) {
	query := `
		SELECT id, age, handle, created_at
		FROM verification_records
		WHERE handle = $1
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, handle.String())
	if err != nil {
		return nil, fmt.Errorf("find verification records: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification records: %w", err)
	}
	return records, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (models.Record, error) {
	var (
		id     uuid.UUID
		record models.Record
		handle string
	)
	if err := row.Scan(&id, &record.Age, &handle, &record.CreatedAt); err != nil {
		return models.Record{}, err
	}
	record.ID = domain.RecordID(id)
	record.Handle = domain.Handle(handle)
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}
