package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gatepass/internal/exhibition/models"
	platformpg "gatepass/internal/platform/postgres"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const exhibitionColumns = `id, scope_key, name, starts_at, ends_at, status, current_registrations_count, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, e *models.Exhibition) error {
	query := `
		INSERT INTO exhibitions (` + exhibitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(e.ID), e.ScopeKey, e.Name, e.StartsAt, e.EndsAt, string(e.Status),
		e.CurrentRegistrationsCount, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if platformpg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert exhibition: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, exhibitionID id.ExhibitionID) (*models.Exhibition, error) {
	query := `SELECT ` + exhibitionColumns + ` FROM exhibitions WHERE id = $1`
	e, err := scanExhibition(s.db.QueryRowContext(ctx, query, uuid.UUID(exhibitionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Exhibition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+exhibitionColumns+` FROM exhibitions ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list exhibitions: %w", err)
	}
	defer rows.Close()

	var out []*models.Exhibition
	for rows.Next() {
		e, err := scanExhibition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) IncrementCount(ctx context.Context, exhibitionID id.ExhibitionID, delta int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE exhibitions
		SET current_registrations_count = current_registrations_count + $2, updated_at = NOW()
		WHERE id = $1
	`, uuid.UUID(exhibitionID), delta)
	if err != nil {
		return fmt.Errorf("increment exhibition count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment count rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) SetCount(ctx context.Context, exhibitionID id.ExhibitionID, count int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE exhibitions
		SET current_registrations_count = $2, updated_at = NOW()
		WHERE id = $1
	`, uuid.UUID(exhibitionID), count)
	if err != nil {
		return fmt.Errorf("set exhibition count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set count rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExhibition(row rowScanner) (*models.Exhibition, error) {
	var (
		e        models.Exhibition
		rawID    uuid.UUID
		status   string
		startsAt sql.NullTime
		endsAt   sql.NullTime
	)
	err := row.Scan(&rawID, &e.ScopeKey, &e.Name, &startsAt, &endsAt, &status,
		&e.CurrentRegistrationsCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan exhibition: %w", err)
	}
	e.ID = id.ExhibitionID(rawID)
	e.Status = models.Status(status)
	if startsAt.Valid {
		t := startsAt.Time
		e.StartsAt = &t
	}
	if endsAt.Valid {
		t := endsAt.Time
		e.EndsAt = &t
	}
	return &e, nil
}
