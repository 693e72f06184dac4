package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	platformpg "gatepass/internal/platform/postgres"
	"gatepass/internal/registration/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/fielddata"
	"gatepass/pkg/platform/sentinel"
)

// Postgres persists registrations. Pure I/O; constraint violations surface
// as sentinel.ErrConflict so the coordinator can retry with a fresh sequence.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const registrationColumns = `id, registration_number, visitor_id, exhibition_id, registration_date, category, interests, custom_fields, status, created_at, updated_at`

func (s *Postgres) Insert(ctx context.Context, r *models.Registration) error {
	fields, err := json.Marshal(orEmpty(r.CustomFields))
	if err != nil {
		return fmt.Errorf("marshal custom fields: %w", err)
	}
	query := `
		INSERT INTO registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(r.ID), r.RegistrationNumber, uuid.UUID(r.VisitorID), uuid.UUID(r.ExhibitionID),
		r.RegistrationDate, r.Category, pq.Array(r.Interests), fields, string(r.Status),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if platformpg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, registrationID id.RegistrationID) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(registrationID)))
}

func (s *Postgres) FindByNumber(ctx context.Context, number string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE registration_number = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, number))
}

func (s *Postgres) ListByVisitor(ctx context.Context, visitorID id.VisitorID) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE visitor_id = $1 ORDER BY created_at ASC`
	return s.queryMany(ctx, query, uuid.UUID(visitorID))
}

func (s *Postgres) List(ctx context.Context) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations ORDER BY created_at ASC`
	return s.queryMany(ctx, query)
}

func (s *Postgres) ReassignVisitor(ctx context.Context, fromID, toID id.VisitorID) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE registrations SET visitor_id = $2, updated_at = NOW() WHERE visitor_id = $1`,
		uuid.UUID(fromID), uuid.UUID(toID),
	)
	if err != nil {
		return 0, fmt.Errorf("reassign registrations: %w", err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign rows affected: %w", err)
	}
	return moved, nil
}

func (s *Postgres) UpdateCustomFields(ctx context.Context, registrationID id.RegistrationID, fields fielddata.Map, at time.Time) error {
	payload, err := json.Marshal(orEmpty(fields))
	if err != nil {
		return fmt.Errorf("marshal custom fields: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE registrations SET custom_fields = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(registrationID), payload, at,
	)
	if err != nil {
		return fmt.Errorf("update custom fields: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update custom fields rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, registrationID id.RegistrationID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, uuid.UUID(registrationID))
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) CountActiveByExhibition(ctx context.Context, exhibitionID id.ExhibitionID) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE exhibition_id = $1 AND status <> 'cancelled'`,
		uuid.UUID(exhibitionID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(row *sql.Row) (*models.Registration, error) {
	r, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *Postgres) queryMany(ctx context.Context, query string, args ...any) ([]*models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		r           models.Registration
		rawID       uuid.UUID
		rawVisitor  uuid.UUID
		rawExhibit  uuid.UUID
		rawFields   []byte
		rawStatus   string
		rawInterest []string
	)
	err := row.Scan(&rawID, &r.RegistrationNumber, &rawVisitor, &rawExhibit,
		&r.RegistrationDate, &r.Category, pq.Array(&rawInterest), &rawFields, &rawStatus,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	r.ID = id.RegistrationID(rawID)
	r.VisitorID = id.VisitorID(rawVisitor)
	r.ExhibitionID = id.ExhibitionID(rawExhibit)
	r.Status = models.Status(rawStatus)
	r.Interests = rawInterest
	if len(rawFields) > 0 {
		var m fielddata.Map
		if err := json.Unmarshal(rawFields, &m); err != nil {
			return nil, fmt.Errorf("unmarshal custom fields: %w", err)
		}
		if len(m) > 0 {
			r.CustomFields = m
		}
	}
	return &r, nil
}

func orEmpty(m fielddata.Map) fielddata.Map {
	if m == nil {
		return fielddata.Map{}
	}
	return m
}
