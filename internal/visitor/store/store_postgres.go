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
	"gatepass/internal/visitor/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/fielddata"
	"gatepass/pkg/platform/sentinel"
)

// Postgres persists visitors. The partial unique index on phone enforces
// sparse uniqueness; this store is pure I/O and reports violations as
// sentinel.ErrConflict for the service to interpret.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const visitorColumns = `id, phone, email, name, company, attributes, total_registrations, last_registration_date, registered_exhibitions, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, v *models.Visitor) error {
	attrs, err := json.Marshal(orEmpty(v.Attributes))
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	query := `
		INSERT INTO visitors (` + visitorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(v.ID), v.Phone, v.Email, v.Name, v.Company, attrs,
		v.TotalRegistrations, v.LastRegistrationDate, pq.Array(exhibitionStrings(v.RegisteredExhibitions)),
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if platformpg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert visitor: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, visitorID id.VisitorID) (*models.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(visitorID)))
}

func (s *Postgres) FindByPhone(ctx context.Context, phone string) (*models.Visitor, error) {
	if phone == "" {
		return nil, sentinel.ErrNotFound
	}
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE phone = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, phone))
}

func (s *Postgres) Update(ctx context.Context, v *models.Visitor) error {
	attrs, err := json.Marshal(orEmpty(v.Attributes))
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	query := `
		UPDATE visitors SET
			phone = $2, email = $3, name = $4, company = $5, attributes = $6,
			total_registrations = $7, last_registration_date = $8,
			registered_exhibitions = $9, updated_at = $10
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(v.ID), v.Phone, v.Email, v.Name, v.Company, attrs,
		v.TotalRegistrations, v.LastRegistrationDate,
		pq.Array(exhibitionStrings(v.RegisteredExhibitions)), v.UpdatedAt,
	)
	if err != nil {
		if platformpg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update visitor: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update visitor rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, visitorID id.VisitorID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE id = $1`, uuid.UUID(visitorID))
	if err != nil {
		return fmt.Errorf("delete visitor: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete visitor rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	var out []*models.Visitor
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ApplyRegistration bumps the derived aggregates in a single statement so
// concurrent submissions for the same visitor never lose an increment.
func (s *Postgres) ApplyRegistration(ctx context.Context, visitorID id.VisitorID, exhibitionID id.ExhibitionID, at time.Time) error {
	query := `
		UPDATE visitors SET
			total_registrations = total_registrations + 1,
			last_registration_date = GREATEST(COALESCE(last_registration_date, $3), $3),
			registered_exhibitions = CASE
				WHEN $2 = ANY(registered_exhibitions) THEN registered_exhibitions
				ELSE array_append(registered_exhibitions, $2)
			END,
			updated_at = $3
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, uuid.UUID(visitorID), uuid.UUID(exhibitionID), at)
	if err != nil {
		return fmt.Errorf("apply registration to visitor: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply registration rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(row *sql.Row) (*models.Visitor, error) {
	v, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func scanVisitor(row rowScanner) (*models.Visitor, error) {
	var (
		v         models.Visitor
		rawID     uuid.UUID
		attrs     []byte
		exhibits  []string
		lastRegAt sql.NullTime
	)
	err := row.Scan(&rawID, &v.Phone, &v.Email, &v.Name, &v.Company, &attrs,
		&v.TotalRegistrations, &lastRegAt, pq.Array(&exhibits), &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan visitor: %w", err)
	}
	v.ID = id.VisitorID(rawID)
	if lastRegAt.Valid {
		t := lastRegAt.Time
		v.LastRegistrationDate = &t
	}
	if len(attrs) > 0 {
		var m fielddata.Map
		if err := json.Unmarshal(attrs, &m); err != nil {
			return nil, fmt.Errorf("unmarshal visitor attributes: %w", err)
		}
		if len(m) > 0 {
			v.Attributes = m
		}
	}
	for _, raw := range exhibits {
		u, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse registered exhibition id: %w", err)
		}
		v.RegisteredExhibitions = append(v.RegisteredExhibitions, id.ExhibitionID(u))
	}
	return &v, nil
}

func exhibitionStrings(ids []id.ExhibitionID) []string {
	out := make([]string, 0, len(ids))
	for _, exhibitionID := range ids {
		out = append(out, exhibitionID.String())
	}
	return out
}

func orEmpty(m fielddata.Map) fielddata.Map {
	if m == nil {
		return fielddata.Map{}
	}
	return m
}
