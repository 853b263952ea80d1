package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"askmemo-backend/internal/models"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// rowQuerier is the part of *pgxpool.Pool the record repo needs.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RecordRepo stores rated answers in a Postgres table. The table name plays
// the role of the database identifier.
type RecordRepo struct {
	pool rowQuerier
}

func NewRecordRepo(pool rowQuerier) *RecordRepo {
	return &RecordRepo{pool: pool}
}

func (r *RecordRepo) VerifyDatabase(ctx context.Context, table string) error {
	if _, err := tableIdentifier(table); err != nil {
		return err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	if !exists {
		return fmt.Errorf("table %s does not exist", table)
	}
	return nil
}

func (r *RecordRepo) CreateRecord(ctx context.Context, table string, rec models.Record) (*models.SavedRecord, error) {
	ident, err := tableIdentifier(table)
	if err != nil {
		return nil, err
	}

	saved := &models.SavedRecord{ID: uuid.New().String()}

	query := fmt.Sprintf(`INSERT INTO %s (id, title, answer, recorded_at, user_name, rating)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`, ident.Sanitize())

	err = r.pool.QueryRow(ctx, query,
		saved.ID, rec.Title, rec.Answer, rec.Date, rec.User, string(rec.Rating),
	).Scan(&saved.CreatedAt)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func tableIdentifier(table string) (pgx.Identifier, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return pgx.Identifier(strings.Split(table, ".")), nil
}
