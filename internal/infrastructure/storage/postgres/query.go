package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/types"
)

// PostgreSQL error codes mapped to application errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Builder returns a squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// MapError translates constraint violations into application errors. Other errors are
// wrapped with op.
func MapError(err error, entity, op string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			field := constraintField(pgErr.ConstraintName)
			return apperror.NewDuplicate(entity, field, pgErr.Detail).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewConflict(entity+" is referenced by other records or references a missing one").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation(entity+" violates a stored constraint").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}

	return fmt.Errorf("%s %s: %w", op, entity, err)
}

// constraintField guesses the column from names like "agents_phone_key" or "uq_receipts_number".
func constraintField(constraint string) string {
	name := strings.TrimSuffix(strings.TrimSuffix(constraint, "_key"), "_idx")
	if i := strings.LastIndex(name, "_"); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	if name == "" {
		return "value"
	}
	return name
}

// GetOne runs q and scans a single row into dst, returning NotFound for no rows.
func GetOne(ctx context.Context, q Querier, dst any, b squirrel.Sqlizer, entity, key string) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, q, dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(entity, key)
		}
		return fmt.Errorf("get %s: %w", entity, err)
	}
	return nil
}

// SelectAll runs q and scans every row into dst, a pointer to a slice.
func SelectAll(ctx context.Context, q Querier, dst any, b squirrel.Sqlizer, entity string) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, dst, sql, args...); err != nil {
		return fmt.Errorf("list %s: %w", entity, err)
	}
	return nil
}

// Exec runs a statement built with squirrel and returns affected rows.
func Exec(ctx context.Context, q Querier, b squirrel.Sqlizer, entity, op string) (int64, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, MapError(err, entity, op)
	}
	return tag.RowsAffected(), nil
}

// Count runs SELECT COUNT(*) over the rows of q.
func Count(ctx context.Context, querier Querier, q squirrel.SelectBuilder) (int64, error) {
	countSQL, args, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return total, nil
}

// WhereDateRange adds calendar-day bounds, both inclusive, on a DATE or TIMESTAMPTZ column.
func WhereDateRange(q squirrel.SelectBuilder, column string, r types.DateRange) squirrel.SelectBuilder {
	if !r.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{column: dateOnly(r.From)})
	}
	if !r.To.IsZero() {
		q = q.Where(squirrel.Lt{column: dateOnly(r.To).AddDate(0, 0, 1)})
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// EscapeLike escapes LIKE wildcards in user input.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Paginate applies limit and offset.
func Paginate(q squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}

// OrderBy resolves "field" or "-field" against allowed columns, falling back to def.
func OrderBy(orderBy string, allowed []string, def string) (string, error) {
	if orderBy == "" {
		return def, nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}
	field = strings.TrimSpace(field)

	for _, col := range allowed {
		if col == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
}
