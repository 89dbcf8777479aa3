// Package auth_repo provides PostgreSQL implementations for auth repositories.
package auth_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/domain/auth"
	"palmledger/internal/infrastructure/storage/postgres"
)

const userColumns = `id, email, password_hash, full_name, is_active, must_change_password,
	last_login_at, failed_login_attempts, locked_until, created_at, updated_at, deleted_at, version`

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txManager *postgres.TxManager
}

// NewUserRepo creates a new user repository.
func NewUserRepo(txManager *postgres.TxManager) *UserRepo {
	return &UserRepo{txManager: txManager}
}

func (r *UserRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, full_name, is_active, must_change_password,
			failed_login_attempts, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)
	`

	_, err := r.querier(ctx).Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FullName,
		user.IsActive, user.MustChangePassword, user.Version,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return postgres.MapError(err, "user", "insert")
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any, key string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` AND deleted_at IS NULL`

	var user auth.User
	if err := pgxscan.Get(ctx, r.querier(ctx), &user, query, arg); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", key)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a non-deleted user by ID.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getOne(ctx, "id = $1", userID, userID.String())
}

// GetByEmail retrieves a non-deleted user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "email = $1", email, email)
}

// Update updates user data with optimistic locking.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	query := `
		UPDATE users SET
			password_hash = $2,
			full_name = $3,
			is_active = $4,
			must_change_password = $5,
			last_login_at = $6,
			failed_login_attempts = $7,
			locked_until = $8,
			updated_at = now(),
			version = version + 1
		WHERE id = $1 AND deleted_at IS NULL AND version = $9
	`

	result, err := r.querier(ctx).Exec(ctx, query,
		user.ID, user.PasswordHash, user.FullName, user.IsActive, user.MustChangePassword,
		user.LastLoginAt, user.FailedLoginAttempts, user.LockedUntil, user.Version,
	)
	if err != nil {
		return postgres.MapError(err, "user", "update")
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("user", user.ID)
	}

	user.Version++
	return nil
}

// Delete soft-deletes a user and drops the role mapping.
func (r *UserRepo) Delete(ctx context.Context, userID id.ID) error {
	q := r.querier(ctx)

	result, err := q.Exec(ctx,
		`UPDATE users SET deleted_at = now(), is_active = FALSE, version = version + 1
		 WHERE id = $1 AND deleted_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("user", userID.String())
	}

	if _, err := q.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete role mapping: %w", err)
	}
	return nil
}

// userListRow is a user joined with its role mapping.
type userListRow struct {
	auth.User
	MappedRole    *string `db:"role"`
	MappedAgentID *id.ID  `db:"agent_id"`
}

var userSelectColumns = func() []string {
	cols := strings.Split(userColumns, ",")
	for i, c := range cols {
		cols[i] = "u." + strings.TrimSpace(c)
	}
	return append(cols, "ur.role", "ur.agent_id")
}()

func userListQuery(filter auth.UserFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(userSelectColumns...).
		From("users u").
		LeftJoin("user_roles ur ON ur.user_id = u.id").
		Where("u.deleted_at IS NULL")

	if filter.Search != "" {
		pattern := "%" + postgres.EscapeLike(filter.Search) + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"u.email": pattern},
			squirrel.ILike{"u.full_name": pattern},
		})
	}
	if filter.IsActive != nil {
		q = q.Where(squirrel.Eq{"u.is_active": *filter.IsActive})
	}
	if filter.Role != "" {
		q = q.Where(squirrel.Eq{"ur.role": filter.Role})
	}
	return q
}

// List retrieves users with filtering, role mapping included.
func (r *UserRepo) List(ctx context.Context, filter auth.UserFilter) ([]auth.User, int, error) {
	q := userListQuery(filter)
	querier := r.querier(ctx)

	total, err := postgres.Count(ctx, querier, q)
	if err != nil {
		return nil, 0, err
	}

	var rows []userListRow
	q = postgres.Paginate(q.OrderBy("u.email ASC"), filter.Limit, filter.Offset)
	if err := postgres.SelectAll(ctx, querier, &rows, q, "user"); err != nil {
		return nil, 0, err
	}

	users := make([]auth.User, len(rows))
	for i, row := range rows {
		users[i] = row.User
		if row.MappedRole != nil {
			users[i].Role = *row.MappedRole
		}
		users[i].AgentID = row.MappedAgentID
	}
	return users, int(total), nil
}

// Exists checks if email is taken by a non-deleted user.
func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.querier(ctx).QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}
	return exists, nil
}

// LoadRole loads the user's role mapping.
func (r *UserRepo) LoadRole(ctx context.Context, userID id.ID) (*auth.RoleMapping, error) {
	query := `SELECT user_id, role, agent_id, granted_by, created_at FROM user_roles WHERE user_id = $1`

	var m auth.RoleMapping
	if err := pgxscan.Get(ctx, r.querier(ctx), &m, query, userID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("role mapping", userID.String())
		}
		return nil, fmt.Errorf("query role mapping: %w", err)
	}
	return &m, nil
}

// SetRole inserts or replaces the user's role mapping.
func (r *UserRepo) SetRole(ctx context.Context, m *auth.RoleMapping) error {
	query := `
		INSERT INTO user_roles (user_id, role, agent_id, granted_by, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			role = EXCLUDED.role,
			agent_id = EXCLUDED.agent_id,
			granted_by = EXCLUDED.granted_by
	`

	if _, err := r.querier(ctx).Exec(ctx, query, m.UserID, m.Role, m.AgentID, m.GrantedBy); err != nil {
		return postgres.MapError(err, "role mapping", "upsert")
	}
	return nil
}

// CountActiveAdmins counts enabled, non-deleted admins.
func (r *UserRepo) CountActiveAdmins(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*) FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		WHERE ur.role = 'ADMIN' AND u.is_active AND u.deleted_at IS NULL
	`

	var n int
	if err := r.querier(ctx).QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

// Ensure interface compliance
var _ auth.UserRepository = (*UserRepo)(nil)
